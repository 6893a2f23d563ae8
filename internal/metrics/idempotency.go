package metrics

import "github.com/prometheus/client_golang/prometheus"

// IdempotencyMetrics — метрики ключей Idempotency-Key оформления.
type IdempotencyMetrics struct {
	requests       *prometheus.CounterVec
	cleanupRuns    *prometheus.CounterVec
	cleanupDeleted prometheus.Counter
	lastDeleted    prometheus.Gauge
}

// NewIdempotencyMetrics регистрирует метрики идемпотентности.
func NewIdempotencyMetrics(registerer prometheus.Registerer) *IdempotencyMetrics {
	return &IdempotencyMetrics{
		requests: counterVec(registerer, "idempotency_requests_total",
			"Checkout requests with Idempotency-Key grouped by outcome (new, replayed, in_progress, mismatch).", "outcome"),
		cleanupRuns: counterVec(registerer, "idempotency_cleanup_runs_total",
			"Total number of idempotency cleanup runs grouped by result.", "result"),
		cleanupDeleted: counter(registerer, "idempotency_cleanup_deleted_total", "Total number of deleted expired idempotency records."),
		lastDeleted:    gauge(registerer, "idempotency_cleanup_last_deleted", "Number of deleted records during the last cleanup run."),
	}
}

// RecordRequest фиксирует исход проверки ключа.
func (m *IdempotencyMetrics) RecordRequest(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

// RecordCleanupRun фиксирует прогон очистки.
func (m *IdempotencyMetrics) RecordCleanupRun(ok bool, deleted int) {
	if m == nil {
		return
	}
	if !ok {
		m.cleanupRuns.WithLabelValues("error").Inc()
		return
	}
	m.cleanupRuns.WithLabelValues("ok").Inc()
	m.lastDeleted.Set(float64(deleted))
}

// RecordDeleted увеличивает счётчик удалённых записей.
func (m *IdempotencyMetrics) RecordDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cleanupDeleted.Add(float64(n))
}
