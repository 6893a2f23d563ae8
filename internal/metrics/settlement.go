package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Классы исхода расчёта для метки outcome.
const (
	OutcomeValidation = "validation"
	OutcomeTransport  = "transport"
	OutcomePartial    = "partial"
)

// SettlementMetrics содержит метрики расчётов на кассе.
type SettlementMetrics struct {
	started     prometheus.Counter
	completed   prometheus.Counter
	failed      *prometheus.CounterVec
	compensated *prometheus.CounterVec

	duration     prometheus.Histogram
	stepDuration *prometheus.HistogramVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	inFlight prometheus.Gauge
}

// NewSettlementMetrics регистрирует метрики расчётов.
func NewSettlementMetrics(registerer prometheus.Registerer) *SettlementMetrics {
	return &SettlementMetrics{
		started:   counter(registerer, "settlement_started_total", "Total number of settlements started"),
		completed: counter(registerer, "settlement_completed_total", "Total number of settlements completed successfully"),
		failed: counterVec(registerer, "settlement_failed_total",
			"Total number of failed settlements grouped by error class", "outcome"),
		compensated: counterVec(registerer, "settlement_compensations_total",
			"Total number of compensations grouped by result", "result"),
		duration: register(registerer, "settlement_duration_seconds", prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_duration_seconds",
			Help:      "Duration of settlements in seconds",
			Buckets:   prometheus.DefBuckets,
		})),
		stepDuration: register(registerer, "settlement_step_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_step_duration_seconds",
			Help:      "Duration of individual settlement steps in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"})),
		timelineEvents: counter(registerer, "settlement_timeline_events_total", "Total number of timeline events recorded"),
		outboxEvents:   counter(registerer, "settlement_outbox_events_total", "Total number of outbox events enqueued"),
		inFlight:       gauge(registerer, "settlements_in_flight", "Number of settlements currently running"),
	}
}

// RecordStarted увеличивает счётчик начатых расчётов и число активных.
func (m *SettlementMetrics) RecordStarted() {
	if m == nil {
		return
	}
	m.started.Inc()
	m.inFlight.Inc()
}

// RecordFinished фиксирует длительность и уменьшает число активных расчётов.
func (m *SettlementMetrics) RecordFinished(duration time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.duration.Observe(duration.Seconds())
}

// RecordCompleted увеличивает счётчик успешных расчётов.
func (m *SettlementMetrics) RecordCompleted() {
	if m == nil {
		return
	}
	m.completed.Inc()
}

// RecordFailed увеличивает счётчик неудачных расчётов по классу ошибки.
func (m *SettlementMetrics) RecordFailed(outcome string) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(outcome).Inc()
}

// RecordCompensation фиксирует исход компенсации: complete или incomplete.
func (m *SettlementMetrics) RecordCompensation(complete bool) {
	if m == nil {
		return
	}
	result := "complete"
	if !complete {
		result = "incomplete"
	}
	m.compensated.WithLabelValues(result).Inc()
}

// RecordStepDuration записывает время выполнения шага.
func (m *SettlementMetrics) RecordStepDuration(step string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *SettlementMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *SettlementMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}
