package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics — метрики HTTP API кассы.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	sessions prometheus.Gauge
}

// NewHTTPMetrics регистрирует метрики HTTP API.
func NewHTTPMetrics(registerer prometheus.Registerer) *HTTPMetrics {
	return &HTTPMetrics{
		requests: counterVec(registerer, "http_requests_total",
			"Total number of HTTP requests grouped by route, method and status", "route", "method", "status"),
		duration: register(registerer, "http_request_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"})),
		sessions: gauge(registerer, "terminal_sessions_open", "Number of open terminal sessions"),
	}
}

// RecordRequest учитывает завершённый запрос. route: шаблон маршрута, а не сырой путь.
func (m *HTTPMetrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// SetOpenSessions выставляет число открытых сессий кассы.
func (m *HTTPMetrics) SetOpenSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
