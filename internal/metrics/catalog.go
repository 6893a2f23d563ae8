package metrics

import "github.com/prometheus/client_golang/prometheus"

// CatalogMetrics — метрики загрузки каталога.
type CatalogMetrics struct {
	loads    *prometheus.CounterVec
	products prometheus.Gauge
}

// NewCatalogMetrics регистрирует метрики каталога.
func NewCatalogMetrics(registerer prometheus.Registerer) *CatalogMetrics {
	return &CatalogMetrics{
		loads: counterVec(registerer, "catalog_loads_total",
			"Total number of catalog loads grouped by result (ok, degraded)", "result"),
		products: gauge(registerer, "catalog_last_load_products", "Number of products returned by the last catalog load"),
	}
}

// RecordLoaded фиксирует успешную загрузку.
func (m *CatalogMetrics) RecordLoaded(products int) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues("ok").Inc()
	m.products.Set(float64(products))
}

// RecordDegraded фиксирует загрузку, деградировавшую в пустой список.
func (m *CatalogMetrics) RecordDegraded() {
	if m == nil {
		return
	}
	m.loads.WithLabelValues("degraded").Inc()
	m.products.Set(0)
}
