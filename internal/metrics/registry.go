// Package metrics содержит Prometheus-метрики кассы.
//
// Все конструкторы принимают prometheus.Registerer; повторная регистрация
// возвращает уже существующий коллектор, поэтому компоненты можно создавать многократно.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pos"

func register[T prometheus.Collector](registerer prometheus.Registerer, name string, collector T) T {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			existing, ok := already.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", name))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector %q: %v", name, err))
	}
	return collector
}

func counter(registerer prometheus.Registerer, name, help string) prometheus.Counter {
	return register(registerer, name, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}))
}

func counterVec(registerer prometheus.Registerer, name, help string, labels ...string) *prometheus.CounterVec {
	return register(registerer, name, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels))
}

func gauge(registerer prometheus.Registerer, name, help string) prometheus.Gauge {
	return register(registerer, name, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}))
}
