package reference

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	loads         *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewMetrics регистрирует счётчики в reg; nil — без регистрации
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		hits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "dogovor",
			Subsystem: "reference_cache",
			Name:      "hits_total",
			Help:      "Reference cache lookups served from memory.",
		}),
		misses: f.NewCounter(prometheus.CounterOpts{
			Namespace: "dogovor",
			Subsystem: "reference_cache",
			Name:      "misses_total",
			Help:      "Reference cache lookups that found no entry.",
		}),
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dogovor",
			Subsystem: "reference_cache",
			Name:      "loads_total",
			Help:      "Full reference reloads from the store.",
		}, []string{"result"}),
		invalidations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dogovor",
			Subsystem: "reference_cache",
			Name:      "invalidations_total",
			Help:      "Entity invalidations after committed writes.",
		}, []string{"entity"}),
	}
}
