package ddns

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics registered on the default registry.
var (
	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ddns_ticks_total",
		Help: "Total number of reconciliation ticks by result.",
	}, []string{"result"})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ddns_tick_duration_seconds",
		Help:    "Duration of reconciliation ticks in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	recordOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ddns_record_operations_total",
		Help: "Total number of record operations by action and result.",
	}, []string{"action", "result"})
)
