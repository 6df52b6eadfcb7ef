package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for batch runs.
var (
	packetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sumapi_batch_packets_total",
		Help: "Total batch packets by outcome",
	}, []string{"outcome"})

	itemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sumapi_batch_items_total",
		Help: "Total dataset items evaluated through the batch endpoint",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sumapi_batch_run_duration_seconds",
		Help:    "Duration of complete batch runs in seconds",
		Buckets: []float64{1, 10, 60, 300, 1200, 3600, 14400},
	})
)
