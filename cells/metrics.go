package cells

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cellsLive tracks cells created and not yet collected, across sheets.
	cellsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "formtree_cells_live",
		Help: "Number of live reactive cells",
	})

	cellsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formtree_cells_created_total",
		Help: "Total reactive cells created",
	})

	cellsCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formtree_cells_collected_total",
		Help: "Total reactive cells collected",
	})

	cellsRecomputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formtree_cells_recomputed_total",
		Help: "Total derived cell recomputations",
	})

	settleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "formtree_cells_settle_duration_seconds",
		Help:    "Settle duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
	})
)
