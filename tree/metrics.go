package tree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	nodesBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "formtree_tree_nodes_built_total",
		Help: "Editor nodes built, by kind",
	}, []string{"kind"})

	nodesReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formtree_tree_nodes_released_total",
		Help: "Editor nodes released",
	})

	nodesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formtree_tree_nodes_failed_total",
		Help: "Editor nodes whose construction failed",
	})
)
