package layout

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LayoutsTotal counts full layout computations.
	LayoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "topolord_layouts_total",
			Help: "Total number of full graph layout computations",
		},
	)

	// LayoutFallbacksTotal counts degradations to fallback placement.
	LayoutFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "topolord_layout_fallbacks_total",
			Help: "Total number of fallback placements after a failed layout pass",
		},
	)

	// PositionsPreservedTotal counts node positions carried across refreshes.
	PositionsPreservedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "topolord_layout_positions_preserved_total",
			Help: "Total number of node positions preserved by reconciliation",
		},
	)
)

func init() {
	prometheus.MustRegister(LayoutsTotal)
	prometheus.MustRegister(LayoutFallbacksTotal)
	prometheus.MustRegister(PositionsPreservedTotal)
}
