package discovery

import "github.com/prometheus/client_golang/prometheus"

var (
	PollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topolord_discovery_polls_total",
			Help: "Discovery sweeps by provider and outcome.",
		},
		[]string{"provider", "status"},
	)

	ServicesDiscovered = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "topolord_discovery_services",
			Help: "Services reported by the last sweep of each provider.",
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(PollsTotal)
	prometheus.MustRegister(ServicesDiscovered)
}
