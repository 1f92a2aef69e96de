package resilience

import "github.com/prometheus/client_golang/prometheus"

var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "loyalty_breaker_state",
			Help: "Current breaker state per backend target: 0=closed,1=open,2=half-open",
		},
		[]string{"target"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_breaker_transition_total",
			Help: "Count of breaker state transitions by the endpoint whose call caused them",
		},
		[]string{"target", "endpoint", "from", "to"},
	)
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_breaker_open_total",
			Help: "Number of times a breaker opened, by the endpoint that tripped it",
		},
		[]string{"target", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}
