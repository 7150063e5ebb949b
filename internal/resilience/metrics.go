package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors for outbound calls, labelled by the remote dependency.
var (
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "toko",
		Name:      "breaker_state",
		Help:      "Breaker state: 0=closed, 1=open, 2=half-open.",
	}, []string{"target"})
	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toko",
		Name:      "breaker_transition_total",
		Help:      "Breaker state transitions.",
	}, []string{"target", "from", "to"})
	BreakerOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toko",
		Name:      "breaker_open_total",
		Help:      "Times a breaker tripped open.",
	}, []string{"target"})
	OutboundAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toko",
		Name:      "outbound_attempts_total",
		Help:      "Outbound HTTP attempts by outcome.",
	}, []string{"target", "outcome"})
)
