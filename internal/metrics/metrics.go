package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sweep counters. Registered on the default registry and exposed on /metrics
// when metrics are enabled.
var (
	SweepTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "class_sweep_transitions_total",
		Help: "Session status transitions applied by the batch status sweep.",
	}, []string{"transition"})

	SweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "class_sweep_failures_total",
		Help: "Rows the batch status sweep failed to advance.",
	})

	TrialConversions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trial_conversions_total",
		Help: "Student profiles converted from trial to regular.",
	})
)
