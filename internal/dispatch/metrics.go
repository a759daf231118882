package dispatch

import (
	"errors"

	"medi/connect/internal/emergency"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	dispatchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_attempts_total",
			Help: "Dispatch attempts by outcome.",
		},
		[]string{"result"},
	)

	requestTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_transitions_total",
			Help: "Committed request status transitions.",
		},
		[]string{"from", "to"},
	)

	requestLifecycleDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_lifecycle_duration_seconds",
			Help:    "Time from request creation to completion.",
			Buckets: []float64{60, 120, 300, 600, 900, 1200, 1800, 2700, 3600, 5400, 7200},
		},
		[]string{"priority"},
	)
)

func init() {
	prometheus.MustRegister(
		dispatchAttemptsTotal,
		requestTransitionsTotal,
		requestLifecycleDurationSeconds,
	)
}

func dispatchResult(err error) string {
	var ite *emergency.IllegalTransitionError
	switch {
	case err == nil:
		return "dispatched"
	case errors.Is(err, emergency.ErrNoResourceAvailable):
		return "no_resource"
	case errors.Is(err, emergency.ErrNotFound):
		return "not_found"
	case errors.Is(err, emergency.ErrInvalidState):
		return "invalid_state"
	case errors.As(err, &ite):
		return "illegal_transition"
	}
	return "error"
}
