package emergency

import (
	"fmt"
	"time"
)

var transitions = map[Status][]Status{
	StatusRequested:  {StatusDispatched, StatusCancelled},
	StatusDispatched: {StatusEnRoute},
	StatusEnRoute:    {StatusArrived},
	StatusArrived:    {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// TransitionContext carries what a transition may need beyond the request itself.
type TransitionContext struct {
	Now time.Time
	// Resource is required for requested -> dispatched.
	Resource *Resource
	// ETA is added to Now to produce the estimated arrival on dispatch.
	ETA time.Duration
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable in one step from s.
func NextStatuses(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// Transition validates and applies a status change. It never mutates current.
func Transition(current Request, to Status, tc TransitionContext) (Request, error) {
	if !CanTransition(current.Status, to) {
		return Request{}, &IllegalTransitionError{From: current.Status, To: to}
	}

	now := tc.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	next := current.clone()
	next.Status = to
	next.UpdatedAt = now

	switch to {
	case StatusDispatched:
		if tc.Resource == nil {
			return Request{}, fmt.Errorf("dispatch %s: %w", current.ID, ErrNoResourceAvailable)
		}
		amb := *tc.Resource
		amb.Availability = AvailabilityBusy
		amb.RequestID = current.ID
		next.Ambulance = &amb
		eta := now.Add(tc.ETA)
		next.EstimatedArrival = &eta
	case StatusArrived:
		next.EstimatedArrival = nil
	case StatusCompleted:
		next.EstimatedArrival = nil
		// The unit goes back to the pool; the snapshot only names who served.
		if next.Ambulance != nil {
			next.Ambulance.Availability = AvailabilityAvailable
			next.Ambulance.RequestID = ""
		}
	case StatusCancelled:
		next.Ambulance = nil
		next.EstimatedArrival = nil
	}

	return next, nil
}
