package emergency

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for an unknown request or resource id.
	ErrNotFound = errors.New("not found")
	// ErrNoResourceAvailable is returned when a dispatch finds no available ambulance.
	ErrNoResourceAvailable = errors.New("no resource available")
	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("invalid state")
)

// IllegalTransitionError names a status pair outside the legal edge set.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}
