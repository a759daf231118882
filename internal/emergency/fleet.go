package emergency

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Fleet is the ambulance roster. Scan order is registration order, which
// makes first-available assignment deterministic.
type Fleet struct {
	mu    sync.Mutex
	order []string
	units map[string]*Resource
}

func NewFleet() *Fleet {
	return &Fleet{units: make(map[string]*Resource)}
}

// Add registers an ambulance. An empty id gets a generated one and an empty
// availability defaults to available. Units cannot be registered busy.
func (f *Fleet) Add(res Resource) (Resource, error) {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	switch res.Availability {
	case "":
		res.Availability = AvailabilityAvailable
	case AvailabilityAvailable, AvailabilityOffline:
	default:
		return Resource{}, fmt.Errorf("register %s as %s: %w", res.ID, res.Availability, ErrInvalidState)
	}
	res.RequestID = ""

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.units[res.ID]; exists {
		return Resource{}, fmt.Errorf("resource %s already registered: %w", res.ID, ErrInvalidState)
	}
	unit := res
	f.units[res.ID] = &unit
	f.order = append(f.order, res.ID)
	return res, nil
}

func (f *Fleet) Get(id string) (Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unit, ok := f.units[id]
	if !ok {
		return Resource{}, fmt.Errorf("resource %s: %w", id, ErrNotFound)
	}
	return *unit, nil
}

func (f *Fleet) List() []Resource {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Resource, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.units[id])
	}
	return out
}

// Acquire marks the first available ambulance busy on behalf of requestID.
// The scan and the mark happen under one lock.
func (f *Fleet) Acquire(requestID string) (Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		unit := f.units[id]
		if unit.Availability != AvailabilityAvailable {
			continue
		}
		unit.Availability = AvailabilityBusy
		unit.RequestID = requestID
		return *unit, nil
	}
	return Resource{}, ErrNoResourceAvailable
}

// AcquireByID marks one specific ambulance busy on behalf of requestID. It
// fails with ErrInvalidState unless the unit is available.
func (f *Fleet) AcquireByID(id, requestID string) (Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unit, ok := f.units[id]
	if !ok {
		return Resource{}, fmt.Errorf("resource %s: %w", id, ErrNotFound)
	}
	if unit.Availability != AvailabilityAvailable {
		return Resource{}, fmt.Errorf("acquire resource %s while %s: %w", id, unit.Availability, ErrInvalidState)
	}
	unit.Availability = AvailabilityBusy
	unit.RequestID = requestID
	return *unit, nil
}

// Release returns a busy ambulance to the available pool.
func (f *Fleet) Release(id string) (Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unit, ok := f.units[id]
	if !ok {
		return Resource{}, fmt.Errorf("resource %s: %w", id, ErrNotFound)
	}
	if unit.Availability != AvailabilityBusy {
		return Resource{}, fmt.Errorf("release resource %s while %s: %w", id, unit.Availability, ErrInvalidState)
	}
	unit.Availability = AvailabilityAvailable
	unit.RequestID = ""
	return *unit, nil
}

// SetAvailability toggles an idle ambulance between available and offline.
// Busy is owned by dispatch and release and cannot be set or cleared here.
func (f *Fleet) SetAvailability(id string, a Availability) (Resource, error) {
	if a != AvailabilityAvailable && a != AvailabilityOffline {
		return Resource{}, fmt.Errorf("set resource %s to %s: %w", id, a, ErrInvalidState)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	unit, ok := f.units[id]
	if !ok {
		return Resource{}, fmt.Errorf("resource %s: %w", id, ErrNotFound)
	}
	if unit.Availability == AvailabilityBusy {
		return Resource{}, fmt.Errorf("resource %s is busy: %w", id, ErrInvalidState)
	}
	unit.Availability = a
	return *unit, nil
}

// Counts tallies ambulances per availability.
func (f *Fleet) Counts() map[Availability]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[Availability]int{
		AvailabilityAvailable: 0,
		AvailabilityBusy:      0,
		AvailabilityOffline:   0,
	}
	for _, unit := range f.units {
		out[unit.Availability]++
	}
	return out
}
