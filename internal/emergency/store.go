package emergency

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	mu      sync.Mutex
	req     Request
	removed bool
}

// RequestStore is the single owner of request state. Each request id has its
// own lock so updates to one request never wait on another.
//
// Lock order: an entry lock may be taken before the store lock, never after.
type RequestStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	now     func() time.Time
}

// NewRequestStore returns an empty store. A nil clock means time.Now in UTC.
func NewRequestStore(clock func() time.Time) *RequestStore {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &RequestStore{
		entries: make(map[string]*entry),
		now:     clock,
	}
}

// Create records a new request in the requested state.
func (s *RequestStore) Create(sub Submission) Request {
	now := s.now()
	req := Request{
		ID:          uuid.NewString(),
		Patient:     sub.Patient,
		Location:    sub.Location,
		Priority:    sub.Priority,
		Description: sub.Description,
		Status:      StatusRequested,
		RequestedAt: now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.entries[req.ID] = &entry{req: req}
	s.order = append(s.order, req.ID)
	s.mu.Unlock()

	return req.clone()
}

func (s *RequestStore) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Get returns a copy of the request.
func (s *RequestStore) Get(id string) (Request, error) {
	e, ok := s.lookup(id)
	if !ok {
		return Request{}, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Request{}, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return e.req.clone(), nil
}

// Update runs mutate on a copy of the request while holding the request's
// lock and commits the result only if mutate succeeds. The id and creation
// time cannot be changed. A request in a terminal state is rejected before
// mutate runs.
func (s *RequestStore) Update(id string, mutate func(Request) (Request, error)) (Request, error) {
	e, ok := s.lookup(id)
	if !ok {
		return Request{}, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Request{}, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}

	if e.req.Status.Terminal() {
		return Request{}, fmt.Errorf("request %s is %s: %w", id, e.req.Status, ErrInvalidState)
	}
	next, err := mutate(e.req.clone())
	if err != nil {
		return Request{}, err
	}
	next.ID = e.req.ID
	next.RequestedAt = e.req.RequestedAt
	e.req = next.clone()
	return next, nil
}

// Remove deletes a request that has not been dispatched yet.
func (s *RequestStore) Remove(id string) error {
	e, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	if e.req.Status != StatusRequested {
		return fmt.Errorf("remove request %s in status %s: %w", id, e.req.Status, ErrInvalidState)
	}
	e.removed = true

	s.mu.Lock()
	delete(s.entries, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// List returns every request in insertion order.
func (s *RequestStore) List() []Request {
	return s.ListByStatus()
}

// ListByStatus returns requests whose status is one of statuses, in insertion
// order. No statuses means no filter.
func (s *RequestStore) ListByStatus(statuses ...Status) []Request {
	s.mu.RLock()
	snapshot := make([]*entry, 0, len(s.order))
	for _, id := range s.order {
		snapshot = append(snapshot, s.entries[id])
	}
	s.mu.RUnlock()

	want := make(map[Status]struct{}, len(statuses))
	for _, st := range statuses {
		want[st] = struct{}{}
	}

	out := make([]Request, 0, len(snapshot))
	for _, e := range snapshot {
		e.mu.Lock()
		req, removed := e.req, e.removed
		if !removed {
			req = req.clone()
		}
		e.mu.Unlock()
		if removed {
			continue
		}
		if len(want) > 0 {
			if _, ok := want[req.Status]; !ok {
				continue
			}
		}
		out = append(out, req)
	}
	return out
}
