// Package dispatch coordinates the request store, the ambulance fleet and the
// activity journal. Every lifecycle change made by the API goes through here.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medi/connect/internal/activity"
	"medi/connect/internal/emergency"

	"github.com/rs/zerolog"
)

// DefaultETA matches the fixed arrival estimate the paramedic console shows.
const DefaultETA = 15 * time.Minute

type Options struct {
	// ETA is added to the dispatch time to produce the estimated arrival.
	ETA time.Duration
	// AutoDispatch attempts a dispatch as soon as a request is created.
	AutoDispatch bool
	Clock        func() time.Time
}

type Dispatcher struct {
	requests *emergency.RequestStore
	fleet    *emergency.Fleet
	journal  activity.Journal
	log      zerolog.Logger
	eta      time.Duration
	auto     bool
	now      func() time.Time
}

func New(requests *emergency.RequestStore, fleet *emergency.Fleet, journal activity.Journal, log zerolog.Logger, opts Options) *Dispatcher {
	if opts.ETA <= 0 {
		opts.ETA = DefaultETA
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if journal == nil {
		journal = activity.NewMemory(0)
	}
	return &Dispatcher{
		requests: requests,
		fleet:    fleet,
		journal:  journal,
		log:      log.With().Str("component", "dispatcher").Logger(),
		eta:      opts.ETA,
		auto:     opts.AutoDispatch,
		now:      opts.Clock,
	}
}

// Create records a new request. With auto-dispatch on, it also tries to
// assign an ambulance; a request that finds none stays requested and is
// still returned without error.
func (d *Dispatcher) Create(ctx context.Context, sub emergency.Submission) (emergency.Request, error) {
	req := d.requests.Create(sub)
	d.log.Info().
		Str("request_id", req.ID).
		Str("priority", string(req.Priority)).
		Msg("request created")
	d.record(ctx, activity.Entry{
		EntityType: activity.EntityRequest,
		EntityID:   req.ID,
		NewValue:   string(emergency.StatusRequested),
		Metadata:   map[string]string{"priority": string(req.Priority)},
	})

	if !d.auto {
		return req, nil
	}

	dispatched, err := d.Dispatch(ctx, req.ID)
	if err == nil {
		return dispatched, nil
	}
	if errors.Is(err, emergency.ErrNoResourceAvailable) {
		return req, nil
	}
	// Someone else moved or removed the request first; report what is there now.
	current, getErr := d.requests.Get(req.ID)
	if getErr != nil {
		return req, nil
	}
	return current, nil
}

// Dispatch assigns the first available ambulance and moves the request to
// dispatched. With no ambulance free the request is left unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, id string) (emergency.Request, error) {
	return d.assign(ctx, id, d.fleet.Acquire)
}

// Accept assigns a specific ambulance, the one a paramedic is crewing, to a
// pending request. The unit must be available.
func (d *Dispatcher) Accept(ctx context.Context, id, resourceID string) (emergency.Request, error) {
	return d.assign(ctx, id, func(requestID string) (emergency.Resource, error) {
		return d.fleet.AcquireByID(resourceID, requestID)
	})
}

// assign runs requested -> dispatched under the request's lock. The unit is
// taken by acquire inside the same critical section and handed back if the
// transition fails.
func (d *Dispatcher) assign(ctx context.Context, id string, acquire func(requestID string) (emergency.Resource, error)) (emergency.Request, error) {
	var unit emergency.Resource
	req, err := d.requests.Update(id, func(cur emergency.Request) (emergency.Request, error) {
		if !emergency.CanTransition(cur.Status, emergency.StatusDispatched) {
			return emergency.Request{}, &emergency.IllegalTransitionError{From: cur.Status, To: emergency.StatusDispatched}
		}
		acquired, err := acquire(cur.ID)
		if err != nil {
			return emergency.Request{}, fmt.Errorf("dispatch request %s: %w", cur.ID, err)
		}
		next, err := emergency.Transition(cur, emergency.StatusDispatched, emergency.TransitionContext{
			Now:      d.now(),
			Resource: &acquired,
			ETA:      d.eta,
		})
		if err != nil {
			if _, relErr := d.fleet.Release(acquired.ID); relErr != nil {
				d.log.Error().Err(relErr).Str("resource_id", acquired.ID).Msg("failed to return ambulance after aborted dispatch")
			}
			return emergency.Request{}, err
		}
		unit = acquired
		return next, nil
	})
	dispatchAttemptsTotal.WithLabelValues(dispatchResult(err)).Inc()
	if err != nil {
		d.log.Warn().Err(err).Str("request_id", id).Msg("dispatch failed")
		return emergency.Request{}, err
	}

	requestTransitionsTotal.WithLabelValues(string(emergency.StatusRequested), string(emergency.StatusDispatched)).Inc()
	d.log.Info().
		Str("request_id", req.ID).
		Str("resource_id", unit.ID).
		Str("call_sign", unit.CallSign).
		Msg("ambulance dispatched")

	d.record(ctx, activity.Entry{
		EntityType: activity.EntityRequest,
		EntityID:   req.ID,
		OldValue:   string(emergency.StatusRequested),
		NewValue:   string(emergency.StatusDispatched),
		Metadata:   map[string]string{"resource_id": unit.ID, "call_sign": unit.CallSign},
	})
	d.record(ctx, activity.Entry{
		EntityType: activity.EntityResource,
		EntityID:   unit.ID,
		OldValue:   string(emergency.AvailabilityAvailable),
		NewValue:   string(emergency.AvailabilityBusy),
		Metadata:   map[string]string{"call_sign": unit.CallSign, "request_id": req.ID},
	})
	return req, nil
}

// UpdateStatus moves a request along its lifecycle. Moving to dispatched
// goes through Dispatch; once completed is committed the ambulance is
// released.
func (d *Dispatcher) UpdateStatus(ctx context.Context, id string, to emergency.Status) (emergency.Request, error) {
	if to == emergency.StatusDispatched {
		return d.Dispatch(ctx, id)
	}

	var from emergency.Status
	req, err := d.requests.Update(id, func(cur emergency.Request) (emergency.Request, error) {
		from = cur.Status
		return emergency.Transition(cur, to, emergency.TransitionContext{Now: d.now()})
	})
	if err != nil {
		d.log.Warn().Err(err).Str("request_id", id).Str("to", string(to)).Msg("status update rejected")
		return emergency.Request{}, err
	}

	requestTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	d.log.Info().
		Str("request_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("request status changed")
	d.record(ctx, activity.Entry{
		EntityType: activity.EntityRequest,
		EntityID:   id,
		OldValue:   string(from),
		NewValue:   string(to),
	})

	if to == emergency.StatusCompleted && req.Ambulance != nil {
		requestLifecycleDurationSeconds.WithLabelValues(string(req.Priority)).Observe(req.UpdatedAt.Sub(req.RequestedAt).Seconds())
		if _, err := d.Release(ctx, req.Ambulance.ID); err != nil {
			d.log.Error().Err(err).
				Str("request_id", id).
				Str("resource_id", req.Ambulance.ID).
				Msg("failed to release ambulance after completion")
		}
	}
	return req, nil
}

// Cancel terminates a request that has not been dispatched. The record is
// kept in the cancelled state.
func (d *Dispatcher) Cancel(ctx context.Context, id string) (emergency.Request, error) {
	req, err := d.requests.Update(id, func(cur emergency.Request) (emergency.Request, error) {
		if cur.Status != emergency.StatusRequested {
			return emergency.Request{}, fmt.Errorf("cancel request %s in status %s: %w", cur.ID, cur.Status, emergency.ErrInvalidState)
		}
		return emergency.Transition(cur, emergency.StatusCancelled, emergency.TransitionContext{Now: d.now()})
	})
	if err != nil {
		return emergency.Request{}, err
	}

	requestTransitionsTotal.WithLabelValues(string(emergency.StatusRequested), string(emergency.StatusCancelled)).Inc()
	d.log.Info().Str("request_id", id).Msg("request cancelled")
	d.record(ctx, activity.Entry{
		EntityType: activity.EntityRequest,
		EntityID:   id,
		OldValue:   string(emergency.StatusRequested),
		NewValue:   string(emergency.StatusCancelled),
	})
	return req, nil
}

// Remove deletes a request that has not been dispatched.
func (d *Dispatcher) Remove(ctx context.Context, id string) error {
	if err := d.requests.Remove(id); err != nil {
		return err
	}
	d.log.Info().Str("request_id", id).Msg("request removed")
	d.record(ctx, activity.Entry{
		EntityType: activity.EntityRequest,
		EntityID:   id,
		OldValue:   string(emergency.StatusRequested),
		NewValue:   "removed",
	})
	return nil
}

// Release returns a busy ambulance to the pool once the request holding it
// has finished. UpdateStatus calls it after committing completed; it refuses
// while the holder is still active.
func (d *Dispatcher) Release(ctx context.Context, resourceID string) (emergency.Resource, error) {
	unit, err := d.fleet.Get(resourceID)
	if err != nil {
		return emergency.Resource{}, err
	}
	if unit.Availability == emergency.AvailabilityBusy && unit.RequestID != "" {
		holder, err := d.requests.Get(unit.RequestID)
		if err == nil && !holder.Status.Terminal() {
			return emergency.Resource{}, fmt.Errorf("resource %s is assigned to %s request %s: %w",
				resourceID, holder.Status, holder.ID, emergency.ErrInvalidState)
		}
	}

	released, err := d.fleet.Release(resourceID)
	if err != nil {
		return emergency.Resource{}, err
	}
	d.log.Info().Str("resource_id", resourceID).Str("request_id", unit.RequestID).Msg("ambulance released")
	d.record(ctx, activity.Entry{
		EntityType: activity.EntityResource,
		EntityID:   resourceID,
		OldValue:   string(emergency.AvailabilityBusy),
		NewValue:   string(emergency.AvailabilityAvailable),
		Metadata:   map[string]string{"call_sign": released.CallSign, "request_id": unit.RequestID},
	})
	return released, nil
}

func (d *Dispatcher) Get(id string) (emergency.Request, error) {
	return d.requests.Get(id)
}

// List returns requests in insertion order, optionally filtered by status.
func (d *Dispatcher) List(statuses ...emergency.Status) []emergency.Request {
	return d.requests.ListByStatus(statuses...)
}

func (d *Dispatcher) Resources() []emergency.Resource {
	return d.fleet.List()
}

func (d *Dispatcher) FleetCounts() map[emergency.Availability]int {
	return d.fleet.Counts()
}

func (d *Dispatcher) AddResource(ctx context.Context, res emergency.Resource) (emergency.Resource, error) {
	added, err := d.fleet.Add(res)
	if err != nil {
		return emergency.Resource{}, err
	}
	d.log.Info().Str("resource_id", added.ID).Str("call_sign", added.CallSign).Msg("ambulance registered")
	d.record(ctx, activity.Entry{
		EntityType: activity.EntityResource,
		EntityID:   added.ID,
		NewValue:   string(added.Availability),
		Metadata:   map[string]string{"call_sign": added.CallSign},
	})
	return added, nil
}

// SetAvailability toggles an idle ambulance between available and offline.
func (d *Dispatcher) SetAvailability(ctx context.Context, resourceID string, a emergency.Availability) (emergency.Resource, error) {
	before, err := d.fleet.Get(resourceID)
	if err != nil {
		return emergency.Resource{}, err
	}
	after, err := d.fleet.SetAvailability(resourceID, a)
	if err != nil {
		return emergency.Resource{}, err
	}
	if before.Availability != after.Availability {
		d.record(ctx, activity.Entry{
			EntityType: activity.EntityResource,
			EntityID:   resourceID,
			OldValue:   string(before.Availability),
			NewValue:   string(after.Availability),
			Metadata:   map[string]string{"call_sign": after.CallSign},
		})
	}
	return after, nil
}

// Recent lists the latest journal entries, newest first.
func (d *Dispatcher) Recent(ctx context.Context, limit int) ([]activity.Entry, error) {
	return d.journal.Recent(ctx, limit)
}

// record writes to the journal after a change is committed. Journal
// failures never undo the change.
func (d *Dispatcher) record(ctx context.Context, e activity.Entry) {
	e.ActivityType = activity.ActivityStatusChange
	if e.Actor == "" {
		e.Actor = ActorFromContext(ctx)
	}
	if _, err := d.journal.Record(ctx, e); err != nil {
		d.log.Warn().Err(err).
			Str("entity_type", e.EntityType).
			Str("entity_id", e.EntityID).
			Msg("failed to record activity")
	}
}
