package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"medi/connect/internal/activity"
	"medi/connect/internal/emergency"

	"github.com/rs/zerolog"
)

// --- Test helpers ---

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(t *testing.T, auto bool, units ...emergency.Resource) (*Dispatcher, *activity.Memory) {
	t.Helper()
	fleet := emergency.NewFleet()
	for _, u := range units {
		if _, err := fleet.Add(u); err != nil {
			t.Fatalf("add unit %s: %v", u.ID, err)
		}
	}
	journal := activity.NewMemory(100)
	clock := func() time.Time { return testNow }
	d := New(emergency.NewRequestStore(clock), fleet, journal, zerolog.Nop(), Options{
		AutoDispatch: auto,
		Clock:        clock,
	})
	return d, journal
}

func mustCreate(t *testing.T, d *Dispatcher, p emergency.Priority) emergency.Request {
	t.Helper()
	req, err := d.Create(context.Background(), emergency.Submission{Priority: p})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return req
}

func unitAvailability(t *testing.T, d *Dispatcher, id string) emergency.Availability {
	t.Helper()
	for _, u := range d.Resources() {
		if u.ID == id {
			return u.Availability
		}
	}
	t.Fatalf("unit %s not in fleet", id)
	return ""
}

// --- Tests ---

func TestDispatchLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, false, emergency.Resource{ID: "A1", CallSign: "A-101"})

	r1 := mustCreate(t, d, emergency.PriorityCritical)

	got, err := d.Dispatch(ctx, r1.ID)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got.Status != emergency.StatusDispatched {
		t.Errorf("status = %s", got.Status)
	}
	if got.Ambulance == nil || got.Ambulance.ID != "A1" {
		t.Fatalf("ambulance = %+v", got.Ambulance)
	}
	if !got.EstimatedArrival.Equal(testNow.Add(DefaultETA)) {
		t.Errorf("eta = %v", got.EstimatedArrival)
	}
	if a := unitAvailability(t, d, "A1"); a != emergency.AvailabilityBusy {
		t.Errorf("A1 = %s, want busy", a)
	}

	_, err = d.UpdateStatus(ctx, r1.ID, emergency.StatusArrived)
	var ite *emergency.IllegalTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("skip to arrived: err = %v, want IllegalTransitionError", err)
	}
	if cur, _ := d.Get(r1.ID); cur.Status != emergency.StatusDispatched {
		t.Errorf("rejected update changed status to %s", cur.Status)
	}

	for _, to := range []emergency.Status{emergency.StatusEnRoute, emergency.StatusArrived, emergency.StatusCompleted} {
		if _, err := d.UpdateStatus(ctx, r1.ID, to); err != nil {
			t.Fatalf("-> %s: %v", to, err)
		}
	}

	final, _ := d.Get(r1.ID)
	if final.Status != emergency.StatusCompleted {
		t.Errorf("final status = %s", final.Status)
	}
	if final.Ambulance == nil {
		t.Error("completed request lost its ambulance")
	}
	if final.EstimatedArrival != nil {
		t.Error("completed request kept an estimated arrival")
	}
	if a := unitAvailability(t, d, "A1"); a != emergency.AvailabilityAvailable {
		t.Errorf("A1 = %s after completion, want available", a)
	}
}

func TestDispatchWithoutAvailableUnit(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, false, emergency.Resource{ID: "A1", Availability: emergency.AvailabilityOffline})
	req := mustCreate(t, d, emergency.PriorityUrgent)

	if _, err := d.Dispatch(ctx, req.ID); !errors.Is(err, emergency.ErrNoResourceAvailable) {
		t.Fatalf("err = %v, want ErrNoResourceAvailable", err)
	}
	cur, _ := d.Get(req.ID)
	if cur.Status != emergency.StatusRequested || cur.Ambulance != nil {
		t.Errorf("request changed: %+v", cur)
	}
}

func TestDispatchEmptyFleet(t *testing.T) {
	d, _ := newTestDispatcher(t, false)
	req := mustCreate(t, d, emergency.PriorityStandard)
	if _, err := d.Dispatch(context.Background(), req.ID); !errors.Is(err, emergency.ErrNoResourceAvailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestDispatchTwiceDoesNotTakeSecondUnit(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, false, emergency.Resource{ID: "A1"}, emergency.Resource{ID: "A2"})
	req := mustCreate(t, d, emergency.PriorityUrgent)

	if _, err := d.Dispatch(ctx, req.ID); err != nil {
		t.Fatal(err)
	}
	_, err := d.Dispatch(ctx, req.ID)
	var ite *emergency.IllegalTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("second dispatch err = %v", err)
	}
	if a := unitAvailability(t, d, "A2"); a != emergency.AvailabilityAvailable {
		t.Errorf("A2 = %s, want available", a)
	}
}

func TestDispatchUnknownRequest(t *testing.T) {
	d, _ := newTestDispatcher(t, false, emergency.Resource{ID: "A1"})
	if _, err := d.Dispatch(context.Background(), "nope"); !errors.Is(err, emergency.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if a := unitAvailability(t, d, "A1"); a != emergency.AvailabilityAvailable {
		t.Errorf("A1 = %s", a)
	}
}

func TestConcurrentDispatchSingleUnit(t *testing.T) {
	ctx := context.Background()
	for round := 0; round < 20; round++ {
		d, _ := newTestDispatcher(t, false, emergency.Resource{ID: "A1"})
		r1 := mustCreate(t, d, emergency.PriorityCritical)
		r2 := mustCreate(t, d, emergency.PriorityCritical)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, id := range []string{r1.ID, r2.ID} {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				_, errs[i] = d.Dispatch(ctx, id)
			}(i, id)
		}
		wg.Wait()

		ok, noUnit := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, emergency.ErrNoResourceAvailable):
				noUnit++
			default:
				t.Fatalf("unexpected err: %v", err)
			}
		}
		if ok != 1 || noUnit != 1 {
			t.Fatalf("round %d: %d succeeded, %d found no unit", round, ok, noUnit)
		}

		dispatched := d.List(emergency.StatusDispatched)
		if len(dispatched) != 1 || dispatched[0].Ambulance.ID != "A1" {
			t.Fatalf("dispatched = %+v", dispatched)
		}
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, false, emergency.Resource{ID: "A1"})

	open := mustCreate(t, d, emergency.PriorityStandard)
	got, err := d.Cancel(ctx, open.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != emergency.StatusCancelled || got.Ambulance != nil {
		t.Errorf("cancelled = %+v", got)
	}
	if _, err := d.UpdateStatus(ctx, open.ID, emergency.StatusDispatched); err == nil {
		t.Error("dispatching a cancelled request succeeded")
	}

	busy := mustCreate(t, d, emergency.PriorityStandard)
	if _, err := d.Dispatch(ctx, busy.ID); err != nil {
		t.Fatal(err)
	}
	for _, to := range []emergency.Status{"", emergency.StatusEnRoute, emergency.StatusArrived, emergency.StatusCompleted} {
		if to != "" {
			if _, err := d.UpdateStatus(ctx, busy.ID, to); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := d.Cancel(ctx, busy.ID); !errors.Is(err, emergency.ErrInvalidState) {
			t.Errorf("cancel after %v: err = %v, want ErrInvalidState", to, err)
		}
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	d, journal := newTestDispatcher(t, false, emergency.Resource{ID: "A1"})

	req := mustCreate(t, d, emergency.PriorityUrgent)
	if err := d.Remove(ctx, req.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := d.Get(req.ID); !errors.Is(err, emergency.ErrNotFound) {
		t.Errorf("get removed: %v", err)
	}
	entries, _ := journal.Recent(ctx, 1)
	if entries[0].NewValue != "removed" {
		t.Errorf("journal head = %+v", entries[0])
	}

	dispatched := mustCreate(t, d, emergency.PriorityUrgent)
	if _, err := d.Dispatch(ctx, dispatched.ID); err != nil {
		t.Fatal(err)
	}
	if err := d.Remove(ctx, dispatched.ID); !errors.Is(err, emergency.ErrInvalidState) {
		t.Errorf("remove dispatched: %v", err)
	}
}

func TestAutoDispatchOnCreate(t *testing.T) {
	d, _ := newTestDispatcher(t, true, emergency.Resource{ID: "A1"})

	first := mustCreate(t, d, emergency.PriorityCritical)
	if first.Status != emergency.StatusDispatched || first.Ambulance.ID != "A1" {
		t.Errorf("first = %+v", first)
	}

	second := mustCreate(t, d, emergency.PriorityCritical)
	if second.Status != emergency.StatusRequested {
		t.Errorf("second = %s, want requested while no unit is free", second.Status)
	}
}

func TestReleaseGuardsActiveAssignment(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, false, emergency.Resource{ID: "A1"})
	req := mustCreate(t, d, emergency.PriorityUrgent)
	if _, err := d.Dispatch(ctx, req.ID); err != nil {
		t.Fatal(err)
	}

	for _, to := range []emergency.Status{"", emergency.StatusEnRoute, emergency.StatusArrived} {
		if to != "" {
			if _, err := d.UpdateStatus(ctx, req.ID, to); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := d.Release(ctx, "A1"); !errors.Is(err, emergency.ErrInvalidState) {
			t.Errorf("release while %v: err = %v, want ErrInvalidState", to, err)
		}
	}
	if _, err := d.Release(ctx, "missing"); !errors.Is(err, emergency.ErrNotFound) {
		t.Errorf("release unknown: %v", err)
	}
}

func TestReleaseAfterHolderFinished(t *testing.T) {
	ctx := context.Background()
	d, journal := newTestDispatcher(t, false, emergency.Resource{ID: "A1", CallSign: "A-101"})
	req := mustCreate(t, d, emergency.PriorityUrgent)
	if _, err := d.Dispatch(ctx, req.ID); err != nil {
		t.Fatal(err)
	}
	// Finish the request straight through the store so the unit is still held.
	for _, to := range []emergency.Status{emergency.StatusEnRoute, emergency.StatusArrived, emergency.StatusCompleted} {
		if _, err := d.requests.Update(req.ID, func(cur emergency.Request) (emergency.Request, error) {
			return emergency.Transition(cur, to, emergency.TransitionContext{Now: testNow})
		}); err != nil {
			t.Fatalf("-> %s: %v", to, err)
		}
	}
	if a := unitAvailability(t, d, "A1"); a != emergency.AvailabilityBusy {
		t.Fatalf("A1 = %s, want busy before release", a)
	}

	got, err := d.Release(ctx, "A1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if got.Availability != emergency.AvailabilityAvailable || got.RequestID != "" {
		t.Errorf("released unit = %+v", got)
	}
	entries, _ := journal.Recent(ctx, 1)
	head := entries[0]
	if head.EntityID != "A1" || head.NewValue != "available" || head.Metadata["request_id"] != req.ID {
		t.Errorf("journal head = %+v", head)
	}

	if _, err := d.Release(ctx, "A1"); !errors.Is(err, emergency.ErrInvalidState) {
		t.Errorf("second release: err = %v, want ErrInvalidState", err)
	}
}

func TestCompletionReleasesThroughRelease(t *testing.T) {
	ctx := context.Background()
	d, journal := newTestDispatcher(t, false, emergency.Resource{ID: "A1", CallSign: "A-101"})
	req := mustCreate(t, d, emergency.PriorityCritical)
	if _, err := d.Dispatch(ctx, req.ID); err != nil {
		t.Fatal(err)
	}
	for _, to := range []emergency.Status{emergency.StatusEnRoute, emergency.StatusArrived, emergency.StatusCompleted} {
		if _, err := d.UpdateStatus(ctx, req.ID, to); err != nil {
			t.Fatalf("-> %s: %v", to, err)
		}
	}

	entries, _ := journal.Recent(ctx, 2)
	released, completed := entries[0], entries[1]
	if released.EntityType != activity.EntityResource || released.OldValue != "busy" || released.NewValue != "available" {
		t.Errorf("release entry = %+v", released)
	}
	if completed.EntityID != req.ID || completed.NewValue != "completed" {
		t.Errorf("completion entry = %+v", completed)
	}

	final, _ := d.Get(req.ID)
	if final.Ambulance.Availability != emergency.AvailabilityAvailable || final.Ambulance.RequestID != "" {
		t.Errorf("completed request still shows the unit held: %+v", final.Ambulance)
	}

	next := mustCreate(t, d, emergency.PriorityStandard)
	if got, err := d.Dispatch(ctx, next.ID); err != nil || got.Ambulance.ID != "A1" {
		t.Fatalf("redispatch = %+v, %v", got, err)
	}
}

func TestAcceptWithOwnUnit(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, false, emergency.Resource{ID: "A1"}, emergency.Resource{ID: "A2", CallSign: "A-102"})
	req := mustCreate(t, d, emergency.PriorityUrgent)

	got, err := d.Accept(ctx, req.ID, "A2")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != emergency.StatusDispatched || got.Ambulance == nil || got.Ambulance.ID != "A2" {
		t.Fatalf("accepted = %+v", got)
	}
	if !got.EstimatedArrival.Equal(testNow.Add(DefaultETA)) {
		t.Errorf("eta = %v", got.EstimatedArrival)
	}
	if a := unitAvailability(t, d, "A1"); a != emergency.AvailabilityAvailable {
		t.Errorf("A1 = %s, want untouched", a)
	}

	other := mustCreate(t, d, emergency.PriorityUrgent)
	if _, err := d.Accept(ctx, other.ID, "A2"); !errors.Is(err, emergency.ErrInvalidState) {
		t.Errorf("accept with busy unit: err = %v, want ErrInvalidState", err)
	}
	if _, err := d.Accept(ctx, other.ID, "A9"); !errors.Is(err, emergency.ErrNotFound) {
		t.Errorf("accept with unknown unit: err = %v, want ErrNotFound", err)
	}
	if cur, _ := d.Get(other.ID); cur.Status != emergency.StatusRequested || cur.Ambulance != nil {
		t.Errorf("failed accept changed the request: %+v", cur)
	}
	if _, err := d.Accept(ctx, req.ID, "A1"); err == nil {
		t.Error("accepting an already dispatched request succeeded")
	}
	if a := unitAvailability(t, d, "A1"); a != emergency.AvailabilityAvailable {
		t.Errorf("A1 = %s after rejected accept, want available", a)
	}
}

func TestConcurrentAcceptSameUnit(t *testing.T) {
	ctx := context.Background()
	for round := 0; round < 20; round++ {
		d, _ := newTestDispatcher(t, false, emergency.Resource{ID: "A1"}, emergency.Resource{ID: "A2"})
		r1 := mustCreate(t, d, emergency.PriorityCritical)
		r2 := mustCreate(t, d, emergency.PriorityCritical)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, id := range []string{r1.ID, r2.ID} {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				_, errs[i] = d.Accept(ctx, id, "A1")
			}(i, id)
		}
		wg.Wait()

		won, lost := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				won++
			case errors.Is(err, emergency.ErrInvalidState):
				lost++
			default:
				t.Fatalf("unexpected err: %v", err)
			}
		}
		if won != 1 || lost != 1 {
			t.Fatalf("round %d: %d won, %d lost", round, won, lost)
		}
		if len(d.List(emergency.StatusDispatched)) != 1 || len(d.List(emergency.StatusRequested)) != 1 {
			t.Fatalf("round %d: requests = %+v", round, d.List())
		}
		if a := unitAvailability(t, d, "A2"); a != emergency.AvailabilityAvailable {
			t.Fatalf("round %d: A2 = %s, want available", round, a)
		}
	}
}

func TestSetAvailability(t *testing.T) {
	ctx := context.Background()
	d, journal := newTestDispatcher(t, false, emergency.Resource{ID: "A1", CallSign: "A-101"})

	got, err := d.SetAvailability(ctx, "A1", emergency.AvailabilityOffline)
	if err != nil {
		t.Fatal(err)
	}
	if got.Availability != emergency.AvailabilityOffline {
		t.Errorf("availability = %s", got.Availability)
	}
	entries, _ := journal.Recent(ctx, 1)
	if entries[0].EntityType != activity.EntityResource || entries[0].NewValue != "offline" {
		t.Errorf("journal head = %+v", entries[0])
	}
	counts := d.FleetCounts()
	if counts[emergency.AvailabilityOffline] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestJournalRecordsTransitionsWithActor(t *testing.T) {
	ctx := WithActor(context.Background(), "medic-7")
	d, journal := newTestDispatcher(t, false, emergency.Resource{ID: "A1", CallSign: "A-101"})

	req, err := d.Create(ctx, emergency.Submission{Priority: emergency.PriorityCritical})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Dispatch(ctx, req.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := d.UpdateStatus(ctx, req.ID, emergency.StatusEnRoute); err != nil {
		t.Fatal(err)
	}

	entries, _ := journal.Recent(ctx, 0)
	// create, dispatch (request + resource), en-route
	if len(entries) != 4 {
		t.Fatalf("entries = %d: %+v", len(entries), entries)
	}
	head := entries[0]
	if head.OldValue != "dispatched" || head.NewValue != "en-route" || head.Actor != "medic-7" {
		t.Errorf("head = %+v", head)
	}
	if entries[1].EntityType != activity.EntityResource || entries[1].Metadata["request_id"] != req.ID {
		t.Errorf("resource entry = %+v", entries[1])
	}
}

type failingJournal struct{}

func (failingJournal) Record(context.Context, activity.Entry) (activity.Entry, error) {
	return activity.Entry{}, errors.New("journal down")
}
func (failingJournal) Recent(context.Context, int) ([]activity.Entry, error) { return nil, nil }

func TestJournalFailureDoesNotUndoChange(t *testing.T) {
	fleet := emergency.NewFleet()
	_, _ = fleet.Add(emergency.Resource{ID: "A1"})
	d := New(emergency.NewRequestStore(nil), fleet, failingJournal{}, zerolog.Nop(), Options{})

	req, err := d.Create(context.Background(), emergency.Submission{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := d.Dispatch(context.Background(), req.ID)
	if err != nil || got.Status != emergency.StatusDispatched {
		t.Fatalf("dispatch = %+v, %v", got, err)
	}
}
