package emergency

import (
	"errors"
	"testing"
	"time"
)

var allStatuses = []Status{
	StatusRequested, StatusDispatched, StatusEnRoute,
	StatusArrived, StatusCompleted, StatusCancelled,
}

func TestCanTransitionEdgeSet(t *testing.T) {
	legal := map[[2]Status]bool{
		{StatusRequested, StatusDispatched}: true,
		{StatusDispatched, StatusEnRoute}:   true,
		{StatusEnRoute, StatusArrived}:      true,
		{StatusArrived, StatusCompleted}:    true,
		{StatusRequested, StatusCancelled}:  true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := legal[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
		if next := NextStatuses(s); len(next) != 0 {
			t.Errorf("NextStatuses(%s) = %v, want none", s, next)
		}
	}
}

func TestTransitionDispatchAssignsResourceAndETA(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	req := Request{ID: "r1", Status: StatusRequested, RequestedAt: now}
	amb := &Resource{ID: "amb-001", CallSign: "A-101", Availability: AvailabilityAvailable}

	got, err := Transition(req, StatusDispatched, TransitionContext{Now: now, Resource: amb, ETA: 15 * time.Minute})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got.Status != StatusDispatched {
		t.Errorf("status = %s", got.Status)
	}
	if got.Ambulance == nil || got.Ambulance.ID != "amb-001" {
		t.Fatalf("ambulance = %+v", got.Ambulance)
	}
	if got.Ambulance.Availability != AvailabilityBusy || got.Ambulance.RequestID != "r1" {
		t.Errorf("ambulance snapshot = %+v, want busy for r1", got.Ambulance)
	}
	if got.EstimatedArrival == nil || !got.EstimatedArrival.Equal(now.Add(15*time.Minute)) {
		t.Errorf("estimated arrival = %v", got.EstimatedArrival)
	}
	if req.Ambulance != nil || req.Status != StatusRequested {
		t.Error("input request was mutated")
	}
}

func TestTransitionDispatchWithoutResource(t *testing.T) {
	req := Request{ID: "r1", Status: StatusRequested}
	_, err := Transition(req, StatusDispatched, TransitionContext{})
	if !errors.Is(err, ErrNoResourceAvailable) {
		t.Fatalf("err = %v, want ErrNoResourceAvailable", err)
	}
}

func TestTransitionIllegalPairs(t *testing.T) {
	cases := []struct {
		from, to Status
	}{
		{StatusRequested, StatusCompleted},
		{StatusRequested, StatusArrived},
		{StatusDispatched, StatusArrived},
		{StatusArrived, StatusDispatched},
		{StatusCompleted, StatusRequested},
		{StatusCancelled, StatusDispatched},
		{StatusDispatched, StatusCancelled},
		{StatusEnRoute, StatusEnRoute},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			_, err := Transition(Request{ID: "r", Status: tc.from}, tc.to, TransitionContext{Resource: &Resource{ID: "a"}})
			var ite *IllegalTransitionError
			if !errors.As(err, &ite) {
				t.Fatalf("err = %v, want IllegalTransitionError", err)
			}
			if ite.From != tc.from || ite.To != tc.to {
				t.Errorf("error names %s -> %s", ite.From, ite.To)
			}
			want := "illegal transition " + string(tc.from) + " -> " + string(tc.to)
			if ite.Error() != want {
				t.Errorf("message = %q, want %q", ite.Error(), want)
			}
		})
	}
}

func TestTransitionMaintainsAssignmentInvariants(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	req := Request{ID: "r1", Status: StatusRequested}
	path := []Status{StatusDispatched, StatusEnRoute, StatusArrived, StatusCompleted}
	tc := TransitionContext{Now: now, Resource: &Resource{ID: "a1"}, ETA: time.Minute}

	var err error
	for _, to := range path {
		req, err = Transition(req, to, tc)
		if err != nil {
			t.Fatalf("-> %s: %v", to, err)
		}
		checkInvariants(t, req)
	}
}

func TestTransitionCancelClearsAssignment(t *testing.T) {
	got, err := Transition(Request{ID: "r1", Status: StatusRequested}, StatusCancelled, TransitionContext{})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	checkInvariants(t, got)
}

func checkInvariants(t *testing.T, req Request) {
	t.Helper()
	wantAmbulance := req.Status != StatusRequested && req.Status != StatusCancelled
	if (req.Ambulance != nil) != wantAmbulance {
		t.Errorf("status %s: ambulance set = %v", req.Status, req.Ambulance != nil)
	}
	wantETA := req.Status == StatusDispatched || req.Status == StatusEnRoute
	if (req.EstimatedArrival != nil) != wantETA {
		t.Errorf("status %s: estimated arrival set = %v", req.Status, req.EstimatedArrival != nil)
	}
}

func TestPriorityRank(t *testing.T) {
	if !(PriorityCritical.Rank() > PriorityUrgent.Rank() && PriorityUrgent.Rank() > PriorityStandard.Rank()) {
		t.Error("priority ranks out of order")
	}
	if Priority("unknown").Rank() != 0 {
		t.Error("unknown priority should rank 0")
	}
}

func TestTransitionCompletedSnapshotShowsUnitReturned(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	req := Request{
		ID:        "r1",
		Status:    StatusArrived,
		Ambulance: &Resource{ID: "amb-001", CallSign: "A-101", Availability: AvailabilityBusy, RequestID: "r1"},
	}

	got, err := Transition(req, StatusCompleted, TransitionContext{Now: now})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Ambulance == nil || got.Ambulance.ID != "amb-001" {
		t.Fatalf("completed request lost its ambulance: %+v", got.Ambulance)
	}
	if got.Ambulance.Availability != AvailabilityAvailable || got.Ambulance.RequestID != "" {
		t.Errorf("snapshot = %+v, want available with no request", got.Ambulance)
	}
	if req.Ambulance.Availability != AvailabilityBusy {
		t.Error("input snapshot was mutated")
	}
}
