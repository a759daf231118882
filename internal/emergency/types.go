// Package emergency holds the ambulance request model, the lifecycle rules
// that govern it and the in-memory stores that own request and ambulance state.
package emergency

import "time"

// Status is the lifecycle stage of a request.
type Status string

const (
	StatusRequested  Status = "requested"
	StatusDispatched Status = "dispatched"
	StatusEnRoute    Status = "en-route"
	StatusArrived    Status = "arrived"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition is legal from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusDispatched, StatusEnRoute, StatusArrived, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Priority is display-only; it does not influence dispatch order.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityUrgent   Priority = "urgent"
	PriorityStandard Priority = "standard"
)

// Rank orders priorities critical > urgent > standard. Unknown values rank lowest.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityUrgent:
		return 2
	case PriorityStandard:
		return 1
	}
	return 0
}

// Availability of an ambulance.
type Availability string

const (
	AvailabilityAvailable Availability = "available"
	AvailabilityBusy      Availability = "busy"
	AvailabilityOffline   Availability = "offline"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Patient is the requester payload. The core never inspects it.
type Patient struct {
	Name              string `json:"name"`
	Phone             string `json:"phone,omitempty"`
	EmergencyContact  string `json:"emergency_contact,omitempty"`
	MedicalConditions string `json:"medical_conditions,omitempty"`
	Allergies         string `json:"allergies,omitempty"`
	Medications       string `json:"medications,omitempty"`
}

// Resource is a dispatchable ambulance.
type Resource struct {
	ID           string       `json:"id"`
	CallSign     string       `json:"call_sign"`
	Driver       string       `json:"driver,omitempty"`
	Paramedic    string       `json:"paramedic,omitempty"`
	Availability Availability `json:"availability"`
	Location     Location     `json:"location"`
	// RequestID is the request holding the ambulance while it is busy.
	RequestID string `json:"request_id,omitempty"`
}

// Submission is what a client supplies when raising a request.
type Submission struct {
	Patient     Patient
	Location    Location
	Priority    Priority
	Description string
}

// Request is a single emergency request. Values returned from the store are
// copies; mutate them only through RequestStore.Update.
type Request struct {
	ID               string     `json:"id"`
	Patient          Patient    `json:"patient"`
	Location         Location   `json:"location"`
	Priority         Priority   `json:"priority"`
	Description      string     `json:"description,omitempty"`
	Status           Status     `json:"status"`
	Ambulance        *Resource  `json:"ambulance,omitempty"`
	RequestedAt      time.Time  `json:"requested_at"`
	EstimatedArrival *time.Time `json:"estimated_arrival,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (r Request) clone() Request {
	out := r
	if r.Ambulance != nil {
		amb := *r.Ambulance
		out.Ambulance = &amb
	}
	if r.EstimatedArrival != nil {
		eta := *r.EstimatedArrival
		out.EstimatedArrival = &eta
	}
	return out
}
