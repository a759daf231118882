package server

import (
	"time"

	"medi/connect/internal/activity"
	"medi/connect/internal/emergency"
	"medi/connect/internal/ticketing"
)

type GeoPoint struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Address   string  `json:"address,omitempty" validate:"max=300"`
}

type PatientPayload struct {
	Name              string `json:"name" validate:"required,max=120"`
	Phone             string `json:"phone" validate:"max=40"`
	EmergencyContact  string `json:"emergency_contact" validate:"max=120"`
	MedicalConditions string `json:"medical_conditions" validate:"max=2000"`
	Allergies         string `json:"allergies" validate:"max=2000"`
	Medications       string `json:"medications" validate:"max=2000"`
}

type CreateRequestPayload struct {
	Patient     PatientPayload `json:"patient" validate:"required"`
	Location    GeoPoint       `json:"location" validate:"required"`
	Priority    string         `json:"priority" validate:"required,oneof=critical urgent standard"`
	Description string         `json:"description" validate:"max=2000"`
}

type UpdateRequestStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=requested dispatched en-route arrived completed cancelled"`
}

type AcceptRequestPayload struct {
	ResourceID string `json:"resource_id" validate:"required,max=64"`
}

type CreateResourcePayload struct {
	ID           string   `json:"id" validate:"omitempty,max=64"`
	CallSign     string   `json:"call_sign" validate:"required,max=32"`
	Driver       string   `json:"driver" validate:"max=120"`
	Paramedic    string   `json:"paramedic" validate:"max=120"`
	Availability string   `json:"availability" validate:"omitempty,oneof=available offline"`
	Location     GeoPoint `json:"location"`
}

type UpdateResourceAvailabilityPayload struct {
	Availability string `json:"availability" validate:"required,oneof=available offline"`
}

type UpdateFilmPayload struct {
	TicketsSold *int `json:"tickets_sold" validate:"required,gte=0"`
}

type HealthResponse struct {
	Status  string         `json:"status"`
	Env     string         `json:"env"`
	Uptime  string         `json:"uptime"`
	Journal string         `json:"journal"`
	Fleet   map[string]int `json:"fleet"`
}

type TransitionErrorDetails struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type PatientResponse struct {
	Name              string `json:"name"`
	Phone             string `json:"phone,omitempty"`
	EmergencyContact  string `json:"emergency_contact,omitempty"`
	MedicalConditions string `json:"medical_conditions,omitempty"`
	Allergies         string `json:"allergies,omitempty"`
	Medications       string `json:"medications,omitempty"`
}

type ResourceResponse struct {
	ID           string   `json:"id"`
	CallSign     string   `json:"call_sign"`
	Driver       string   `json:"driver,omitempty"`
	Paramedic    string   `json:"paramedic,omitempty"`
	Availability string   `json:"availability"`
	Location     GeoPoint `json:"location"`
	RequestID    string   `json:"request_id,omitempty"`
}

// AssignedAmbulanceResponse names the unit serving a request. Live
// availability is read from /v1/resources.
type AssignedAmbulanceResponse struct {
	ID        string   `json:"id"`
	CallSign  string   `json:"call_sign"`
	Driver    string   `json:"driver,omitempty"`
	Paramedic string   `json:"paramedic,omitempty"`
	Location  GeoPoint `json:"location"`
}

type RequestResponse struct {
	ID               string                     `json:"id"`
	Patient          PatientResponse            `json:"patient"`
	Location         GeoPoint                   `json:"location"`
	Priority         string                     `json:"priority"`
	Description      string                     `json:"description,omitempty"`
	Status           string                     `json:"status"`
	Ambulance        *AssignedAmbulanceResponse `json:"ambulance,omitempty"`
	RequestedAt      time.Time                  `json:"requested_at"`
	EstimatedArrival *time.Time                 `json:"estimated_arrival,omitempty"`
	UpdatedAt        time.Time                  `json:"updated_at"`
	NextStatuses     []string                   `json:"next_statuses"`
}

type TransitionsResponse struct {
	RequestID string   `json:"request_id"`
	Status    string   `json:"status"`
	Next      []string `json:"next"`
	Terminal  bool     `json:"terminal"`
}

type ActivityLogResponse struct {
	ID           int64             `json:"id"`
	ActivityType string            `json:"activity_type"`
	EntityType   string            `json:"entity_type"`
	EntityID     string            `json:"entity_id"`
	Actor        string            `json:"actor,omitempty"`
	OldValue     string            `json:"old_value,omitempty"`
	NewValue     string            `json:"new_value,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

type FilmResponse struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Runtime          int    `json:"runtime"`
	Capacity         int    `json:"capacity"`
	TicketsSold      int    `json:"tickets_sold"`
	RemainingTickets int    `json:"remaining_tickets"`
	SoldOut          bool   `json:"sold_out"`
	Showtime         string `json:"showtime"`
	Description      string `json:"description,omitempty"`
	Poster           string `json:"poster,omitempty"`
}

type TicketResponse struct {
	ID              string        `json:"id"`
	FilmID          string        `json:"film_id"`
	NumberOfTickets int           `json:"number_of_tickets"`
	PurchasedAt     time.Time     `json:"purchased_at"`
	Film            *FilmResponse `json:"film,omitempty"`
}

func (p CreateRequestPayload) submission() emergency.Submission {
	return emergency.Submission{
		Patient: emergency.Patient{
			Name:              p.Patient.Name,
			Phone:             p.Patient.Phone,
			EmergencyContact:  p.Patient.EmergencyContact,
			MedicalConditions: p.Patient.MedicalConditions,
			Allergies:         p.Patient.Allergies,
			Medications:       p.Patient.Medications,
		},
		Location:    p.Location.location(),
		Priority:    emergency.Priority(p.Priority),
		Description: p.Description,
	}
}

func (g GeoPoint) location() emergency.Location {
	return emergency.Location{Latitude: g.Latitude, Longitude: g.Longitude, Address: g.Address}
}

func mapLocation(l emergency.Location) GeoPoint {
	return GeoPoint{Latitude: l.Latitude, Longitude: l.Longitude, Address: l.Address}
}

func mapResource(r emergency.Resource) ResourceResponse {
	return ResourceResponse{
		ID:           r.ID,
		CallSign:     r.CallSign,
		Driver:       r.Driver,
		Paramedic:    r.Paramedic,
		Availability: string(r.Availability),
		Location:     mapLocation(r.Location),
		RequestID:    r.RequestID,
	}
}

func mapRequest(r emergency.Request) RequestResponse {
	resp := RequestResponse{
		ID: r.ID,
		Patient: PatientResponse{
			Name:              r.Patient.Name,
			Phone:             r.Patient.Phone,
			EmergencyContact:  r.Patient.EmergencyContact,
			MedicalConditions: r.Patient.MedicalConditions,
			Allergies:         r.Patient.Allergies,
			Medications:       r.Patient.Medications,
		},
		Location:         mapLocation(r.Location),
		Priority:         string(r.Priority),
		Description:      r.Description,
		Status:           string(r.Status),
		RequestedAt:      r.RequestedAt,
		EstimatedArrival: r.EstimatedArrival,
		UpdatedAt:        r.UpdatedAt,
		NextStatuses:     statusStrings(emergency.NextStatuses(r.Status)),
	}
	if r.Ambulance != nil {
		resp.Ambulance = &AssignedAmbulanceResponse{
			ID:        r.Ambulance.ID,
			CallSign:  r.Ambulance.CallSign,
			Driver:    r.Ambulance.Driver,
			Paramedic: r.Ambulance.Paramedic,
			Location:  mapLocation(r.Ambulance.Location),
		}
	}
	return resp
}

func statusStrings(in []emergency.Status) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

func mapActivity(e activity.Entry) ActivityLogResponse {
	return ActivityLogResponse{
		ID:           e.ID,
		ActivityType: e.ActivityType,
		EntityType:   e.EntityType,
		EntityID:     e.EntityID,
		Actor:        e.Actor,
		OldValue:     e.OldValue,
		NewValue:     e.NewValue,
		Metadata:     e.Metadata,
		CreatedAt:    e.CreatedAt,
	}
}

func mapFilm(f ticketing.Film) FilmResponse {
	return FilmResponse{
		ID:               f.ID,
		Title:            f.Title,
		Runtime:          f.Runtime,
		Capacity:         f.Capacity,
		TicketsSold:      f.TicketsSold,
		RemainingTickets: f.RemainingTickets(),
		SoldOut:          f.SoldOut(),
		Showtime:         f.Showtime,
		Description:      f.Description,
		Poster:           f.Poster,
	}
}

func mapTicket(t ticketing.Ticket) TicketResponse {
	return TicketResponse{
		ID:              t.ID,
		FilmID:          t.FilmID,
		NumberOfTickets: t.NumberOfTickets,
		PurchasedAt:     t.PurchasedAt,
	}
}
