// Package ticketing serves the cinema film catalogue and ticket sales.
package ticketing

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrFilmNotFound  = errors.New("film not found")
	ErrSoldOut       = errors.New("showing is sold out")
	ErrInvalidTicket = errors.New("invalid ticket count")
)

type Film struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Runtime     int    `json:"runtime" yaml:"runtime"`
	Capacity    int    `json:"capacity" yaml:"capacity"`
	TicketsSold int    `json:"tickets_sold" yaml:"tickets_sold"`
	Showtime    string `json:"showtime" yaml:"showtime"`
	Description string `json:"description,omitempty" yaml:"description"`
	Poster      string `json:"poster,omitempty" yaml:"poster"`
}

func (f Film) RemainingTickets() int {
	if n := f.Capacity - f.TicketsSold; n > 0 {
		return n
	}
	return 0
}

func (f Film) SoldOut() bool {
	return f.RemainingTickets() == 0
}

// Ticket is one purchase against a film.
type Ticket struct {
	ID              string    `json:"id"`
	FilmID          string    `json:"film_id"`
	NumberOfTickets int       `json:"number_of_tickets"`
	PurchasedAt     time.Time `json:"purchased_at"`
}

// Catalog holds films in insertion order. A single lock covers the whole
// catalogue; sales are short and contention is low.
type Catalog struct {
	mu      sync.Mutex
	films   map[string]*Film
	order   []string
	tickets []Ticket
}

func NewCatalog() *Catalog {
	return &Catalog{films: make(map[string]*Film)}
}

// Add registers a film. An empty id gets a generated one.
func (c *Catalog) Add(f Film) (Film, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Capacity < 0 || f.TicketsSold < 0 || f.TicketsSold > f.Capacity {
		return Film{}, fmt.Errorf("film %s: %d of %d sold: %w", f.ID, f.TicketsSold, f.Capacity, ErrInvalidTicket)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.films[f.ID]; exists {
		return Film{}, fmt.Errorf("film %s already exists", f.ID)
	}
	film := f
	c.films[f.ID] = &film
	c.order = append(c.order, f.ID)
	return f, nil
}

func (c *Catalog) List() []Film {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Film, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.films[id])
	}
	return out
}

func (c *Catalog) Get(id string) (Film, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.films[id]
	if !ok {
		return Film{}, fmt.Errorf("film %s: %w", id, ErrFilmNotFound)
	}
	return *f, nil
}

// SetTicketsSold overwrites the sold count, bounded by capacity.
func (c *Catalog) SetTicketsSold(id string, sold int) (Film, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.films[id]
	if !ok {
		return Film{}, fmt.Errorf("film %s: %w", id, ErrFilmNotFound)
	}
	if sold < 0 || sold > f.Capacity {
		return Film{}, fmt.Errorf("film %s: %d sold exceeds capacity %d: %w", id, sold, f.Capacity, ErrInvalidTicket)
	}
	f.TicketsSold = sold
	return *f, nil
}

// Buy sells one ticket and records the purchase.
func (c *Catalog) Buy(id string, now time.Time) (Film, Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.films[id]
	if !ok {
		return Film{}, Ticket{}, fmt.Errorf("film %s: %w", id, ErrFilmNotFound)
	}
	if f.SoldOut() {
		return Film{}, Ticket{}, fmt.Errorf("film %s: %w", id, ErrSoldOut)
	}
	f.TicketsSold++
	t := Ticket{
		ID:              uuid.NewString(),
		FilmID:          id,
		NumberOfTickets: 1,
		PurchasedAt:     now,
	}
	c.tickets = append(c.tickets, t)
	return *f, t, nil
}

// Tickets lists every purchase for a film, oldest first.
func (c *Catalog) Tickets(filmID string) ([]Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.films[filmID]; !ok {
		return nil, fmt.Errorf("film %s: %w", filmID, ErrFilmNotFound)
	}
	var out []Ticket
	for _, t := range c.tickets {
		if t.FilmID == filmID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *Catalog) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.films[id]; !ok {
		return fmt.Errorf("film %s: %w", id, ErrFilmNotFound)
	}
	delete(c.films, id)
	for i, fid := range c.order {
		if fid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}
