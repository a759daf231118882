// Package activity keeps the journal of status changes shown in the
// dispatcher's "recent activity" feed.
package activity

import (
	"context"
	"sync"
	"time"
)

const ActivityStatusChange = "status_change"

const (
	EntityRequest  = "request"
	EntityResource = "resource"
)

type Entry struct {
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

// Journal records activity entries and lists the most recent ones first.
type Journal interface {
	Record(ctx context.Context, e Entry) (Entry, error)
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Memory is a bounded in-process journal used when no database is configured.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	nextID  int64
	now     func() time.Time
}

// NewMemory keeps at most capacity entries, dropping the oldest.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 500
	}
	return &Memory{
		max: capacity,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Record(_ context.Context, e Entry) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	m.entries = append(m.entries, e)
	if len(m.entries) > m.max {
		m.entries = append(m.entries[:0:0], m.entries[len(m.entries)-m.max:]...)
	}
	return e, nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}
	out := make([]Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}
