package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// querier is the subset of *pgxpool.Pool the journal needs.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres stores entries in the activity_logs table created by the
// migrations in migrations/.
type Postgres struct {
	db querier
}

func NewPostgres(db querier) *Postgres {
	return &Postgres{db: db}
}

const insertActivityLog = `
INSERT INTO activity_logs (activity_type, entity_type, entity_id, actor, old_value, new_value, metadata)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7)
RETURNING id, created_at`

func (p *Postgres) Record(ctx context.Context, e Entry) (Entry, error) {
	metadata := []byte("{}")
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return Entry{}, fmt.Errorf("encoding metadata: %w", err)
		}
		metadata = raw
	}

	var (
		id        int64
		createdAt time.Time
	)
	err := p.db.QueryRow(ctx, insertActivityLog,
		e.ActivityType, e.EntityType, e.EntityID, e.Actor, e.OldValue, e.NewValue, metadata,
	).Scan(&id, &createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("inserting activity log: %w", err)
	}
	e.ID = id
	e.CreatedAt = createdAt.UTC()
	return e, nil
}

const listRecentActivityLogs = `
SELECT id, activity_type, entity_type, entity_id,
       COALESCE(actor, ''), COALESCE(old_value, ''), COALESCE(new_value, ''),
       metadata, created_at
FROM activity_logs
ORDER BY created_at DESC, id DESC
LIMIT $1`

func (p *Postgres) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := p.db.Query(ctx, listRecentActivityLogs, limit)
	if err != nil {
		return nil, fmt.Errorf("listing activity logs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.ActivityType, &e.EntityType, &e.EntityID,
			&e.Actor, &e.OldValue, &e.NewValue, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning activity log: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for %d: %w", e.ID, err)
			}
			if len(e.Metadata) == 0 {
				e.Metadata = nil
			}
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
