package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dishwish/clientcore/internal/event"
)

// EventRepo provides data access for the events catalog and the per-user
// user_events completion table using sqlx.
type EventRepo struct {
	db *sqlx.DB
}

func NewEventRepo(db *sqlx.DB) *EventRepo { return &EventRepo{db: db} }

// EnsureTables creates the events and user_events tables if not exists
// (idempotent).
func (r *EventRepo) EnsureTables(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS events (
  id UUID PRIMARY KEY,
  name TEXT UNIQUE NOT NULL,
  description TEXT,
  is_required BOOLEAN NOT NULL DEFAULT false,
  priority INT NOT NULL DEFAULT 100,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS user_events (
  user_id UUID NOT NULL,
  event_id UUID NOT NULL REFERENCES events(id),
  is_completed BOOLEAN NOT NULL DEFAULT false,
  completed_at TIMESTAMPTZ,
  PRIMARY KEY (user_id, event_id)
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// ListDefinitions returns the full catalog in gating order: priority
// ascending, creation time breaking ties.
func (r *EventRepo) ListDefinitions(ctx context.Context) ([]event.Definition, error) {
	const q = `SELECT id, name, description, is_required, priority, created_at
	  FROM events ORDER BY priority ASC, created_at ASC`
	var defs []event.Definition
	if err := r.db.SelectContext(ctx, &defs, q); err != nil {
		return nil, err
	}
	return defs, nil
}

// ListUserStates returns all user_events rows for a user.
func (r *EventRepo) ListUserStates(ctx context.Context, userID uuid.UUID) ([]event.UserState, error) {
	const q = `SELECT user_id, event_id, is_completed, completed_at
	  FROM user_events WHERE user_id=$1`
	var states []event.UserState
	if err := r.db.SelectContext(ctx, &states, q, userID); err != nil {
		return nil, err
	}
	return states, nil
}

// InsertUserStates inserts rows, skipping (user_id, event_id) pairs that
// already exist. Returns the number actually inserted.
func (r *EventRepo) InsertUserStates(ctx context.Context, states []event.UserState) (int, error) {
	if len(states) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const q = `INSERT INTO user_events (user_id, event_id, is_completed, completed_at)
	  VALUES ($1, $2, $3, $4)
	  ON CONFLICT (user_id, event_id) DO NOTHING`
	inserted := 0
	for _, st := range states {
		res, err := tx.ExecContext(ctx, q, st.UserID, st.EventID, st.IsCompleted, st.CompletedAt)
		if err != nil {
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// MarkCompleted flips the row to completed with the given timestamp.
// Re-marking an already-completed row rewrites the same terminal state.
func (r *EventRepo) MarkCompleted(ctx context.Context, userID, eventID uuid.UUID, completedAt time.Time) error {
	const q = `UPDATE user_events SET is_completed=true, completed_at=$3
	  WHERE user_id=$1 AND event_id=$2`
	_, err := r.db.ExecContext(ctx, q, userID, eventID, completedAt)
	return err
}

// DefinitionIDByName resolves a catalog event id by its unique name, or
// sql.ErrNoRows.
func (r *EventRepo) DefinitionIDByName(ctx context.Context, name string) (uuid.UUID, error) {
	var id uuid.UUID
	const q = `SELECT id FROM events WHERE name=$1 LIMIT 1`
	if err := r.db.GetContext(ctx, &id, q, name); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
