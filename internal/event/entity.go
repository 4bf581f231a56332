package event

import (
	"time"

	"github.com/google/uuid"
)

// Definition is one backend-owned catalog entry. Read-only from the
// client's perspective; name is unique and used as the lookup key into the
// handler registry. Lower priority means more urgent.
type Definition struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description,omitempty"`
	IsRequired  bool       `db:"is_required" json:"is_required"`
	Priority    int        `db:"priority" json:"priority"`
	CreatedAt   *time.Time `db:"created_at" json:"created_at,omitempty"`
}

// UserState is one row of user_events, identified by (UserID, EventID).
// Rows are never deleted; completion only ever flips incomplete->complete.
type UserState struct {
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	EventID     uuid.UUID  `db:"event_id" json:"event_id"`
	IsCompleted bool       `db:"is_completed" json:"is_completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Pending is the ephemeral join of a user state with its definition,
// already resolved to a handler kind. Used only to pick the next gating
// screen; never persisted.
type Pending struct {
	State      UserState
	Definition Definition
	Kind       Kind
}
