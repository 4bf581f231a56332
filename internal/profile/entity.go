package profile

import (
	"time"

	"github.com/google/uuid"
)

// UserProfile is one row of user_info: onboarding answers for a user.
// UserID is immutable once created; the row is upserted wholesale,
// last writer wins.
type UserProfile struct {
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	Name      string     `db:"name" json:"name"`
	Age       int        `db:"age" json:"age"`
	Weight    float64    `db:"weight" json:"weight"`
	Height    float64    `db:"height" json:"height"`
	Goal      string     `db:"goal" json:"goal"`
	CreatedAt *time.Time `db:"created_at" json:"created_at,omitempty"`
}
