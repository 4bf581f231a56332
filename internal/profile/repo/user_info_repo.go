package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dishwish/clientcore/internal/profile"
)

// UserInfoRepo provides data access for the user_info table using sqlx.
type UserInfoRepo struct {
	db *sqlx.DB
}

func NewUserInfoRepo(db *sqlx.DB) *UserInfoRepo { return &UserInfoRepo{db: db} }

// EnsureTable creates the user_info table if not exists (idempotent).
func (r *UserInfoRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS user_info (
  user_id UUID PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  age INT NOT NULL DEFAULT 0,
  weight DOUBLE PRECISION NOT NULL DEFAULT 0,
  height DOUBLE PRECISION NOT NULL DEFAULT 0,
  goal TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// GetByUserID returns the profile row for a user, or sql.ErrNoRows.
func (r *UserInfoRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*profile.UserProfile, error) {
	const q = `SELECT user_id, name, age, weight, height, goal, created_at
	  FROM user_info WHERE user_id=$1 LIMIT 1`
	var row profile.UserProfile
	if err := r.db.GetContext(ctx, &row, q, userID); err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert writes the whole row, replacing any existing one for the user.
// user_id never changes; created_at keeps its original value on conflict.
func (r *UserInfoRepo) Upsert(ctx context.Context, p *profile.UserProfile) error {
	const q = `INSERT INTO user_info (user_id, name, age, weight, height, goal)
	  VALUES (:user_id, :name, :age, :weight, :height, :goal)
	  ON CONFLICT (user_id) DO UPDATE SET
	    name = EXCLUDED.name,
	    age = EXCLUDED.age,
	    weight = EXCLUDED.weight,
	    height = EXCLUDED.height,
	    goal = EXCLUDED.goal`
	_, err := r.db.NamedExecContext(ctx, q, p)
	return err
}
