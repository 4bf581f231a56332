package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS users (
  id UUID PRIMARY KEY,
  email CITEXT UNIQUE NOT NULL,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, id uuid.UUID, email, passwordHash string) error {
	const q = `INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, q, id, email, passwordHash)
	return err
}

// GetByEmail returns id and password hash for the user matched by email
// (case-insensitive due to citext), or sql.ErrNoRows.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (uuid.UUID, string, error) {
	var row struct {
		ID           uuid.UUID `db:"id"`
		PasswordHash string    `db:"password_hash"`
	}
	const q = `SELECT id, password_hash FROM users WHERE email=$1`
	if err := r.db.GetContext(ctx, &row, q, email); err != nil {
		return uuid.Nil, "", err
	}
	return row.ID, row.PasswordHash, nil
}

// GetByID returns the email for a user id, or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (string, error) {
	var email string
	const q = `SELECT email FROM users WHERE id=$1`
	if err := r.db.GetContext(ctx, &email, q, id); err != nil {
		return "", err
	}
	return email, nil
}
