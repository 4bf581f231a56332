package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SessionRepo persists opaque refresh tokens. A token is single-use: the
// exchange that consumes it replaces it atomically via Rotate.
type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo { return &SessionRepo{db: db} }

// EnsureTable creates the auth_sessions table if not exists (idempotent).
func (r *SessionRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS auth_sessions (
  token TEXT PRIMARY KEY,
  id BIGINT NOT NULL,
  user_id UUID NOT NULL,
  expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_auth_sessions_user_id ON auth_sessions(user_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Save inserts a refresh session row.
func (r *SessionRepo) Save(ctx context.Context, id int64, token string, userID uuid.UUID, expiresAt time.Time) error {
	const q = `INSERT INTO auth_sessions (token, id, user_id, expires_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, q, token, id, userID, expiresAt)
	return err
}

// Get returns the owning user and expiry for a token, or sql.ErrNoRows.
func (r *SessionRepo) Get(ctx context.Context, token string) (uuid.UUID, time.Time, error) {
	var row struct {
		UserID    uuid.UUID `db:"user_id"`
		ExpiresAt time.Time `db:"expires_at"`
	}
	const q = `SELECT user_id, expires_at FROM auth_sessions WHERE token = $1`
	if err := r.db.GetContext(ctx, &row, q, token); err != nil {
		return uuid.Nil, time.Time{}, err
	}
	return row.UserID, row.ExpiresAt, nil
}

// Rotate consumes oldToken and installs the replacement in one transaction.
func (r *SessionRepo) Rotate(ctx context.Context, oldToken string, id int64, newToken string, userID uuid.UUID, expiresAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM auth_sessions WHERE token = $1`, oldToken); err != nil {
		return err
	}
	const ins = `INSERT INTO auth_sessions (token, id, user_id, expires_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, ins, newToken, id, userID, expiresAt); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a refresh token from store.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE token = $1`, token)
	return err
}
