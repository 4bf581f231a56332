// Package profile caches the current user's profile record. One slot, no
// TTL, invalidated only by process restart: the client assumes a single
// logged-in user per process lifetime.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound means the user has no profile row yet (pre-onboarding).
var ErrNotFound = errors.New("user profile not found")

// Repository is the backend surface the cache reads and writes through.
type Repository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*UserProfile, error)
	Upsert(ctx context.Context, p *UserProfile) error
}

// Cache holds at most one profile in memory, keyed implicitly by whichever
// user is current.
type Cache struct {
	repo Repository

	mu     sync.Mutex
	cached *UserProfile
}

func NewCache(repo Repository) *Cache {
	return &Cache{repo: repo}
}

// GetUserInfo returns the cached profile when present; otherwise performs
// exactly one backend read scoped to userID and caches the result.
func (c *Cache) GetUserInfo(ctx context.Context, userID uuid.UUID) (*UserProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != nil {
		return c.cached, nil
	}
	p, err := c.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user info: %w", err)
	}
	c.cached = p
	return p, nil
}

// UpsertUserInfo writes through to the backend; the cache is replaced only
// after the write succeeds, so a failed write leaves the cache untouched.
func (c *Cache) UpsertUserInfo(ctx context.Context, p *UserProfile) error {
	if err := c.repo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert user info: %w", err)
	}
	c.mu.Lock()
	c.cached = p
	c.mu.Unlock()
	return nil
}
