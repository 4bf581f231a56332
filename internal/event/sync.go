// Package event implements onboarding event gating: reconciling the
// backend-defined catalog against per-user completion rows, resolving the
// next pending event and recording completion.
package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Repository is the backend surface for the events catalog and the
// per-user completion table.
type Repository interface {
	ListDefinitions(ctx context.Context) ([]Definition, error)
	ListUserStates(ctx context.Context, userID uuid.UUID) ([]UserState, error)
	InsertUserStates(ctx context.Context, states []UserState) (int, error)
	MarkCompleted(ctx context.Context, userID, eventID uuid.UUID, completedAt time.Time) error
	DefinitionIDByName(ctx context.Context, name string) (uuid.UUID, error)
}

// Syncer reconciles the catalog with a user's completion rows: every
// definition existing at reconciliation time ends up with exactly one
// user_events row. Rows are created incomplete and never deleted.
type Syncer struct {
	repo Repository
	log  *zap.SugaredLogger

	group singleflight.Group
}

func NewSyncer(repo Repository, log *zap.SugaredLogger) *Syncer {
	return &Syncer{repo: repo, log: log}
}

// Reconcile inserts missing user_events rows for userID and returns how
// many were created. Concurrent calls for the same user collapse into one
// execution; the insert itself is additionally conflict-tolerant, so even
// reconciles racing across processes cannot duplicate rows.
func (s *Syncer) Reconcile(ctx context.Context, userID uuid.UUID) (int, error) {
	v, err, shared := s.group.Do(userID.String(), func() (any, error) {
		return s.reconcile(ctx, userID)
	})
	if shared {
		s.log.Debugw("reconcile joined in-flight run", "user_id", userID)
	}
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *Syncer) reconcile(ctx context.Context, userID uuid.UUID) (int, error) {
	existing, err := s.repo.ListUserStates(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list user events: %w", err)
	}
	catalog, err := s.repo.ListDefinitions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list event catalog: %w", err)
	}

	seen := make(map[uuid.UUID]struct{}, len(existing))
	for _, st := range existing {
		seen[st.EventID] = struct{}{}
	}

	var missing []UserState
	for _, def := range catalog {
		if _, ok := seen[def.ID]; ok {
			continue
		}
		missing = append(missing, UserState{UserID: userID, EventID: def.ID})
	}
	if len(missing) == 0 {
		return 0, nil
	}

	inserted, err := s.repo.InsertUserStates(ctx, missing)
	if err != nil {
		return 0, fmt.Errorf("insert user events: %w", err)
	}
	s.log.Infow("reconciled event catalog", "user_id", userID, "inserted", inserted)
	return inserted, nil
}
