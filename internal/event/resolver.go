package event

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Resolver picks the single highest-priority incomplete event for a user
// and maps it to a presentable handler kind.
type Resolver struct {
	repo     Repository
	registry *Registry
}

func NewResolver(repo Repository, registry *Registry) *Resolver {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Resolver{repo: repo, registry: registry}
}

// NextPending returns the gating event to present, or nil when there is
// nothing to gate on: every event completed, or the winner is a
// backend-defined event this client has no flow for (skipped on purpose).
// User states without a matching catalog definition are stale data and are
// dropped silently.
func (r *Resolver) NextPending(ctx context.Context, userID uuid.UUID) (*Pending, error) {
	states, err := r.repo.ListUserStates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user events: %w", err)
	}
	catalog, err := r.repo.ListDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list event catalog: %w", err)
	}

	byEvent := make(map[uuid.UUID]UserState, len(states))
	for _, st := range states {
		byEvent[st.EventID] = st
	}

	// the repo already orders by priority; re-sort stably so the selection
	// does not depend on any particular Repository implementation
	ordered := make([]Definition, len(catalog))
	copy(ordered, catalog)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	for _, def := range ordered {
		st, ok := byEvent[def.ID]
		if !ok || st.IsCompleted {
			continue
		}
		kind := r.registry.Resolve(def.Name)
		if kind == KindUnsupported {
			// forward-compatibility escape hatch: the most urgent event is
			// one this client cannot render, so no gate is shown at all
			return nil, nil
		}
		return &Pending{State: st, Definition: def, Kind: kind}, nil
	}
	return nil, nil
}
