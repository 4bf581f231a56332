// Package app composes the client core into the launch flow: restore the
// session, reconcile the event catalog, resolve the gating decision. This
// is the one layer that fails open — a slow or broken backend degrades to
// "not logged in / nothing pending" so the main app stays available.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dishwish/clientcore/internal/auth"
	"github.com/dishwish/clientcore/internal/event"
	"github.com/dishwish/clientcore/internal/profile"
	"github.com/dishwish/clientcore/internal/session"
)

// guidanceEventName is the catalog name of the profile onboarding flow.
const guidanceEventName = "Event_Guidance"

// App wires the core services together.
type App struct {
	Sessions *session.Manager
	Profiles *profile.Cache
	Syncer   *event.Syncer
	Resolver *event.Resolver
	Recorder *event.Recorder
	Events   event.Repository
	Log      *zap.SugaredLogger
}

// LaunchResult is the gating decision for this app start.
type LaunchResult struct {
	// Session is nil when no stored session could be restored.
	Session *auth.Session
	// Pending is the onboarding event to present modally before the main
	// app, nil when nothing gates.
	Pending *event.Pending
	// Profile is the cached user profile, nil before onboarding.
	Profile *profile.UserProfile
}

// Launch runs the start-of-process sequence. It never returns an error:
// every backend failure is logged and degrades to the safe empty outcome.
func (a *App) Launch(ctx context.Context) LaunchResult {
	var result LaunchResult

	sess, err := a.Sessions.LoadSession(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			a.Log.Warnw("session restore failed, continuing signed out", "err", err)
		}
		return result
	}
	result.Session = sess
	userID := sess.User.ID

	if _, err := a.Syncer.Reconcile(ctx, userID); err != nil {
		a.Log.Warnw("event catalog reconcile failed", "user_id", userID, "err", err)
	}

	pending, err := a.Resolver.NextPending(ctx, userID)
	if err != nil {
		a.Log.Warnw("pending event resolution failed, skipping gate", "user_id", userID, "err", err)
	} else {
		result.Pending = pending
	}

	p, err := a.Profiles.GetUserInfo(ctx, userID)
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			a.Log.Warnw("profile load failed", "user_id", userID, "err", err)
		}
	} else {
		result.Profile = p
	}
	return result
}

// CompleteGuidance finishes the Guidance onboarding flow: the collected
// profile is written through and the event is marked completed. Unlike
// Launch this reports errors — the caller chose to submit, so a failed
// persist should be visible rather than silently reappearing next launch.
func (a *App) CompleteGuidance(ctx context.Context, p *profile.UserProfile) error {
	if err := a.Profiles.UpsertUserInfo(ctx, p); err != nil {
		return err
	}
	eventID, err := a.Events.DefinitionIDByName(ctx, guidanceEventName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// catalog no longer defines the flow; nothing left to gate on
			a.Log.Warnw("guidance event missing from catalog", "name", guidanceEventName)
			return nil
		}
		return fmt.Errorf("look up guidance event: %w", err)
	}
	return a.Recorder.MarkCompleted(ctx, p.UserID, eventID)
}
