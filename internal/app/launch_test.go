package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dishwish/clientcore/internal/auth"
	"github.com/dishwish/clientcore/internal/credential"
	"github.com/dishwish/clientcore/internal/event"
	"github.com/dishwish/clientcore/internal/profile"
	"github.com/dishwish/clientcore/internal/session"
	"github.com/dishwish/clientcore/internal/settings"
)

// fakeAuth accepts whatever refresh token it issued last and rotates it on
// every exchange, like the real backend.
type fakeAuth struct {
	mu      sync.Mutex
	userID  uuid.UUID
	valid   map[string]bool
	counter int
	err     error
}

func newFakeAuth(userID uuid.UUID, initial string) *fakeAuth {
	return &fakeAuth{userID: userID, valid: map[string]bool{initial: true}}
}

func (f *fakeAuth) ExchangeRefreshToken(ctx context.Context, token string) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if !f.valid[token] {
		return nil, auth.ErrInvalidToken
	}
	delete(f.valid, token)
	f.counter++
	rotated := fmt.Sprintf("rotated-%d", f.counter)
	f.valid[rotated] = true
	email := "alan@example.com"
	return &auth.Session{
		AccessToken:  fmt.Sprintf("access-%d", f.counter),
		RefreshToken: rotated,
		User:         auth.UserIdentity{ID: f.userID, Email: &email},
	}, nil
}

func (f *fakeAuth) CurrentUser(ctx context.Context, accessToken string) (*auth.UserIdentity, error) {
	return &auth.UserIdentity{ID: f.userID}, nil
}

type memEventRepo struct {
	mu     sync.Mutex
	defs   []event.Definition
	states map[string]event.UserState
}

func newMemEventRepo(defs ...event.Definition) *memEventRepo {
	return &memEventRepo{defs: defs, states: map[string]event.UserState{}}
}

func key(userID, eventID uuid.UUID) string { return userID.String() + "/" + eventID.String() }

func (m *memEventRepo) ListDefinitions(ctx context.Context) ([]event.Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Definition, len(m.defs))
	copy(out, m.defs)
	return out, nil
}

func (m *memEventRepo) ListUserStates(ctx context.Context, userID uuid.UUID) ([]event.UserState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.UserState
	for _, st := range m.states {
		if st.UserID == userID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (m *memEventRepo) InsertUserStates(ctx context.Context, states []event.UserState) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, st := range states {
		k := key(st.UserID, st.EventID)
		if _, ok := m.states[k]; ok {
			continue
		}
		m.states[k] = st
		inserted++
	}
	return inserted, nil
}

func (m *memEventRepo) MarkCompleted(ctx context.Context, userID, eventID uuid.UUID, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(userID, eventID)
	st, ok := m.states[k]
	if !ok {
		return nil
	}
	st.IsCompleted = true
	st.CompletedAt = &completedAt
	m.states[k] = st
	return nil
}

func (m *memEventRepo) DefinitionIDByName(ctx context.Context, name string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.defs {
		if d.Name == name {
			return d.ID, nil
		}
	}
	return uuid.Nil, sql.ErrNoRows
}

type memProfileRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*profile.UserProfile
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{rows: map[uuid.UUID]*profile.UserProfile{}}
}

func (m *memProfileRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*profile.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *memProfileRepo) Upsert(ctx context.Context, p *profile.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.rows[p.UserID] = &cp
	return nil
}

func newTestApp(t *testing.T, backend session.Authenticator, events event.Repository, profiles profile.Repository) *App {
	t.Helper()
	log := zap.NewNop().Sugar()
	prefs, err := settings.Open(t.TempDir())
	require.NoError(t, err)
	return &App{
		Sessions: session.NewManager(credential.NewMemStore(), prefs, backend, log, session.Options{}),
		Profiles: profile.NewCache(profiles),
		Syncer:   event.NewSyncer(events, log),
		Resolver: event.NewResolver(events, nil), // ships DefaultRegistry
		Recorder: event.NewRecorder(events),
		Events:   events,
		Log:      log,
	}
}

func TestLaunchSignedOut(t *testing.T) {
	backend := newFakeAuth(uuid.New(), "never-saved")
	a := newTestApp(t, backend, newMemEventRepo(), newMemProfileRepo())

	result := a.Launch(context.Background())
	require.Nil(t, result.Session)
	require.Nil(t, result.Pending)
	require.Nil(t, result.Profile)
}

func TestLaunchBackendDownFailsOpen(t *testing.T) {
	backend := newFakeAuth(uuid.New(), "token-0")
	backend.err = errors.New("connection refused")
	a := newTestApp(t, backend, newMemEventRepo(), newMemProfileRepo())
	require.NoError(t, a.Sessions.SaveSession("token-0"))

	result := a.Launch(context.Background())
	require.Nil(t, result.Session)
	require.Nil(t, result.Pending)
}

func TestLaunchGatesThenGuidanceCompletes(t *testing.T) {
	userID := uuid.New()
	guidance := event.Definition{ID: uuid.New(), Name: "Event_Guidance", Priority: 1, IsRequired: true}
	events := newMemEventRepo(guidance)
	profiles := newMemProfileRepo()
	backend := newFakeAuth(userID, "token-0")
	a := newTestApp(t, backend, events, profiles)
	ctx := context.Background()

	require.NoError(t, a.Sessions.SaveSession("token-0"))

	// first launch: session restored, catalog reconciled, guidance gates
	result := a.Launch(ctx)
	require.NotNil(t, result.Session)
	require.Equal(t, userID, result.Session.User.ID)
	require.NotNil(t, result.Pending)
	require.Equal(t, event.KindGuidance, result.Pending.Kind)
	require.Nil(t, result.Profile)

	// user finishes the guidance flow
	require.NoError(t, a.CompleteGuidance(ctx, &profile.UserProfile{
		UserID: userID, Name: "Alan", Age: 28, Weight: 70, Height: 175, Goal: "Fat Loss",
	}))

	// next launch: rotated token restores, gate is gone for good
	result = a.Launch(ctx)
	require.NotNil(t, result.Session)
	require.Nil(t, result.Pending)
	require.NotNil(t, result.Profile)
	require.Equal(t, "Alan", result.Profile.Name)
}

func TestCompleteGuidanceWithMissingCatalogEntry(t *testing.T) {
	userID := uuid.New()
	events := newMemEventRepo() // catalog no longer defines the flow
	a := newTestApp(t, newFakeAuth(userID, "t"), events, newMemProfileRepo())

	err := a.CompleteGuidance(context.Background(), &profile.UserProfile{UserID: userID, Name: "Alan"})
	require.NoError(t, err)
}
