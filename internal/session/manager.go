// Package session owns the authenticated identity for the process: it
// restores a session from the credential store at launch, rotates the
// stored refresh token on every exchange and exposes the current user to
// the rest of the app.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dishwish/clientcore/internal/auth"
	"github.com/dishwish/clientcore/internal/credential"
	"github.com/dishwish/clientcore/internal/settings"
	"github.com/dishwish/clientcore/pkg/utilities"
)

const (
	refreshTokenKey = "refresh_token"
	// the original client also stored an access token under its own key;
	// ClearSession keeps deleting it so stale installs are fully wiped
	legacyAccessTokenKey = "access_token"
)

// ErrNoSession means there is nothing to restore: no stored credential, an
// undecodable artifact, an integrity-key mismatch (reinstall) or a refresh
// token the backend no longer accepts. It is a normal outcome, not a fault.
var ErrNoSession = errors.New("no stored session")

// Authenticator is the auth backend surface the manager depends on.
type Authenticator interface {
	ExchangeRefreshToken(ctx context.Context, token string) (*auth.Session, error)
	CurrentUser(ctx context.Context, accessToken string) (*auth.UserIdentity, error)
}

// Options tunes documented behavioral gaps of the original client.
type Options struct {
	// ClearCurrentUser makes ClearSession also drop the in-memory identity.
	// The original kept it around after a sign-out (fast re-login); default
	// preserves that.
	ClearCurrentUser bool
}

// Manager owns currentUser. Persistence is delegated to the credential
// store via an opaque artifact; the manager itself holds no durable state.
type Manager struct {
	creds   credential.Store
	prefs   *settings.Store
	backend Authenticator
	log     *zap.SugaredLogger
	opts    Options

	mu          sync.Mutex
	current     *auth.UserIdentity
	accessToken string
}

func NewManager(creds credential.Store, prefs *settings.Store, backend Authenticator, log *zap.SugaredLogger, opts Options) *Manager {
	return &Manager{creds: creds, prefs: prefs, backend: backend, log: log, opts: opts}
}

// integrityKey returns the per-install tag, generating and persisting it on
// first use. It is not a secret, only a reinstall/tamper detector: a restore
// to a new install regenerates it and orphans any carried-over credential.
func (m *Manager) integrityKey() (string, error) {
	if key, ok := m.prefs.Get(settings.KeyIntegrityKey); ok {
		return key, nil
	}
	key := utilities.NewKSUID()
	if err := m.prefs.Set(settings.KeyIntegrityKey, key); err != nil {
		return "", fmt.Errorf("persist integrity key: %w", err)
	}
	return key, nil
}

// SaveSession stores refreshToken tagged with the install's integrity key,
// overwriting any prior stored session.
func (m *Manager) SaveSession(refreshToken string) error {
	key, err := m.integrityKey()
	if err != nil {
		return err
	}
	artifact := base64.StdEncoding.EncodeToString([]byte(refreshToken + "." + key))
	if err := m.creds.Save(artifact, refreshTokenKey); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// LoadSession restores a session from the stored refresh token. The token
// is exchanged with the backend (which rotates it); the replacement is
// persisted before the session is returned. ErrNoSession covers every
// "nothing to restore" case; other errors are real backend failures the
// caller may retry or fail open on.
func (m *Manager) LoadSession(ctx context.Context) (*auth.Session, error) {
	artifact, err := m.creds.Load(refreshTokenKey)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("read credential store: %w", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(artifact)
	if err != nil {
		m.log.Debugw("stored session artifact undecodable", "err", err)
		return nil, ErrNoSession
	}
	combined := string(decoded)

	key, err := m.integrityKey()
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(combined, "."+key) {
		m.log.Debugw("integrity key mismatch, likely a reinstall")
		return nil, ErrNoSession
	}
	refreshToken := combined[:len(combined)-len(key)-1]

	sess, err := m.backend.ExchangeRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			m.log.Debugw("stored refresh token rejected by backend")
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if err := m.adopt(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Adopt installs a session obtained outside LoadSession (sign-in, sign-up):
// persists its refresh token and takes over the identity.
func (m *Manager) Adopt(sess *auth.Session) error {
	return m.adopt(sess)
}

func (m *Manager) adopt(sess *auth.Session) error {
	if err := m.SaveSession(sess.RefreshToken); err != nil {
		return err
	}
	if err := m.prefs.SetBool(settings.KeyLoggedIn, true); err != nil {
		m.log.Warnw("persist login flag", "err", err)
	}
	m.mu.Lock()
	user := sess.User
	m.current = &user
	m.accessToken = sess.AccessToken
	m.mu.Unlock()
	return nil
}

// GetUser asks the backend for the live authenticated user (not the stored
// refresh token) and refreshes the in-memory identity.
func (m *Manager) GetUser(ctx context.Context) (*auth.UserIdentity, error) {
	m.mu.Lock()
	token := m.accessToken
	m.mu.Unlock()
	if token == "" {
		return nil, ErrNoSession
	}
	user, err := m.backend.CurrentUser(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	m.mu.Lock()
	m.current = user
	m.mu.Unlock()
	return user, nil
}

// CurrentUser returns the in-memory identity, nil when none.
func (m *Manager) CurrentUser() *auth.UserIdentity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// ClearSession deletes stored credentials. The in-memory identity survives
// unless Options.ClearCurrentUser was set.
func (m *Manager) ClearSession() error {
	if err := m.creds.Delete(legacyAccessTokenKey); err != nil {
		return err
	}
	if err := m.creds.Delete(refreshTokenKey); err != nil {
		return err
	}
	if err := m.prefs.SetBool(settings.KeyLoggedIn, false); err != nil {
		m.log.Warnw("persist login flag", "err", err)
	}
	if m.opts.ClearCurrentUser {
		m.mu.Lock()
		m.current = nil
		m.accessToken = ""
		m.mu.Unlock()
	}
	return nil
}
