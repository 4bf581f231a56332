package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dishwish/clientcore/pkg/utilities"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// UserStore is the persistence surface the auth service needs for accounts.
type UserStore interface {
	Create(ctx context.Context, id uuid.UUID, email, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (uuid.UUID, string, error)
	GetByID(ctx context.Context, id uuid.UUID) (string, error)
}

// TokenStore persists opaque single-use refresh tokens.
type TokenStore interface {
	Save(ctx context.Context, id int64, token string, userID uuid.UUID, expiresAt time.Time) error
	Get(ctx context.Context, token string) (uuid.UUID, time.Time, error)
	Rotate(ctx context.Context, oldToken string, id int64, newToken string, userID uuid.UUID, expiresAt time.Time) error
	Delete(ctx context.Context, token string) error
}

// Service issues sessions: RS256 access tokens plus rotated opaque refresh
// tokens. It stands in for the hosted auth backend the client talks to.
type Service struct {
	users  UserStore
	tokens TokenStore
	key    *rsa.PrivateKey
	kid    string
	issuer string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

func NewService(users UserStore, tokens TokenStore, issuer string) (*Service, error) {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	// simple kid as base64 of SHA256 of public key
	pubBytes, _ := json.Marshal(k.PublicKey)
	h := sha256.Sum256(pubBytes)
	kid := base64.RawURLEncoding.EncodeToString(h[:8])
	return &Service{
		users:      users,
		tokens:     tokens,
		key:        k,
		kid:        kid,
		issuer:     issuer,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 30 * 24 * time.Hour,
		BcryptCost: 12,
	}, nil
}

// PublicKey returns the RSA public key for access-token verification.
func (s *Service) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

// SignUp registers an account and returns a live session.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.BcryptCost)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	if err := s.users.Create(ctx, id, email, string(hash)); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.issueSession(ctx, id, email)
}

// SignIn authenticates email/password and returns a live session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	id, hash, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials // avoid user enumeration
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueSession(ctx, id, email)
}

// ExchangeRefreshToken consumes a refresh token and returns a fresh session.
// The exchanged token is single-use: a replacement is installed atomically
// and the old token is gone whether or not the caller sees the response.
func (s *Service) ExchangeRefreshToken(ctx context.Context, token string) (*Session, error) {
	userID, expiresAt, err := s.tokens.Get(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if expiresAt.Before(time.Now()) {
		_ = s.tokens.Delete(ctx, token)
		return nil, ErrInvalidToken
	}
	email, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	refresh, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Rotate(ctx, token, utilities.NewSnowflakeID(), refresh, userID, time.Now().Add(s.RefreshTTL)); err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	access, err := s.signAccessToken(userID, email)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: access, RefreshToken: refresh, User: UserIdentity{ID: userID, Email: &email}}, nil
}

// CurrentUser validates an access token and re-reads the live user row,
// so a deleted account stops resolving even inside the token's lifetime.
func (s *Service) CurrentUser(ctx context.Context, accessToken string) (*UserIdentity, error) {
	parsed, err := jwt.Parse(accessToken, func(t *jwt.Token) (any, error) {
		return &s.key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithIssuer(s.issuer))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}
	email, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return &UserIdentity{ID: userID, Email: &email}, nil
}

func (s *Service) issueSession(ctx context.Context, userID uuid.UUID, email string) (*Session, error) {
	access, err := s.signAccessToken(userID, email)
	if err != nil {
		return nil, err
	}
	refresh, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Save(ctx, utilities.NewSnowflakeID(), refresh, userID, time.Now().Add(s.RefreshTTL)); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}
	return &Session{AccessToken: access, RefreshToken: refresh, User: UserIdentity{ID: userID, Email: &email}}, nil
}

func (s *Service) signAccessToken(userID uuid.UUID, email string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   s.issuer,
		"sub":   userID.String(),
		"exp":   now.Add(s.AccessTTL).Unix(),
		"iat":   now.Unix(),
		"email": email,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.kid
	return tok.SignedString(s.key)
}

func newOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
