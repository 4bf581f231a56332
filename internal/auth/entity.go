package auth

import "github.com/google/uuid"

// UserIdentity is the authenticated identity as the backend reports it.
// Overwritten wholesale on every successful refresh, never merged.
type UserIdentity struct {
	ID    uuid.UUID
	Email *string
}

// Session is a live authenticated session: a short-lived access token plus
// the rotated single-use refresh token that replaces the one exchanged.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         UserIdentity
}
