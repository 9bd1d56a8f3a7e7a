package domain

import "time"

// SessionEventKind identifies a lifecycle notification from the auth provider.
type SessionEventKind string

const (
	EventSignedIn       SessionEventKind = "SIGNED_IN"
	EventSignedOut      SessionEventKind = "SIGNED_OUT"
	EventTokenRefreshed SessionEventKind = "TOKEN_REFRESHED"
)

// Session is the ephemeral credential state owned by the auth provider. It
// is observed, never persisted: after a restart the provider is asked again.
type Session struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	AccessToken string    `json:"-"`
	TokenExpiry time.Time `json:"token_expiry"`
}

// Valid reports whether the session carries a usable, unexpired credential.
func (s *Session) Valid() bool {
	return s != nil && s.UserID != "" && s.AccessToken != "" && time.Now().Before(s.TokenExpiry)
}

// SessionEvent is one immutable lifecycle record. Session may be nil;
// sign-out notifications usually carry none.
type SessionEvent struct {
	Kind    SessionEventKind
	Session *Session
}
