package domain

import "time"

// AdminVerification is the outcome of one privileged-role check, cached by
// email for the lifetime of a sign-in. Once Verified is true the result is
// never silently downgraded; only a new explicit attempt, or the sign-out
// purge, can replace it.
type AdminVerification struct {
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	Verified  bool      `json:"verified"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
