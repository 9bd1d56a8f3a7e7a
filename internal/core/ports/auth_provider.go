package ports

import (
	"context"

	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
)

// AuthProvider is the remote authentication service as this process sees
// it: a current-session snapshot, a lifecycle event stream, and opaque
// sign-in, sign-up, and sign-out triggers. The provider owns credential
// validity; nothing here second-guesses it.
type AuthProvider interface {
	// CurrentSession returns the provider's present session, or nil when
	// signed out. Implementations may renew an expired credential before
	// answering.
	CurrentSession(ctx context.Context) (*domain.Session, error)

	// Events returns the single-consumer lifecycle stream in arrival
	// order. The channel closes when the provider shuts down.
	Events() <-chan domain.SessionEvent

	SignIn(ctx context.Context, email, password string) (*domain.Session, error)

	// SignUp registers a new account. The returned session is nil when the
	// provider requires email confirmation before the first sign-in.
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)

	SignOut(ctx context.Context) error
}
