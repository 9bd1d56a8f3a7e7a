package ports

import (
	"context"

	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
)

// IdentityReader exposes the published identity state to consumers. The
// returned values are immutable snapshots; mutation happens only inside
// the reconciler.
type IdentityReader interface {
	// Identity returns the latest published context.
	Identity() domain.IdentityContext

	// Subscribe returns a stream of published contexts plus a cancel
	// function that releases the subscription. Slow subscribers may miss
	// intermediate values but always converge on the latest one.
	Subscribe() (<-chan domain.IdentityContext, func())

	// Ready is closed once the bootstrap barrier is raised.
	Ready() <-chan struct{}
}

// SessionSource exposes the current identity together with the held
// provider session, for callers that need the bearer credential.
type SessionSource interface {
	Identity() domain.IdentityContext
	Session() *domain.Session
}

// AuthFlow drives the provider's opaque sign-in, sign-up, and sign-out
// triggers through the identity service.
type AuthFlow interface {
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)

	// SignUp stores the draft for this service's scope first, then triggers
	// provider registration. The draft is consumed by the reconciler when
	// the resulting sign-in notification lands.
	SignUp(ctx context.Context, email, password string, draft *domain.PendingProfileDraft) (*domain.Session, error)

	SignOut(ctx context.Context) error
}

// RoleVerifier answers privileged-role checks for the current identity.
type RoleVerifier interface {
	// Verify returns the cached result when one is valid for the current
	// email, otherwise consults the remote endpoint with allow-list
	// fallback.
	Verify(ctx context.Context) domain.AdminVerification

	// Refresh bypasses the verified-result cache and re-checks.
	Refresh(ctx context.Context) domain.AdminVerification

	// Allowlist returns the normalized fallback allow-list.
	Allowlist() []string

	EphemeralCache
}

// EphemeralCache is local-only state that must be purged when a sign-out
// is confirmed.
type EphemeralCache interface {
	Purge()
}
