package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/justexisted/bonitaforward-identity/internal/api/metrics"
	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
	"github.com/justexisted/bonitaforward-identity/internal/core/ports"
)

// DefaultDraftScope keys the pending-draft slot when the deployment does
// not name one.
const DefaultDraftScope = "local"

// IdentityService reconciles the auth provider's session lifecycle with the
// locally persisted profile and publishes the resulting IdentityContext.
//
// All identity mutation flows through one goroutine: Start runs the
// bootstrapper, raises the ready barrier, then drains the provider's event
// stream in arrival order. Everything else only reads published snapshots.
type IdentityService struct {
	provider ports.AuthProvider
	profiles ports.ProfileStore
	drafts   ports.DraftStore
	upserter *ProfileUpserter
	caches   []ports.EphemeralCache
	scope    string

	state *identityState
	ready chan struct{}

	mu      sync.RWMutex // guards session and phase for cross-goroutine reads
	session *domain.Session
	phase   domain.Phase

	log zerolog.Logger
}

// Deps carries the collaborators an IdentityService needs.
type Deps struct {
	Provider ports.AuthProvider
	Profiles ports.ProfileStore
	Drafts   ports.DraftStore

	// Caches are purged when a sign-out is confirmed.
	Caches []ports.EphemeralCache

	// Scope keys the pending-draft slot this instance owns. Empty means
	// DefaultDraftScope.
	Scope string

	// ConfirmReadDelay, when positive, schedules a delayed diagnostic
	// re-read after each profile write.
	ConfirmReadDelay time.Duration

	Logger zerolog.Logger
}

// NewIdentityService wires the reconciler. Call Start to begin consuming
// provider events.
func NewIdentityService(deps Deps) *IdentityService {
	scope := deps.Scope
	if scope == "" {
		scope = DefaultDraftScope
	}
	return &IdentityService{
		provider: deps.Provider,
		profiles: deps.Profiles,
		drafts:   deps.Drafts,
		upserter: NewProfileUpserter(deps.Profiles, deps.Drafts, deps.ConfirmReadDelay, deps.Logger),
		caches:   deps.Caches,
		scope:    scope,
		state:    newIdentityState(),
		ready:    make(chan struct{}),
		phase:    domain.PhaseUninitialized,
		log:      deps.Logger,
	}
}

// RegisterCache adds a purge target after construction. Not safe to call
// once Start has run.
func (s *IdentityService) RegisterCache(c ports.EphemeralCache) {
	s.caches = append(s.caches, c)
}

// Start launches the event consumer and the bootstrapper and returns
// immediately. Use Ready to observe bootstrap completion; cancel ctx to
// stop consuming.
func (s *IdentityService) Start(ctx context.Context) {
	go s.consume(ctx)
	go s.runBootstrap(ctx)
}

// Identity returns the latest published context.
func (s *IdentityService) Identity() domain.IdentityContext {
	return s.state.snapshot()
}

// Subscribe returns a stream of published contexts plus its cancel.
func (s *IdentityService) Subscribe() (<-chan domain.IdentityContext, func()) {
	return s.state.subscribe()
}

// Ready is closed once bootstrap has finished, successfully or not.
func (s *IdentityService) Ready() <-chan struct{} {
	return s.ready
}

// Session returns a copy of the held provider session, or nil.
func (s *IdentityService) Session() *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

// Phase reports the current lifecycle phase.
func (s *IdentityService) Phase() domain.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// ── AuthFlow ──────────────────────────────────────────────────────────────────

// SignIn triggers a provider sign-in. State changes arrive through the
// event stream, not through the return value.
func (s *IdentityService) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	return s.provider.SignIn(ctx, email, password)
}

// SignUp stores the draft first, then registers the account. The order
// matters: the draft must be in place before any session event for the new
// account can arrive.
func (s *IdentityService) SignUp(ctx context.Context, email, password string, draft *domain.PendingProfileDraft) (*domain.Session, error) {
	if !draft.Empty() {
		if err := s.drafts.Put(ctx, s.scope, *draft); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDraftUnavailable, err)
		}
	}
	return s.provider.SignUp(ctx, email, password)
}

// SignOut triggers a provider sign-out. Local state is cleared when the
// resulting event is confirmed, not here.
func (s *IdentityService) SignOut(ctx context.Context) error {
	return s.provider.SignOut(ctx)
}

// ── internal state helpers ────────────────────────────────────────────────────

// publish replaces the published context and mirrors it onto the gauge.
func (s *IdentityService) publish(id domain.IdentityContext) {
	s.state.publish(id)
	if id.Authenticated {
		metrics.AuthenticatedState.Set(1)
	} else {
		metrics.AuthenticatedState.Set(0)
	}
}

func (s *IdentityService) setSession(sess *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
}

// setPhase moves the lifecycle forward. An invalid hop indicates a bug; it
// is logged and applied anyway rather than wedging the reconciler.
func (s *IdentityService) setPhase(next domain.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == next {
		return
	}
	if !s.phase.CanTransitionTo(next) {
		s.log.Error().
			Str("from", string(s.phase)).
			Str("to", string(next)).
			Msg("unexpected lifecycle transition")
	}
	s.phase = next
}
