package service

import (
	"context"
	"errors"

	"github.com/justexisted/bonitaforward-identity/internal/api/metrics"
	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
)

// runBootstrap executes the run-once bootstrap and raises the ready
// barrier. The barrier goes up no matter how bootstrap went; a failed
// bootstrap degrades to signed-out, it never leaves consumers waiting.
func (s *IdentityService) runBootstrap(ctx context.Context) {
	s.bootstrap(ctx)
	close(s.ready)
	s.log.Info().Str("phase", string(s.Phase())).Msg("bootstrap complete, event handling enabled")
}

// bootstrap resolves the initial identity: ask the provider for the current
// session, reconcile the profile row against it, publish the result. It
// runs exactly once per process lifetime.
func (s *IdentityService) bootstrap(ctx context.Context) {
	s.setPhase(domain.PhaseLoadingSession)

	// 1. Current session from the provider.
	sess, err := s.provider.CurrentSession(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("bootstrap: session fetch failed, degrading to signed-out")
		s.finishSignedOut()
		metrics.BootstrapsTotal.WithLabelValues("degraded").Inc()
		return
	}
	if ctx.Err() != nil {
		return
	}
	if sess == nil || !sess.Valid() {
		s.log.Info().Msg("bootstrap: no active session")
		s.finishSignedOut()
		metrics.BootstrapsTotal.WithLabelValues("signed_out").Inc()
		return
	}

	s.setSession(sess)
	s.setPhase(domain.PhaseFetchingProfile)

	// 2. Stored profile, if any.
	profile, err := s.profiles.ReadByID(ctx, sess.UserID)
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		s.log.Warn().Err(err).Str("user_id", sess.UserID).Msg("bootstrap: profile read failed, degrading to signed-out")
		s.setSession(nil)
		s.finishSignedOut()
		metrics.BootstrapsTotal.WithLabelValues("degraded").Inc()
		return
	}

	// 3. Pending draft, if any. A draft read failure is survivable; the
	// draft stays put for a later retry.
	draft, err := s.drafts.Get(ctx, s.scope)
	if err != nil {
		s.log.Warn().Err(err).Msg("bootstrap: draft read failed, continuing without it")
		draft = nil
	}

	// 4. Write only when something needs reconciling: a missing row, a
	// pending draft, or an email that drifted from the session's.
	if profile != nil && draft.Empty() && profile.Email == sess.Email {
		s.finishSignedIn(identityFromProfile(sess, profile))
		metrics.BootstrapsTotal.WithLabelValues("signed_in").Inc()
		s.log.Info().Str("email", sess.Email).Msg("bootstrap: identity established from stored profile")
		return
	}

	written, err := s.upserter.Upsert(ctx, UpsertInput{
		UserID: sess.UserID,
		Email:  sess.Email,
		Draft:  draft,
		Scope:  s.scope,
	})
	if err != nil {
		// The session is still real. Publish the best consistent view we
		// can prove: the stored row, else the draft, else session fields
		// alone. The draft survives for the next attempt.
		s.log.Warn().Err(err).Str("user_id", sess.UserID).Msg("bootstrap: profile write failed, using last known values")
		switch {
		case profile != nil:
			s.finishSignedIn(identityFromProfile(sess, profile))
		case !draft.Empty():
			s.finishSignedIn(identityFromDraft(sess, draft))
		default:
			s.finishSignedIn(domain.SignedInIdentity(sess.UserID, sess.Email, "", domain.RoleUnset))
		}
		metrics.BootstrapsTotal.WithLabelValues("signed_in").Inc()
		return
	}

	if ctx.Err() != nil {
		return
	}
	s.finishSignedIn(identityFromProfile(sess, written))
	metrics.BootstrapsTotal.WithLabelValues("signed_in").Inc()
	s.log.Info().
		Str("email", sess.Email).
		Str("user_id", sess.UserID).
		Msg("bootstrap: identity established")
}

// finishSignedIn publishes an authenticated context.
func (s *IdentityService) finishSignedIn(id domain.IdentityContext) {
	s.publish(id)
	s.setPhase(domain.PhaseReadySignedIn)
}

// finishSignedOut publishes the clean signed-out context without touching
// caches; use clearIdentity for confirmed sign-outs.
func (s *IdentityService) finishSignedOut() {
	s.publish(domain.SignedOutIdentity())
	s.setPhase(domain.PhaseReadySignedOut)
}

// identityFromProfile builds the context from a stored row. Email comes
// from the session, which is authoritative for who is signed in.
func identityFromProfile(sess *domain.Session, p *domain.Profile) domain.IdentityContext {
	return domain.SignedInIdentity(sess.UserID, sess.Email, p.Name, p.Role)
}

// identityFromDraft builds the context from not-yet-persisted sign-up input.
func identityFromDraft(sess *domain.Session, d *domain.PendingProfileDraft) domain.IdentityContext {
	return domain.SignedInIdentity(sess.UserID, sess.Email, d.Name, d.Role)
}
