package service

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/justexisted/bonitaforward-identity/internal/api/metrics"
	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
)

// consume drains the provider's event stream. It is the only goroutine
// that mutates identity state, which is what makes per-event handling
// atomic without any wider locking.
func (s *IdentityService) consume(ctx context.Context) {
	events := s.provider.Events()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("event consumer stopped")
			return
		case ev, ok := <-events:
			if !ok {
				s.log.Info().Msg("provider event stream closed")
				return
			}
			s.dispatch(ctx, ev)
		}
	}
}

// dispatch routes one event to its handler. Events that arrive before the
// bootstrap barrier is raised are dropped, never queued for replay: the
// bootstrapper will observe their net effect itself.
func (s *IdentityService) dispatch(ctx context.Context, ev domain.SessionEvent) {
	select {
	case <-s.ready:
	default:
		s.log.Warn().Str("kind", string(ev.Kind)).Msg("event dropped, bootstrap still running")
		metrics.SessionEventsTotal.WithLabelValues(string(ev.Kind), "dropped").Inc()
		return
	}

	timer := prometheus.NewTimer(metrics.EventHandleDuration.WithLabelValues(string(ev.Kind)))
	defer timer.ObserveDuration()

	switch ev.Kind {
	case domain.EventSignedIn:
		s.handleSignedIn(ctx, ev)
	case domain.EventSignedOut:
		s.handleSignedOut(ctx)
	case domain.EventTokenRefreshed:
		s.handleTokenRefreshed(ctx, ev)
	default:
		s.log.Warn().Str("kind", string(ev.Kind)).Msg("unknown session event ignored")
		metrics.SessionEventsTotal.WithLabelValues(string(ev.Kind), "ignored").Inc()
	}
}

// handleSignedIn reconciles a sign-in notification: consume any pending
// draft, write the profile, then read it back. The write strictly precedes
// the read so a freshly signed-up member never sees their own fields
// missing.
func (s *IdentityService) handleSignedIn(ctx context.Context, ev domain.SessionEvent) {
	sess := ev.Session
	if sess == nil || sess.UserID == "" || sess.Email == "" {
		s.log.Warn().Msg("sign-in event without a usable session ignored")
		metrics.SessionEventsTotal.WithLabelValues(string(domain.EventSignedIn), "ignored").Inc()
		return
	}

	// 1. Idempotency: a repeat notification for the already published
	// identity only rotates the held credential.
	cur := s.state.snapshot()
	if cur.Authenticated && cur.Email == sess.Email {
		s.setSession(sess)
		s.log.Debug().Str("email", sess.Email).Msg("duplicate sign-in, context unchanged")
		metrics.SessionEventsTotal.WithLabelValues(string(domain.EventSignedIn), "noop").Inc()
		return
	}

	s.setPhase(domain.PhaseFetchingProfile)
	s.setSession(sess)

	// 2. Pending draft from sign-up, if any.
	draft, err := s.drafts.Get(ctx, s.scope)
	if err != nil {
		s.log.Warn().Err(err).Msg("draft read failed, continuing without it")
		draft = nil
	}

	// 3. Write before any read of display fields.
	written, err := s.upserter.Upsert(ctx, UpsertInput{
		UserID: sess.UserID,
		Email:  sess.Email,
		Draft:  draft,
		Scope:  s.scope,
	})
	if err != nil {
		s.failSignedIn(cur, sess, err)
		return
	}

	// 4. Read back; stored values win, written values fill gaps the read
	// has not caught up on yet.
	identity := s.readBackIdentity(ctx, sess, written)
	s.finishSignedIn(identity)
	metrics.SessionEventsTotal.WithLabelValues(string(domain.EventSignedIn), "handled").Inc()
	s.log.Info().
		Str("email", identity.Email).
		Str("user_id", identity.UserID).
		Str("role", string(identity.Role)).
		Msg("signed in")
}

// failSignedIn resolves a sign-in whose profile write failed. A stale
// previous identity must not survive a user switch, so anything short of
// the same already-published user degrades to clean signed-out. The draft
// is left in place for the next attempt.
func (s *IdentityService) failSignedIn(prev domain.IdentityContext, sess *domain.Session, err error) {
	outcome := "error"
	if errors.Is(err, domain.ErrPermissionDenied) {
		outcome = "permission_denied"
		s.log.Error().Err(err).Str("user_id", sess.UserID).Msg("profile write rejected by store rules")
	} else {
		s.log.Warn().Err(err).Str("user_id", sess.UserID).Msg("profile write failed")
	}
	metrics.SessionEventsTotal.WithLabelValues(string(domain.EventSignedIn), outcome).Inc()

	if prev.Authenticated {
		s.log.Warn().
			Str("from", prev.Email).
			Str("to", sess.Email).
			Msg("user switch failed mid-write, publishing signed-out")
	}
	s.finishSignedOut()
}

// readBackIdentity re-reads the row that was just written. Under an
// eventually consistent read the row may still be missing or stale; the
// written values stand in for whatever the read cannot confirm yet.
func (s *IdentityService) readBackIdentity(ctx context.Context, sess *domain.Session, written *domain.Profile) domain.IdentityContext {
	fresh, err := s.profiles.ReadByID(ctx, sess.UserID)
	if err != nil || fresh == nil {
		if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
			s.log.Debug().Err(err).Str("user_id", sess.UserID).Msg("read-back failed, using written values")
		}
		return identityFromProfile(sess, written)
	}
	name := fresh.Name
	if name == "" {
		name = written.Name
	}
	role := fresh.Role
	if role == domain.RoleUnset {
		role = written.Role
	}
	return domain.SignedInIdentity(sess.UserID, sess.Email, name, role)
}

// handleSignedOut validates a sign-out notification before acting on it.
// Providers emit spurious sign-outs (multi-tab races, transient network
// blips), so the session is re-queried first: read before clear.
func (s *IdentityService) handleSignedOut(ctx context.Context) {
	sess, err := s.provider.CurrentSession(ctx)
	if err != nil {
		// Can't prove the session is alive; holding on to an identity we
		// cannot verify is worse than re-authenticating.
		s.log.Warn().Err(err).Msg("sign-out re-check failed, treating session as gone")
	} else if sess.Valid() {
		cur := s.state.snapshot()
		s.log.Warn().
			Str("published_email", cur.Email).
			Str("session_email", sess.Email).
			Msg("spurious sign-out suppressed, session still valid")
		metrics.SessionEventsTotal.WithLabelValues(string(domain.EventSignedOut), "suppressed").Inc()
		return
	}

	if ctx.Err() != nil {
		return
	}
	s.clearIdentity()
	metrics.SessionEventsTotal.WithLabelValues(string(domain.EventSignedOut), "handled").Inc()
}

// handleTokenRefreshed rotates the held credential without touching the
// published context. A refresh that arrives without a valid session is a
// sign-out in disguise and goes through the same re-validation path.
func (s *IdentityService) handleTokenRefreshed(ctx context.Context, ev domain.SessionEvent) {
	if !ev.Session.Valid() {
		s.log.Warn().Msg("token refresh without a valid session, re-validating")
		s.handleSignedOut(ctx)
		return
	}
	s.setSession(ev.Session)
	s.log.Debug().Str("email", ev.Session.Email).Msg("access token rotated")
	metrics.SessionEventsTotal.WithLabelValues(string(domain.EventTokenRefreshed), "noop").Inc()
}

// clearIdentity applies a confirmed sign-out: drop the held session,
// publish the clean signed-out context, purge ephemeral caches. The
// pending draft is not touched; it belongs to the next sign-in.
func (s *IdentityService) clearIdentity() {
	s.setSession(nil)
	s.finishSignedOut()
	for _, c := range s.caches {
		c.Purge()
	}
	s.log.Info().Msg("identity cleared")
}
