package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/justexisted/bonitaforward-identity/internal/api/metrics"
	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
	"github.com/justexisted/bonitaforward-identity/internal/core/ports"
)

// adminVerifier answers privileged-role checks for the current identity:
// remote endpoint first, static allow-list as fallback, with a per-sign-in
// cache that never silently downgrades a verified result.
type adminVerifier struct {
	endpoint  ports.AdminEndpoint
	source    ports.SessionSource
	allowlist map[string]struct{}
	log       zerolog.Logger

	mu   sync.Mutex
	last *domain.AdminVerification
}

// NewAdminVerifier builds the verifier. Allow-list entries are normalized
// once here; comparisons everywhere else go through the same rule.
func NewAdminVerifier(endpoint ports.AdminEndpoint, source ports.SessionSource, allowlist []string, log zerolog.Logger) ports.RoleVerifier {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, e := range allowlist {
		if n := normalizeEmail(e); n != "" {
			allowed[n] = struct{}{}
		}
	}
	return &adminVerifier{
		endpoint:  endpoint,
		source:    source,
		allowlist: allowed,
		log:       log,
	}
}

// normalizeEmail is the single comparison rule shared by the cache, the
// allow-list, and remote results. Divergent normalization is how admin
// checks flicker.
func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Verify returns the cached result when one is valid for the current email,
// otherwise performs a fresh check.
func (v *adminVerifier) Verify(ctx context.Context) domain.AdminVerification {
	return v.verify(ctx, false)
}

// Refresh bypasses the verified-result cache: the one sanctioned way to
// re-check an already verified email within a single sign-in.
func (v *adminVerifier) Refresh(ctx context.Context) domain.AdminVerification {
	return v.verify(ctx, true)
}

func (v *adminVerifier) verify(ctx context.Context, force bool) domain.AdminVerification {
	id := v.source.Identity()
	email := normalizeEmail(id.Email)

	// 1. Bootstrap still running: answering from the endpoint now could pin
	// a wrong negative for a valid admin. Serve the cache if it matches,
	// else an uncached unverified negative.
	if id.Loading {
		if cached := v.cached(email); cached != nil {
			metrics.VerificationsTotal.WithLabelValues("cache", resultLabel(cached.IsAdmin)).Inc()
			return *cached
		}
		metrics.VerificationsTotal.WithLabelValues("skipped", resultLabel(false)).Inc()
		return domain.AdminVerification{Email: email, Error: "identity still loading", CheckedAt: time.Now().UTC()}
	}

	// 2. Nobody signed in: a definitive, uncached negative.
	if !id.Authenticated || email == "" {
		metrics.VerificationsTotal.WithLabelValues("skipped", resultLabel(false)).Inc()
		return domain.AdminVerification{Email: email, Error: "no active session", CheckedAt: time.Now().UTC()}
	}

	// 3. A verified result for this email short-circuits until sign-out.
	if !force {
		if cached := v.cached(email); cached != nil && cached.Verified {
			metrics.VerificationsTotal.WithLabelValues("cache", resultLabel(cached.IsAdmin)).Inc()
			return *cached
		}
	}

	// 4. Remote check with the session's bearer credential.
	sess := v.source.Session()
	if sess == nil || sess.AccessToken == "" {
		return v.fallback(email, domain.ErrNoSession)
	}
	isAdmin, err := v.endpoint.VerifyAdmin(ctx, sess.AccessToken)
	if err != nil {
		return v.fallback(email, err)
	}

	result := domain.AdminVerification{
		Email:     email,
		IsAdmin:   isAdmin,
		Verified:  true,
		CheckedAt: time.Now().UTC(),
	}
	v.store(result)
	metrics.VerificationsTotal.WithLabelValues("remote", resultLabel(isAdmin)).Inc()
	v.log.Info().Str("email", email).Bool("is_admin", isAdmin).Msg("admin verification completed")
	return result
}

// fallback answers from the static allow-list when the endpoint cannot.
// The result is cached but unverified, so the next Verify retries the
// endpoint instead of pinning the fallback.
func (v *adminVerifier) fallback(email string, cause error) domain.AdminVerification {
	_, allowed := v.allowlist[email]
	result := domain.AdminVerification{
		Email:     email,
		IsAdmin:   allowed,
		Verified:  false,
		Error:     cause.Error(),
		CheckedAt: time.Now().UTC(),
	}
	v.store(result)
	metrics.VerificationsTotal.WithLabelValues("fallback", resultLabel(allowed)).Inc()
	if errors.Is(cause, domain.ErrVerificationUnavailable) || errors.Is(cause, domain.ErrNoSession) {
		v.log.Warn().Err(cause).Str("email", email).Bool("allowlisted", allowed).Msg("admin verification fell back to allow-list")
	} else {
		v.log.Error().Err(cause).Str("email", email).Msg("admin verification failed")
	}
	return result
}

// Allowlist returns the normalized fallback allow-list, sorted for stable
// output.
func (v *adminVerifier) Allowlist() []string {
	out := make([]string, 0, len(v.allowlist))
	for e := range v.allowlist {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Purge drops the cached verification. Wired to confirmed sign-outs.
func (v *adminVerifier) Purge() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.last = nil
}

// cached returns a copy of the cached result when it belongs to the given
// email. A cache entry for a different email never answers.
func (v *adminVerifier) cached(email string) *domain.AdminVerification {
	v.mu.Lock()
	defer v.mu.Unlock()
	if email == "" || v.last == nil || v.last.Email != email {
		return nil
	}
	cp := *v.last
	return &cp
}

func (v *adminVerifier) store(r domain.AdminVerification) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.last = &r
}

func resultLabel(isAdmin bool) string {
	if isAdmin {
		return "admin"
	}
	return "not_admin"
}
