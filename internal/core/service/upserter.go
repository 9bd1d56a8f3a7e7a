package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/justexisted/bonitaforward-identity/internal/api/metrics"
	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
	"github.com/justexisted/bonitaforward-identity/internal/core/ports"
)

// confirmReadTimeout bounds the delayed diagnostic re-read.
const confirmReadTimeout = 5 * time.Second

// ProfileUpserter turns a (user id, email, draft) tuple into a persisted
// profile row. The write is check-then-branch, read by id then insert or
// update, never a blind combined upsert: the store evaluates its access
// rules per operation and a combined call can be rejected where the
// individual one would pass.
type ProfileUpserter struct {
	profiles     ports.ProfileStore
	drafts       ports.DraftStore
	confirmDelay time.Duration
	log          zerolog.Logger
}

// NewProfileUpserter builds the upserter. A confirmDelay of zero disables
// the delayed confirmatory read.
func NewProfileUpserter(profiles ports.ProfileStore, drafts ports.DraftStore, confirmDelay time.Duration, log zerolog.Logger) *ProfileUpserter {
	return &ProfileUpserter{
		profiles:     profiles,
		drafts:       drafts,
		confirmDelay: confirmDelay,
		log:          log,
	}
}

// UpsertInput identifies the profile row and the draft fields to merge.
type UpsertInput struct {
	UserID string
	Email  string
	Draft  *domain.PendingProfileDraft
	Scope  string
}

// Upsert persists the row and consumes the draft. On success the returned
// profile reflects what was written. On failure the draft stays in place
// so a retry can recover it, and the error wraps domain.ErrPermissionDenied
// when the store's access rules rejected the write.
func (u *ProfileUpserter) Upsert(ctx context.Context, in UpsertInput) (*domain.Profile, error) {
	// 1. Check which branch applies.
	existing, err := u.profiles.ReadByID(ctx, in.UserID)
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		return nil, fmt.Errorf("upsert precheck: %w", err)
	}

	// 2. Branch.
	var written *domain.Profile
	if existing == nil {
		written, err = u.insert(ctx, in)
		if errors.Is(err, domain.ErrProfileExists) {
			// Lost a creation race; the row exists now, so update applies.
			u.log.Debug().Str("user_id", in.UserID).Msg("insert raced an existing row, updating instead")
			existing, err = u.readAfterRace(ctx, in.UserID)
			if err == nil {
				written, err = u.update(ctx, in, existing)
			}
		}
	} else {
		written, err = u.update(ctx, in, existing)
	}
	if err != nil {
		return nil, err
	}

	// 3. Consume the draft only after the write landed. A failed delete is
	// logged, not fatal: the write already succeeded and a re-merge of the
	// same draft is idempotent.
	if !in.Draft.Empty() {
		if rmErr := u.drafts.Remove(ctx, in.Scope); rmErr != nil {
			u.log.Warn().Err(rmErr).Str("scope", in.Scope).Msg("failed to delete consumed draft")
		} else {
			metrics.DraftsConsumedTotal.Inc()
		}
	}

	// 4. Optional delayed re-read, diagnostics only. Detached from the
	// caller's cancellation so teardown cannot turn it into a false alarm.
	if u.confirmDelay > 0 {
		go u.confirmRead(context.WithoutCancel(ctx), in.UserID, written)
	}

	return written, nil
}

// insert creates the row from session identity plus draft fields.
func (u *ProfileUpserter) insert(ctx context.Context, in UpsertInput) (*domain.Profile, error) {
	now := time.Now().UTC()
	p := &domain.Profile{
		ID:        in.UserID,
		Email:     in.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if d := in.Draft; d != nil {
		p.Name = d.Name
		p.Role = d.Role
		p.Residency = d.Residency
	}
	if err := u.profiles.Insert(ctx, p); err != nil {
		metrics.ProfileWritesTotal.WithLabelValues("insert", writeOutcome(err)).Inc()
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	metrics.ProfileWritesTotal.WithLabelValues("insert", "ok").Inc()
	return p, nil
}

// update applies the email drift and the draft's non-empty fields to an
// existing row. Draft values win over stored ones; absent draft fields
// leave the row untouched.
func (u *ProfileUpserter) update(ctx context.Context, in UpsertInput, existing *domain.Profile) (*domain.Profile, error) {
	merged := &domain.Profile{ID: in.UserID, Email: in.Email}
	if existing != nil {
		*merged = *existing
	}

	var changes ports.ProfileChanges
	if existing == nil || existing.Email != in.Email {
		email := in.Email
		changes.Email = &email
		merged.Email = in.Email
	}
	if d := in.Draft; d != nil {
		if d.Name != "" {
			name := d.Name
			changes.Name = &name
			merged.Name = d.Name
		}
		if d.Role != domain.RoleUnset {
			role := d.Role
			changes.Role = &role
			merged.Role = d.Role
		}
		if d.Residency != nil {
			changes.Residency = d.Residency
			merged.Residency = d.Residency
		}
	}

	// Nothing drifted and no draft: the row is already what we would
	// write, so skip the round trip.
	if changes.Empty() {
		return merged, nil
	}

	if err := u.profiles.Update(ctx, in.UserID, changes); err != nil {
		metrics.ProfileWritesTotal.WithLabelValues("update", writeOutcome(err)).Inc()
		return nil, fmt.Errorf("update profile: %w", err)
	}
	merged.UpdatedAt = time.Now().UTC()
	metrics.ProfileWritesTotal.WithLabelValues("update", "ok").Inc()
	return merged, nil
}

// readAfterRace fetches the row that beat our insert.
func (u *ProfileUpserter) readAfterRace(ctx context.Context, id string) (*domain.Profile, error) {
	existing, err := u.profiles.ReadByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reread after insert race: %w", err)
	}
	return existing, nil
}

// confirmRead re-reads the row after a settle delay and logs a mismatch.
// It never mutates anything; by the time it fires the caller has already
// moved on with the written values.
func (u *ProfileUpserter) confirmRead(ctx context.Context, id string, want *domain.Profile) {
	t := time.NewTimer(u.confirmDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}

	readCtx, cancel := context.WithTimeout(ctx, confirmReadTimeout)
	defer cancel()

	got, err := u.profiles.ReadByID(readCtx, id)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		u.log.Warn().Str("user_id", id).Msg("confirmatory read: write not visible yet")
	case err != nil:
		u.log.Debug().Err(err).Str("user_id", id).Msg("confirmatory read failed")
	case got.Name != want.Name || got.Role != want.Role:
		u.log.Warn().
			Str("user_id", id).
			Str("stored_name", got.Name).
			Str("written_name", want.Name).
			Msg("confirmatory read: stored row differs from written values")
	default:
		u.log.Debug().Str("user_id", id).Msg("confirmatory read ok")
	}
}

// writeOutcome maps a store error onto the metric outcome label.
func writeOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, domain.ErrProfileExists):
		return "conflict"
	default:
		return "error"
	}
}
