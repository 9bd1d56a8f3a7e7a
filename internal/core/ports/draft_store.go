package ports

import (
	"context"

	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
)

// DraftStore holds at most one pending profile draft per scope. Drafts
// survive process restarts within a scope but are never shared across
// scopes.
type DraftStore interface {
	// Get returns the scope's draft, or (nil, nil) when none is pending.
	Get(ctx context.Context, scope string) (*domain.PendingProfileDraft, error)

	// Put stores the draft, replacing any previous one for the scope.
	Put(ctx context.Context, scope string, draft domain.PendingProfileDraft) error

	// Remove deletes the scope's draft. Removing an absent draft is not an
	// error.
	Remove(ctx context.Context, scope string) error
}
