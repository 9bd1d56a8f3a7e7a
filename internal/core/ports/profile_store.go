package ports

import (
	"context"

	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
)

// ProfileChanges lists the fields an update may touch. Nil pointers leave
// the stored value alone.
type ProfileChanges struct {
	Email     *string
	Name      *string
	Role      *domain.Role
	Residency *domain.ResidencyVerification
}

// Empty reports whether the change set would touch nothing.
func (c ProfileChanges) Empty() bool {
	return c.Email == nil && c.Name == nil && c.Role == nil && c.Residency == nil
}

// ProfileStore persists member profiles. The store enforces its own
// per-row access rules independently of any application-level check;
// implementations surface such rejections as domain.ErrPermissionDenied.
type ProfileStore interface {
	// ReadByID returns the profile for the user id, or
	// domain.ErrProfileNotFound when no row exists.
	ReadByID(ctx context.Context, id string) (*domain.Profile, error)

	// Insert creates a new row and returns domain.ErrProfileExists when one
	// is already there.
	Insert(ctx context.Context, p *domain.Profile) error

	// Update applies the non-nil changes to an existing row.
	Update(ctx context.Context, id string, changes ProfileChanges) error
}
