package domain

import (
	"strings"
	"time"
)

// Role is the closed set of membership roles a profile can carry.
type Role string

const (
	RoleBusiness  Role = "business"
	RoleCommunity Role = "community"

	// RoleUnset is the explicit absent value. Unknown or empty role strings
	// collapse to it at the storage boundary instead of leaking through.
	RoleUnset Role = ""
)

// ParseRole maps a stored role string onto the closed enum.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleBusiness:
		return RoleBusiness
	case RoleCommunity:
		return RoleCommunity
	default:
		return RoleUnset
	}
}

// ResidencyVerification records how a member proved local residency.
type ResidencyVerification struct {
	IsResident bool      `json:"is_resident"`
	Method     string    `json:"method,omitempty"`
	Zip        string    `json:"zip,omitempty"`
	VerifiedAt time.Time `json:"verified_at"`
}

// Profile is the persistent per-member record, one row per user id. Email
// tracks the session email but may lag it inside an eventual-consistency
// window.
type Profile struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	Residency *ResidencyVerification
	CreatedAt time.Time
	UpdatedAt time.Time
}
