package domain

// PendingProfileDraft bridges sign-up input to post-session profile
// creation: it is written before the provider session exists and consumed
// exactly once when the first sign-in lands. A consumed draft is deleted
// and never read again.
type PendingProfileDraft struct {
	Name      string                 `json:"name,omitempty"`
	Role      Role                   `json:"role,omitempty"`
	Residency *ResidencyVerification `json:"residency,omitempty"`
}

// Empty reports whether the draft carries nothing worth merging.
func (d *PendingProfileDraft) Empty() bool {
	return d == nil || (d.Name == "" && d.Role == RoleUnset && d.Residency == nil)
}
