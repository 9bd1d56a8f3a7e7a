package domain

import "errors"

// ErrProfileNotFound signals that no profile row exists for the user id.
var ErrProfileNotFound = errors.New("profile not found")

// ErrProfileExists signals an insert that lost a creation race; callers
// fall back to the update branch.
var ErrProfileExists = errors.New("profile already exists")

// ErrPermissionDenied marks a write rejected by the store's own per-row
// access rules rather than by this service.
var ErrPermissionDenied = errors.New("write rejected by store access rules")

// ErrNoSession signals an operation that needs an active session when the
// provider reports none.
var ErrNoSession = errors.New("no active session")

// ErrInvalidCredentials is returned by the provider for a bad email or
// password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrDraftUnavailable signals that the pending-draft store could not take
// the draft; sign-up aborts rather than registering an account whose
// profile fields would be lost.
var ErrDraftUnavailable = errors.New("pending draft store unavailable")

// ErrVerificationUnavailable wraps failures of the remote privileged-role
// endpoint; callers take the allow-list fallback.
var ErrVerificationUnavailable = errors.New("verification endpoint unavailable")
