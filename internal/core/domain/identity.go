package domain

// IdentityContext is the single externally observable identity value.
// Invariant: Authenticated == (Email != "").
type IdentityContext struct {
	Authenticated bool   `json:"is_authenticated"`
	Loading       bool   `json:"loading"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Role          Role   `json:"role,omitempty"`
}

// LoadingIdentity is the pre-bootstrap value: nothing is known yet.
func LoadingIdentity() IdentityContext {
	return IdentityContext{Loading: true}
}

// SignedOutIdentity is the clean not-authenticated state.
func SignedOutIdentity() IdentityContext {
	return IdentityContext{}
}

// SignedInIdentity builds an authenticated context. Authenticated is
// derived from the email, so the invariant holds by construction.
func SignedInIdentity(userID, email, name string, role Role) IdentityContext {
	return IdentityContext{
		Authenticated: email != "",
		UserID:        userID,
		Email:         email,
		Name:          name,
		Role:          role,
	}
}
