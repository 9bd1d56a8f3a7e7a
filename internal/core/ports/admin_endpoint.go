package ports

import "context"

// AdminEndpoint is the remote privileged-role verification service.
type AdminEndpoint interface {
	// VerifyAdmin asks whether the bearer of the access token is an
	// administrator. Transport failures and non-2xx responses come back
	// wrapped in domain.ErrVerificationUnavailable.
	VerifyAdmin(ctx context.Context, accessToken string) (bool, error)
}
