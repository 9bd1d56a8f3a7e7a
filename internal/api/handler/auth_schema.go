package handler

import (
	"time"

	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
)

type residencyRequest struct {
	IsResident bool   `json:"is_resident"`
	Method     string `json:"method" validate:"required"`
	Zip        string `json:"zip"    validate:"required,len=5"`
}

type signUpRequest struct {
	Email     string            `json:"email"    validate:"required,email"`
	Password  string            `json:"password" validate:"required,min=8"`
	Name      string            `json:"name"`
	Role      string            `json:"role"     validate:"omitempty,oneof=business community"`
	Residency *residencyRequest `json:"residency"`
}

type signInRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	TokenExpiry time.Time `json:"token_expiry"`
}

type acceptedResponse struct {
	Message string `json:"message"`
}

// toDraft maps the sign-up request's profile fields onto a pending draft.
func (r signUpRequest) toDraft() *domain.PendingProfileDraft {
	draft := &domain.PendingProfileDraft{
		Name: r.Name,
		Role: domain.ParseRole(r.Role),
	}
	if r.Residency != nil {
		draft.Residency = &domain.ResidencyVerification{
			IsResident: r.Residency.IsResident,
			Method:     r.Residency.Method,
			Zip:        r.Residency.Zip,
			VerifiedAt: time.Now().UTC(),
		}
	}
	return draft
}

// toSessionResponse maps a provider session onto the API shape.
func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		UserID:      s.UserID,
		Email:       s.Email,
		TokenExpiry: s.TokenExpiry,
	}
}
