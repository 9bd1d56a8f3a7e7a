package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
	"github.com/justexisted/bonitaforward-identity/internal/core/ports"
)

// AuthHandler exposes the provider's sign-up, sign-in, and sign-out
// triggers. Identity state is never returned here; it flows through the
// reconciler and is read from /v1/identity.
type AuthHandler struct {
	flow ports.AuthFlow
}

func NewAuthHandler(flow ports.AuthFlow) *AuthHandler {
	return &AuthHandler{flow: flow}
}

// SignUp registers a new account. Profile fields travel as a pending
// draft, stored before the provider is called so the draft exists before
// any session for the new account can.
//
// @Summary      Register a new member account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      signUpRequest  true  "Registration details"
// @Success      201   {object}  sessionResponse
// @Success      202   {object}  acceptedResponse
// @Failure      400   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/auth/signup [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	sess, err := h.flow.SignUp(c.Request().Context(), req.Email, req.Password, req.toDraft())
	if err != nil {
		return err
	}
	if sess == nil {
		return c.JSON(http.StatusAccepted, acceptedResponse{Message: "confirmation email sent"})
	}
	return c.JSON(http.StatusCreated, toSessionResponse(sess))
}

// SignIn exchanges credentials for a provider session.
//
// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      signInRequest  true  "Credentials"
// @Success      200   {object}  sessionResponse
// @Failure      401   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/auth/signin [post]
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	sess, err := h.flow.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionResponse(sess))
}

// SignOut revokes the current provider session. Signing out while already
// signed out is a no-op success.
//
// @Summary      Sign out
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      204  "session revoked"
// @Failure      502  {object}  errorResponse
// @Router       /v1/auth/signout [post]
func (h *AuthHandler) SignOut(c echo.Context) error {
	if err := h.flow.SignOut(c.Request().Context()); err != nil && !errors.Is(err, domain.ErrNoSession) {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
