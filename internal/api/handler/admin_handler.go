package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/justexisted/bonitaforward-identity/internal/core/ports"
)

// AdminHandler exposes the privileged-role verifier.
type AdminHandler struct {
	verifier ports.RoleVerifier
}

func NewAdminHandler(verifier ports.RoleVerifier) *AdminHandler {
	return &AdminHandler{verifier: verifier}
}

type allowlistResponse struct {
	Emails []string `json:"emails"`
}

// Status reports the verification result for the current identity.
// ?refresh=true forces a re-check past the verified-result cache.
//
// @Summary      Privileged-role status
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        refresh  query     bool  false  "bypass the verified-result cache"
// @Success      200      {object}  domain.AdminVerification
// @Router       /v1/admin/status [get]
func (h *AdminHandler) Status(c echo.Context) error {
	ctx := c.Request().Context()
	if c.QueryParam("refresh") == "true" {
		return c.JSON(http.StatusOK, h.verifier.Refresh(ctx))
	}
	return c.JSON(http.StatusOK, h.verifier.Verify(ctx))
}

// Allowlist returns the static fallback allow-list. Admin only.
//
// @Summary      Verification fallback allow-list
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  allowlistResponse
// @Failure      403  {object}  errorResponse
// @Router       /v1/admin/allowlist [get]
func (h *AdminHandler) Allowlist(c echo.Context) error {
	return c.JSON(http.StatusOK, allowlistResponse{Emails: h.verifier.Allowlist()})
}
