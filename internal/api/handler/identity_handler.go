package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/justexisted/bonitaforward-identity/internal/core/ports"
)

// IdentityHandler exposes the published identity context: a point-in-time
// snapshot and a server-sent-events stream that follows transitions.
type IdentityHandler struct {
	identity ports.IdentityReader
}

func NewIdentityHandler(identity ports.IdentityReader) *IdentityHandler {
	return &IdentityHandler{identity: identity}
}

// Get returns the latest published identity context.
//
// @Summary      Current identity context
// @Tags         identity
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.IdentityContext
// @Router       /v1/identity [get]
func (h *IdentityHandler) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, h.identity.Identity())
}

// Watch streams identity transitions as server-sent events. The current
// context is sent immediately, then every published change until the
// client disconnects.
//
// @Summary      Stream identity transitions
// @Tags         identity
// @Produce      text/event-stream
// @Security     BearerAuth
// @Success      200  {string}  string  "SSE stream of identity contexts"
// @Router       /v1/identity/watch [get]
func (h *IdentityHandler) Watch(c echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	updates, cancel := h.identity.Subscribe()
	defer cancel()

	// Opening snapshot so the client never waits for the first transition.
	if err := writeEvent(res, h.identity.Identity()); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case id, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEvent(res, id); err != nil {
				return nil
			}
		}
	}
}

// writeEvent writes one SSE frame and flushes it to the client.
func writeEvent(res *echo.Response, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "data: %s\n\n", raw); err != nil {
		return err
	}
	res.Flush()
	return nil
}
