// Package adminapi calls the remote privileged-role verification endpoint.
package adminapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
)

const defaultTimeout = 5 * time.Second

// Config captures the settings for the verification endpoint client.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client implements ports.AdminEndpoint over HTTP: POST with the bearer
// token, read {"isAdmin": bool}. Every failure mode comes back wrapped in
// domain.ErrVerificationUnavailable so callers can take the allow-list
// fallback without inspecting transport details.
type Client struct {
	url string
	hc  *http.Client
	log zerolog.Logger
}

// NewClient builds the client. A zero timeout falls back to the default.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url: cfg.URL,
		hc:  &http.Client{Timeout: timeout},
		log: log,
	}
}

// VerifyAdmin asks the endpoint whether the token's bearer is an
// administrator.
func (c *Client) VerifyAdmin(ctx context.Context, accessToken string) (bool, error) {
	if c.url == "" {
		return false, fmt.Errorf("%w: no endpoint configured", domain.ErrVerificationUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("%w: build request: %v", domain.ErrVerificationUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.hc.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrVerificationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("%w: status %d", domain.ErrVerificationUnavailable, resp.StatusCode)
	}

	var out struct {
		IsAdmin bool `json:"isAdmin"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("%w: decode response: %v", domain.ErrVerificationUnavailable, err)
	}
	return out.IsAdmin, nil
}
