// Package authgw implements the AuthProvider port against a GoTrue-shaped
// HTTP authentication service. The provider owns all credential state;
// this client holds the current session in memory only and re-asks after
// every restart.
package authgw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRefreshMargin = 2 * time.Minute
	refreshTick          = 30 * time.Second
	eventBuffer          = 64
)

// errInvalidGrant marks a definitive provider rejection of a credential,
// as opposed to a transient transport failure.
var errInvalidGrant = errors.New("invalid grant")

// Config captures the settings for the auth gateway client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// RefreshMargin is how far before expiry the background loop renews
	// the access token.
	RefreshMargin time.Duration
}

// Client talks to the remote authentication provider and emits session
// lifecycle events onto a single-consumer channel.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	margin  time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	session *domain.Session
	refresh string // refresh token paired with the current session

	events chan domain.SessionEvent
}

// NewClient builds the client. Defaults apply for zero timeout and margin.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	margin := cfg.RefreshMargin
	if margin <= 0 {
		margin = defaultRefreshMargin
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		hc:      &http.Client{Timeout: timeout},
		margin:  margin,
		log:     log,
		events:  make(chan domain.SessionEvent, eventBuffer),
	}
}

// Events returns the lifecycle stream. Single consumer, arrival order.
func (c *Client) Events() <-chan domain.SessionEvent {
	return c.events
}

// Start launches the background refresh loop. The loop renews the access
// token ahead of expiry and emits TOKEN_REFRESHED. A transient refresh
// failure keeps the session and retries on the next tick; it must never
// turn into a synthesized sign-out. Only a definitive rejection of the
// refresh token ends the session.
func (c *Client) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(refreshTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.refreshIfNeeded(ctx)
			}
		}
	}()
}

func (c *Client) refreshIfNeeded(ctx context.Context) {
	c.mu.Lock()
	sess, token := c.session, c.refresh
	c.mu.Unlock()
	if sess == nil || token == "" {
		return
	}
	if time.Until(sess.TokenExpiry) > c.margin {
		return
	}

	if _, err := c.refreshSession(ctx, token); err != nil {
		if errors.Is(err, errInvalidGrant) {
			c.log.Warn().Err(err).Msg("refresh token rejected, session terminated")
			c.dropSession()
			c.emit(domain.SessionEvent{Kind: domain.EventSignedOut})
			return
		}
		c.log.Warn().Err(err).Msg("token refresh failed, will retry")
	}
}

// CurrentSession reports the provider's present session, renewing an
// expired credential when a refresh token is on hand. It answers nil, not
// an error, for a definitively ended session.
func (c *Client) CurrentSession(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	sess, token := c.session, c.refresh
	c.mu.Unlock()

	if sess == nil {
		return nil, nil
	}
	if time.Now().Before(sess.TokenExpiry) {
		cp := *sess
		return &cp, nil
	}
	if token == "" {
		c.dropSession()
		return nil, nil
	}

	renewed, err := c.refreshSession(ctx, token)
	if err != nil {
		if errors.Is(err, errInvalidGrant) {
			c.dropSession()
			return nil, nil
		}
		return nil, fmt.Errorf("session refresh: %w", err)
	}
	return renewed, nil
}

// SignIn exchanges credentials for a session and emits SIGNED_IN.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	var resp tokenResponse
	err := c.post(ctx, "/token?grant_type=password", "", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		if errors.Is(err, errInvalidGrant) || statusOf(err) == http.StatusBadRequest || statusOf(err) == http.StatusUnauthorized {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("sign in: %w", err)
	}

	sess := c.adopt(resp)
	c.emit(domain.SessionEvent{Kind: domain.EventSignedIn, Session: sess})
	c.log.Info().Str("email", sess.Email).Msg("signed in at provider")
	return sess, nil
}

// SignUp registers a new account. When the provider requires email
// confirmation it answers without tokens; the session is then nil and no
// event is emitted until the first real sign-in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	var resp tokenResponse
	err := c.post(ctx, "/signup", "", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}

	if resp.AccessToken == "" {
		c.log.Info().Str("email", email).Msg("sign-up pending email confirmation")
		return nil, nil
	}

	sess := c.adopt(resp)
	c.emit(domain.SessionEvent{Kind: domain.EventSignedIn, Session: sess})
	c.log.Info().Str("email", sess.Email).Msg("signed up at provider")
	return sess, nil
}

// SignOut revokes the session at the provider and emits SIGNED_OUT. With
// no session held it is a no-op. A transport failure keeps the session:
// the provider still considers it alive, and dropping it locally would
// manufacture the exact false sign-out the reconciler guards against.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return nil
	}

	err := c.post(ctx, "/logout", sess.AccessToken, nil, nil)
	if err != nil && statusOf(err) == 0 {
		return fmt.Errorf("sign out: %w", err)
	}
	// Any provider answer, including 401 for an already dead token, means
	// the session is finished.
	c.dropSession()
	c.emit(domain.SessionEvent{Kind: domain.EventSignedOut})
	c.log.Info().Msg("signed out at provider")
	return nil
}

// ── session bookkeeping ───────────────────────────────────────────────────────

// refreshSession exchanges the refresh token and emits TOKEN_REFRESHED.
func (c *Client) refreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	var resp tokenResponse
	err := c.post(ctx, "/token?grant_type=refresh_token", "", map[string]string{
		"refresh_token": refreshToken,
	}, &resp)
	if err != nil {
		return nil, err
	}
	sess := c.adopt(resp)
	c.emit(domain.SessionEvent{Kind: domain.EventTokenRefreshed, Session: sess})
	c.log.Debug().Time("expiry", sess.TokenExpiry).Msg("access token refreshed")
	return sess, nil
}

// adopt installs a token response as the current session and returns a
// copy. Identity and expiry prefer the token's own claims, with the
// response body as fallback; the provider signs the token, resource
// servers verify it, this client only schedules around it.
func (c *Client) adopt(resp tokenResponse) *domain.Session {
	sess := domain.Session{
		UserID:      resp.User.ID,
		Email:       resp.User.Email,
		AccessToken: resp.AccessToken,
		TokenExpiry: time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	applyClaims(&sess, resp.AccessToken)

	c.mu.Lock()
	c.session = &sess
	c.refresh = resp.RefreshToken
	c.mu.Unlock()

	cp := sess
	return &cp
}

func (c *Client) dropSession() {
	c.mu.Lock()
	c.session = nil
	c.refresh = ""
	c.mu.Unlock()
}

// emit hands one lifecycle record to the consumer. The buffer absorbs
// bursts; a full buffer means the consumer is wedged, and dropping with a
// loud log beats deadlocking the caller.
func (c *Client) emit(ev domain.SessionEvent) {
	select {
	case c.events <- ev:
	default:
		c.log.Error().Str("kind", string(ev.Kind)).Msg("event buffer full, event dropped")
	}
}

// applyClaims overrides session fields from the access token's claims when
// present. Parsing is unverified on purpose: scheduling hints only.
func applyClaims(sess *domain.Session, raw string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		sess.TokenExpiry = exp.Time
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		sess.UserID = sub
	}
	if email, ok := claims["email"].(string); ok && email != "" {
		sess.Email = email
	}
}

// ── wire types and HTTP plumbing ──────────────────────────────────────────────

type tokenUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         tokenUser `json:"user"`
}

// apiError is a non-2xx provider answer.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("provider status %d", e.Status)
}

// errorBody covers the provider's error shapes.
type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Msg         string `json:"msg"`
}

func statusOf(err error) int {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// post sends a JSON request and decodes the answer into out (when non-nil).
// bearer, when set, is sent as the Authorization credential.
func (c *Client) post(ctx context.Context, path, bearer string, body, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	var body errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)

	apiErr := &apiError{Status: resp.StatusCode, Code: body.Error}
	switch {
	case body.Description != "":
		apiErr.Message = body.Description
	case body.Msg != "":
		apiErr.Message = body.Msg
	default:
		apiErr.Message = body.Error
	}

	if body.Error == "invalid_grant" {
		return fmt.Errorf("%w: %s", errInvalidGrant, apiErr.Message)
	}
	return apiErr
}
