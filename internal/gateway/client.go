// Package gateway is the thin HTTP boundary between the client layer and the
// forum backend. It owns request construction, response decoding, and the
// classification of every failure into a closed error taxonomy.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/msu-forum/client_layer/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// Client issues JSON calls against the forum backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	log        zerolog.Logger
	metrics    *metrics.Metrics

	authTimeout   time.Duration
	logoutTimeout time.Duration
	healthTimeout time.Duration
}

// ClientConfig configures the gateway client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// AuthTimeout bounds check-auth, login, and register calls.
	AuthTimeout time.Duration
	// LogoutTimeout bounds the best-effort logout call.
	LogoutTimeout time.Duration
	// HealthTimeout bounds the health probe.
	HealthTimeout time.Duration
	// RateLimit caps outbound requests per second. Zero disables limiting.
	RateLimit float64
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

// NewClient creates a gateway client. Zero config fields fall back to the
// defaults above.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	authTimeout := cfg.AuthTimeout
	if authTimeout == 0 {
		authTimeout = 10 * time.Second
	}
	logoutTimeout := cfg.LogoutTimeout
	if logoutTimeout == 0 {
		logoutTimeout = 5 * time.Second
	}
	healthTimeout := cfg.HealthTimeout
	if healthTimeout == 0 {
		healthTimeout = 5 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)+1)
	}

	m := cfg.Metrics
	if m == nil {
		m = metrics.Default()
	}

	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		limiter:       limiter,
		log:           cfg.Logger,
		metrics:       m,
		authTimeout:   authTimeout,
		logoutTimeout: logoutTimeout,
		healthTimeout: healthTimeout,
	}
}

// Questions fetches the latest question listing.
func (c *Client) Questions(ctx context.Context) ([]Question, error) {
	var out []Question
	if err := c.get(ctx, "questions", "/questions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchQuestions runs a server-side search for q.
func (c *Client) SearchQuestions(ctx context.Context, q string) ([]Question, error) {
	params := url.Values{}
	params.Set("q", q)
	var out []Question
	if err := c.get(ctx, "search", "/questions/search", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Tags fetches the tag listing.
func (c *Client) Tags(ctx context.Context) ([]Tag, error) {
	var out []Tag
	if err := c.get(ctx, "tags", "/tags", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckWallet asks the backend whether a wallet address is already
// registered.
func (c *Client) CheckWallet(ctx context.Context, wallet string) (WalletStatus, error) {
	var out WalletStatus
	err := c.post(ctx, "check_wallet", "/wallet", map[string]string{"wallet": wallet}, &out)
	return out, err
}

// Login exchanges a wallet address for a session.
func (c *Client) Login(ctx context.Context, wallet string) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.authTimeout)
	defer cancel()
	var out Session
	err := c.post(ctx, "login", "/login", map[string]string{"wallet": wallet}, &out)
	return out, err
}

// Register creates an account for a wallet address and returns its session.
func (c *Client) Register(ctx context.Context, wallet string) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.authTimeout)
	defer cancel()
	var out Session
	err := c.post(ctx, "register", "/register", map[string]string{"wallet": wallet}, &out)
	return out, err
}

// Logout notifies the backend. The response body is ignored; callers treat
// the call as best-effort.
func (c *Client) Logout(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.logoutTimeout)
	defer cancel()
	return c.post(ctx, "logout", "/logout", struct{}{}, nil)
}

// CheckAuth asks the backend whether the current transport-level session is
// still valid.
func (c *Client) CheckAuth(ctx context.Context) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.authTimeout)
	defer cancel()
	var out Session
	err := c.get(ctx, "check_auth", "/api/v1/check-auth", nil, &out)
	return out, err
}

// CheckHealth probes the backend's health endpoint.
func (c *Client) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()
	return c.get(ctx, "health", "/health", nil, nil)
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	return c.do(ctx, op, http.MethodGet, path, params, nil, out)
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	return c.do(ctx, op, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return transportError(err)
		}
	}

	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set(requestIDHeader, reqID)

	c.metrics.RequestsTotal.WithLabelValues(op).Inc()
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RequestErrors.WithLabelValues(KindUnavailable.String()).Inc()
		c.log.Warn().
			Str("op", op).
			Str("request_id", reqID).
			Err(err).
			Msg("request failed before a response")
		return transportError(err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("op", op).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request completed")

	if resp.StatusCode >= 400 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		serr := statusError(resp.StatusCode)
		c.metrics.RequestErrors.WithLabelValues(serr.Kind.String()).Inc()
		return serr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 8<<20))
		return nil
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return transportError(err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
