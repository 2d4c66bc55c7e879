// Package backend is the HTTP client for the conversion backend: rates,
// banks, account verification, order initialization, and liquidity.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stackswap/internal/infra"
)

var (
	// ErrUnavailable wraps transport failures: the backend could not be reached.
	ErrUnavailable = errors.New("backend unreachable")
	// ErrMalformed means the backend answered but the payload is unusable.
	ErrMalformed = errors.New("malformed backend response")
)

// APIError is a rejection reported by the backend. Message is the backend's
// own text and is meant to be shown to the user verbatim.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("%s: api error (HTTP %d): %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}

// MessageOf returns the user-facing text for err: the backend message for an
// APIError, fallback otherwise.
func MessageOf(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// envelope is the backend's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// ════════════════════════════════════════════════════════════════════
// Client
// ════════════════════════════════════════════════════════════════════

// Client talks to the conversion backend over HTTP JSON.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *infra.RateLimiter
	metrics    *infra.Metrics
	logger     *logrus.Logger
}

// ClientConfig holds backend connection settings.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration // HTTP client timeout (default: 30s)
	HTTPClient *http.Client  // overrides Timeout when set
	Limiter    *infra.RateLimiter
	Metrics    *infra.Metrics
	Logger     *logrus.Logger
}

// NewClient creates a backend client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: hc,
		limiter:    cfg.Limiter,
		metrics:    cfg.Metrics,
		logger:     logger,
	}
}

// BaseURL returns the backend root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// ════════════════════════════════════════════════════════════════════
// HTTP Helpers
// ════════════════════════════════════════════════════════════════════

func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, endpoint, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, endpoint, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", endpoint, err)
	}
	return c.do(ctx, endpoint, http.MethodPost, path, bytes.NewReader(body), out)
}

// do performs one request, unwraps the envelope and decodes data into out.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body io.Reader, out any) (err error) {
	start := time.Now()
	status := "ok"
	defer func() {
		if err != nil {
			status = classify(err)
		}
		c.metrics.ObserveBackend(endpoint, status, time.Since(start))
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w: %v", endpoint, ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", endpoint, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w: read response: %v", endpoint, ErrUnavailable, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("%s: %w: %v", endpoint, ErrMalformed, err)
	}

	if !env.Success || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
			"message":  env.Message,
		}).Debug("backend rejected request")
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%s: %w: missing data", endpoint, ErrMalformed)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: %w: %v", endpoint, ErrMalformed, err)
	}
	return nil
}

func classify(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return "rejected"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "unavailable"
	}
}
