// Package gateway talks to the laundry backend over HTTP. Client is the raw
// JSON transport; Authenticated layers the bearer credential and the
// refresh-once protocol on top of it.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/laundrydesk/opsync/internal/core/domain"
	"github.com/laundrydesk/opsync/internal/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10
)

// Config captures the backend connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Client overrides the HTTP client; tests inject httptest clients here.
	Client *http.Client
}

// Client is a JSON client for the backend. It knows nothing about sessions.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient builds a Client. BaseURL is required.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("gateway: base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{baseURL: base, client: hc, log: log}, nil
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps authorization answers onto the domain sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	}
	return nil
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Do sends one request. token is attached as a bearer credential when not
// empty, body is JSON-encoded when not nil, and a 2xx response body is decoded
// into out when out is not nil.
func (c *Client) Do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.GatewayRequestsTotal.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("%s %s: %w: %w", method, path, domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	metrics.GatewayRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("backend call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// decodeError prefers the backend's own message, then its error field, then
// a generic text for the status.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		switch {
		case strings.TrimSpace(payload.Message) != "":
			apiErr.Message = strings.TrimSpace(payload.Message)
		case strings.TrimSpace(payload.Error) != "":
			apiErr.Message = strings.TrimSpace(payload.Error)
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = genericMessage(resp.StatusCode)
	}
	return apiErr
}

func genericMessage(code int) string {
	switch {
	case code == http.StatusUnauthorized:
		return "authentication required"
	case code == http.StatusForbidden:
		return "not allowed"
	case code == http.StatusNotFound:
		return "not found"
	case code >= 500:
		return "the server encountered an error, please try again"
	}
	return "request failed"
}
