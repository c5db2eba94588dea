// Package management reads project analytics from the provider's
// management API using a personal access token.
package management

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const usageEndpoint = "analytics/endpoints/usage.api-requests-count"

// Client wraps HTTP access to the management API. Requests from all
// projects share one limiter.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// Option mutates client configuration.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRate limits outgoing requests to perSecond, allowing short bursts.
// A non-positive rate disables limiting.
func WithRate(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewClient constructs a management API client rooted at base.
func NewClient(base string, opts ...Option) (*Client, error) {
	base = strings.TrimSuffix(strings.TrimSpace(base), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid management api url %q", base)
	}

	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 2),
		userAgent:  "supamon",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// StatusError is a non-2xx management API response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("management api returned %d: %s", e.StatusCode, e.Message)
}

type usageItem struct {
	Count int64 `json:"count"`
}

// APIRequestCount returns the sum of request counts reported for projectRef.
func (c *Client) APIRequestCount(ctx context.Context, projectRef, token string) (int64, error) {
	if strings.TrimSpace(projectRef) == "" {
		return 0, fmt.Errorf("project ref is required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	target := *c.baseURL
	target.Path = path.Join(c.baseURL.Path, "v1/projects", url.PathEscape(projectRef), usageEndpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("request cancelled or timed out: %w", ctx.Err())
		}
		return 0, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body, resp.Status)}
	}

	items, err := decodeUsage(body)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, it := range items {
		total += it.Count
	}
	return total, nil
}

// decodeUsage accepts a bare array or an object carrying it under "result"
// or "data".
func decodeUsage(body []byte) ([]usageItem, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var items []usageItem
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decode usage: %w", err)
		}
		return items, nil
	}

	var wrapped struct {
		Result []usageItem `json:"result"`
		Data   []usageItem `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode usage: %w", err)
	}
	if wrapped.Result != nil {
		return wrapped.Result, nil
	}
	return wrapped.Data, nil
}

func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return fallback
}
