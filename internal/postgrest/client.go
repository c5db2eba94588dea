// Package postgrest is a small client for a project's REST data endpoint.
// It covers exactly what the monitor needs: exact row counts, filtered
// selects and RPC calls.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

const (
	restPrefix   = "/rest/v1"
	maxBodyBytes = 4 << 20
)

// Client issues authenticated requests against one project.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
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

// WithTimeout sets the HTTP timeout on the underlying client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		clone := *c.httpClient
		clone.Timeout = timeout
		c.httpClient = &clone
	}
}

// WithUserAgent configures a custom user agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient builds a client for the project at projectURL using apiKey as
// both the apikey header and the bearer token.
func NewClient(projectURL, apiKey string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSuffix(strings.TrimSpace(projectURL), "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid project url")
	}
	parsed.Path = restPrefix
	parsed.RawQuery = ""
	parsed.Fragment = ""

	c := &Client{
		baseURL:    parsed,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userAgent:  "supamon",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Filter is a horizontal filter rendered as column=op.value.
type Filter struct {
	Column string
	Op     string
	Value  string
}

// Eq, Gte and Lte are shorthands for the common operators.
func Eq(column, value string) Filter  { return Filter{Column: column, Op: "eq", Value: value} }
func Gte(column, value string) Filter { return Filter{Column: column, Op: "gte", Value: value} }
func Lte(column, value string) Filter { return Filter{Column: column, Op: "lte", Value: value} }

// Query describes a select request.
type Query struct {
	Columns string
	Filters []Filter
	Order   string
	Limit   int
}

func (q Query) values() url.Values {
	v := url.Values{}
	cols := q.Columns
	if cols == "" {
		cols = "*"
	}
	v.Set("select", cols)
	for _, f := range q.Filters {
		v.Add(f.Column, f.Op+"."+f.Value)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// splitTable turns "schema.table" into its parts; unqualified tables use the
// default schema.
func splitTable(table string) (schema, name string) {
	if i := strings.Index(table, "."); i > 0 {
		return table[:i], table[i+1:]
	}
	return "", table
}

// Count returns the exact number of rows in table matching filters.
func (c *Client) Count(ctx context.Context, table string, filters ...Filter) (int64, error) {
	header, err := c.head(ctx, table, filters)
	if err != nil {
		return 0, err
	}
	return parseContentRange(header.Get("Content-Range"))
}

// Probe runs a zero-row GET against table and reports whether the endpoint
// accepted it. Unlike Count it reads the error body, so a rejection carries
// the upstream code and message.
func (c *Client) Probe(ctx context.Context, table string) error {
	schema, name := splitTable(table)
	q := Query{}.values()
	q.Set("limit", "0")

	req, err := c.newRequest(ctx, http.MethodGet, name, q, nil)
	if err != nil {
		return err
	}
	if schema != "" {
		req.Header.Set("Accept-Profile", schema)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

func (c *Client) head(ctx context.Context, table string, filters []Filter) (http.Header, error) {
	schema, name := splitTable(table)
	q := Query{Filters: filters}

	req, err := c.newRequest(ctx, http.MethodHead, name, q.values(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "count=exact")
	if schema != "" {
		req.Header.Set("Accept-Profile", schema)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	drain(resp)
	return resp.Header, nil
}

// Select fetches rows from table and decodes the JSON array into into.
func (c *Client) Select(ctx context.Context, table string, q Query, into interface{}) error {
	schema, name := splitTable(table)

	req, err := c.newRequest(ctx, http.MethodGet, name, q.values(), nil)
	if err != nil {
		return err
	}
	if schema != "" {
		req.Header.Set("Accept-Profile", schema)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer drain(resp)

	return decode(resp, into)
}

// RPC calls a database function with JSON arguments and decodes its result.
func (c *Client) RPC(ctx context.Context, fn string, args interface{}, into interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}
	req, err := c.newRequest(ctx, http.MethodPost, path.Join("rpc", fn), nil, args)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer drain(resp)

	if into == nil {
		return nil
	}
	return decode(resp, into)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, payload interface{}) (*http.Request, error) {
	target := *c.baseURL
	target.Path = path.Join(c.baseURL.Path, strings.TrimLeft(endpoint, "/"))
	if query != nil {
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled or timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("perform request: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, parseAPIError(resp)
	}
	return resp, nil
}

func decode(resp *http.Response, into interface{}) error {
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(into); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) {
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
	}
}

// parseContentRange reads the total from "0-9/42" or "*/42".
func parseContentRange(header string) (int64, error) {
	i := strings.LastIndex(header, "/")
	if i < 0 {
		return 0, fmt.Errorf("missing count in content-range %q", header)
	}
	total := strings.TrimSpace(header[i+1:])
	if total == "*" {
		return 0, fmt.Errorf("server did not report an exact count")
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse content-range %q: %w", header, err)
	}
	return n, nil
}
