// Package supabase is a thin client for the hosted backend's REST and
// realtime interfaces. It exposes table-scoped CRUD over the PostgREST API
// and row-level change subscriptions over the realtime WebSocket. All durable
// state lives behind this client; nothing in this repository opens a direct
// database connection, so the provider's row-level security always applies.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Row is a single table row as returned by the REST API.
type Row = map[string]interface{}

// APIError is the structured error returned by the hosted backend. Callers
// decide whether to log, surface, or wrap it.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: %d: %s", e.StatusCode, e.Message)
}

// Filter restricts a query to rows where Column satisfies Op against Value.
// Op is a PostgREST operator: eq, neq, gt, gte, lt, lte, like, ilike, in, is.
type Filter struct {
	Column string
	Op     string
	Value  string
}

// Order configures result ordering for Select.
type Order struct {
	Column     string
	Descending bool
}

// Query describes a bulk read against one table.
type Query struct {
	Table   string
	Columns string // comma-separated projection, "" means "*"
	Filters []Filter
	Order   *Order
	Limit   int
}

// Client talks to the hosted backend's REST API with a fixed base URL and key.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a Client for the given project URL and API key.
func NewClient(baseURL, key string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logger.With().Str("component", "supabase").Logger(),
	}
}

// BaseURL returns the configured project URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Key returns the configured API key.
func (c *Client) Key() string { return c.key }

// SetHTTPClient overrides the underlying HTTP client, mainly for tests.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

func (c *Client) restURL(table string, filters []Filter, order *Order, limit int, columns string) string {
	q := url.Values{}
	if columns != "" {
		q.Set("select", columns)
	}
	for _, f := range filters {
		q.Add(f.Column, f.Op+"."+f.Value)
	}
	if order != nil {
		dir := "asc"
		if order.Descending {
			dir = "desc"
		}
		q.Set("order", order.Column+"."+dir)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u := c.baseURL + "/rest/v1/" + table
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func (c *Client) do(ctx context.Context, method, rawURL string, body interface{}, prefer string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase %s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.log.Debug().
		Str("method", method).
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("rest call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}
	return data, nil
}

// Select runs a bulk read and returns the matching rows.
func (c *Client) Select(ctx context.Context, q Query) ([]Row, error) {
	data, err := c.do(ctx, http.MethodGet, c.restURL(q.Table, q.Filters, q.Order, q.Limit, q.Columns), nil, "")
	if err != nil {
		return nil, err
	}
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

// Insert creates one row and returns the stored representation.
func (c *Client) Insert(ctx context.Context, table string, row interface{}) (Row, error) {
	data, err := c.do(ctx, http.MethodPost, c.restURL(table, nil, nil, 0, ""), row, "return=representation")
	if err != nil {
		return nil, err
	}
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode insert response: %w", err)
	}
	if len(rows) == 0 {
		return nil, &APIError{StatusCode: http.StatusInternalServerError, Message: "insert returned no rows"}
	}
	return rows[0], nil
}

// Update patches all rows matching the filters and returns them.
func (c *Client) Update(ctx context.Context, table string, filters []Filter, patch interface{}) ([]Row, error) {
	if len(filters) == 0 {
		return nil, fmt.Errorf("update on %s requires at least one filter", table)
	}
	data, err := c.do(ctx, http.MethodPatch, c.restURL(table, filters, nil, 0, ""), patch, "return=representation")
	if err != nil {
		return nil, err
	}
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode update response: %w", err)
	}
	return rows, nil
}

// Delete removes all rows matching the filters.
func (c *Client) Delete(ctx context.Context, table string, filters []Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("delete on %s requires at least one filter", table)
	}
	_, err := c.do(ctx, http.MethodDelete, c.restURL(table, filters, nil, 0, ""), nil, "")
	return err
}

// DecodeRows re-marshals loosely-typed rows into a typed slice or struct.
func DecodeRows(rows interface{}, out interface{}) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
