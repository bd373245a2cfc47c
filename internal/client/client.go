// Package client is a typed Go client for the clinic API. Resource[T] covers
// the CRUD routes of one entity and Watch streams change events from the
// websocket endpoint.
package client

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

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/pkg/pagination"
)

// Error is a non-2xx API response, decoded from the standard error body.
type Error struct {
	Status  int                 `json:"-"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("api: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: %d %s: %v", e.Status, e.Message, e.Errors)
}

// StatusOf returns the HTTP status of an *Error, or 0.
func StatusOf(err error) int {
	if e, ok := err.(*Error); ok {
		return e.Status
	}
	return 0
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	token   string
	logger  zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithToken sends token as a bearer credential on every request, the
// websocket handshake included.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New returns a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends body as JSON and decodes a 2xx response into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode)
			}
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// Resource is the CRUD surface of one entity, e.g. /api/patients.
type Resource[T any] struct {
	c    *Client
	path string
}

func NewResource[T any](c *Client, path string) *Resource[T] {
	return &Resource[T]{c: c, path: "/" + strings.Trim(path, "/")}
}

// Page is one page of a list response.
type Page[T any] = pagination.Response[T]

// List fetches one page. filters are passed through as query parameters.
func (r *Resource[T]) List(ctx context.Context, filters url.Values, p pagination.Params) (*Page[T], error) {
	q := url.Values{}
	for k, v := range filters {
		q[k] = v
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	var page Page[T]
	if err := r.c.do(ctx, http.MethodGet, r.path, q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListAll follows pages until the server reports no more.
func (r *Resource[T]) ListAll(ctx context.Context, filters url.Values) ([]T, error) {
	p := pagination.Params{Limit: pagination.MaxLimit}
	var all []T
	for {
		page, err := r.List(ctx, filters, p)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if !page.HasMore || len(page.Data) == 0 {
			return all, nil
		}
		p.Offset = p.NextOffset()
	}
}

func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	err := r.c.do(ctx, http.MethodGet, r.path+"/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (r *Resource[T]) Create(ctx context.Context, req any) (T, error) {
	var out T
	err := r.c.do(ctx, http.MethodPost, r.path, nil, req, &out)
	return out, err
}

func (r *Resource[T]) Update(ctx context.Context, id string, patch any) (T, error) {
	var out T
	err := r.c.do(ctx, http.MethodPatch, r.path+"/"+url.PathEscape(id), nil, patch, &out)
	return out, err
}

func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.c.do(ctx, http.MethodDelete, r.path+"/"+url.PathEscape(id), nil, nil, nil)
}

// ActivityFilter narrows Activity. Zero values use the server defaults.
type ActivityFilter struct {
	Limit      int
	Role       string
	EntityType string
}

// Activity returns the most recent activity log entries, newest first.
func (c *Client) Activity(ctx context.Context, f ActivityFilter) ([]activity.Entry, error) {
	q := url.Values{}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Role != "" {
		q.Set("role", f.Role)
	}
	if f.EntityType != "" {
		q.Set("entityType", f.EntityType)
	}
	var out []activity.Entry
	if err := c.do(ctx, http.MethodGet, "/api/activity", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
