package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hikfetch/internal/config"
	"hikfetch/internal/services"
)

const defaultClientTimeout = 10 * time.Second

// StatusError is returned when the daemon answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status onto the shared error markers.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return services.ErrNotFound
	case e.StatusCode == http.StatusBadRequest:
		return services.ErrValidation
	case e.StatusCode == http.StatusUnauthorized:
		return services.ErrUnauthorized
	case e.StatusCode >= http.StatusInternalServerError:
		return services.ErrTransient
	default:
		return nil
	}
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	return errors.Is(err, services.ErrNotFound)
}

// Client talks to the daemon HTTP API.
type Client struct {
	baseURL  string
	http     *http.Client
	token    string
	username string
	password string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithToken sends a bearer token with every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithBasicAuth sends HTTP basic credentials with every request.
func WithBasicAuth(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient builds a client for the daemon at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig builds a client using the configured bind address and
// API authentication method.
func NewClientFromConfig(cfg *config.Config) *Client {
	var opts []ClientOption
	switch cfg.API.AuthMethod {
	case config.AuthToken:
		opts = append(opts, WithToken(cfg.API.Token))
	case config.AuthBasic:
		opts = append(opts, WithBasicAuth(cfg.API.Username, cfg.API.Password))
	}
	return NewClient(cfg.APIURL(), opts...)
}

// Health checks that the daemon is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Submit queues a retrieval.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListJobs returns every job known to the daemon, oldest first.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var resp JobListResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// GetJob returns a single job.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// CancelJob requests cancellation of a job.
func (c *Client) CancelJob(ctx context.Context, id string) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var resp DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Archive lists catalogued files, optionally for one job.
func (c *Client) Archive(ctx context.Context, jobID string, limit int) ([]ArchiveEntry, error) {
	query := url.Values{}
	if jobID = strings.TrimSpace(jobID); jobID != "" {
		query.Set("job", jobID)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/archive"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp ArchiveListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
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

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload ErrorResponse
	message := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		message = payload.Error
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: message}
}
