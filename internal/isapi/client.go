package isapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/icholy/digest"

	"hikfetch/internal/services"
)

const (
	timePath     = "/ISAPI/System/time"
	searchPath   = "/ISAPI/ContentMgmt/search"
	downloadPath = "/ISAPI/ContentMgmt/download"

	defaultTimeout = 15 * time.Second
)

// AuthScheme identifies how a device expects credentials.
type AuthScheme int

const (
	AuthUnauthorized AuthScheme = iota
	AuthBasic
	AuthDigest
)

func (s AuthScheme) String() string {
	switch s {
	case AuthBasic:
		return "basic"
	case AuthDigest:
		return "digest"
	default:
		return "unauthorized"
	}
}

// Config describes how to reach a device.
type Config struct {
	BaseURL  string
	Username string
	Password string
	// Timeout bounds every request. Downloads use it as the idle limit
	// between chunks instead of a total deadline.
	Timeout time.Duration
	// Transport overrides the underlying round tripper, mainly for tests.
	Transport http.RoundTripper
}

// Client negotiates authentication against one device.
type Client struct {
	baseURL   string
	username  string
	password  string
	timeout   time.Duration
	transport http.RoundTripper
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "isapi", "new client", "device url is required", nil)
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "isapi", "new client", fmt.Sprintf("invalid device url %q", base), err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		baseURL:   base,
		username:  cfg.Username,
		password:  cfg.Password,
		timeout:   timeout,
		transport: transport,
	}, nil
}

// BaseURL returns the normalized device address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DetectAuthScheme probes the device clock endpoint with Basic credentials
// and then with Digest credentials. The first scheme answered with a 2xx
// status wins. Transport failures on the Basic probe are returned as errors;
// a Digest probe that cannot complete counts as a refusal.
func (c *Client) DetectAuthScheme(ctx context.Context) (AuthScheme, error) {
	ok, err := c.probe(ctx, AuthBasic)
	if err != nil {
		return AuthUnauthorized, services.Wrap(services.ErrTransient, "isapi", "probe basic auth", "", err)
	}
	if ok {
		return AuthBasic, nil
	}
	if ok, err := c.probe(ctx, AuthDigest); err == nil && ok {
		return AuthDigest, nil
	} else if err != nil && ctx.Err() != nil {
		return AuthUnauthorized, ctx.Err()
	}
	return AuthUnauthorized, nil
}

// Session binds the client to an authentication scheme.
func (c *Client) Session(scheme AuthScheme) (*Session, error) {
	if scheme != AuthBasic && scheme != AuthDigest {
		return nil, services.Wrap(services.ErrUnauthorized, "isapi", "session", "no usable authentication scheme", nil)
	}
	return &Session{
		baseURL: c.baseURL,
		scheme:  scheme,
		timeout: c.timeout,
		http:    &http.Client{Transport: c.authTransport(scheme)},
	}, nil
}

// Connect detects the authentication scheme and opens a session. An
// unauthorized device yields an error marked services.ErrUnauthorized.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	client, err := New(cfg)
	if err != nil {
		return nil, err
	}
	scheme, err := client.DetectAuthScheme(ctx)
	if err != nil {
		return nil, err
	}
	if scheme == AuthUnauthorized {
		return nil, ErrUnauthorized
	}
	return client.Session(scheme)
}

// ErrUnauthorized is returned when the device refuses both schemes.
var ErrUnauthorized = services.Wrap(services.ErrUnauthorized, "", "", "check device login and password", nil)

func (c *Client) probe(ctx context.Context, scheme AuthScheme) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+timePath, nil)
	if err != nil {
		return false, fmt.Errorf("build probe request: %w", err)
	}
	resp, err := (&http.Client{Transport: c.authTransport(scheme)}).Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return isSuccess(resp.StatusCode), nil
}

func (c *Client) authTransport(scheme AuthScheme) http.RoundTripper {
	if scheme == AuthDigest {
		return &digest.Transport{
			Username:  c.username,
			Password:  c.password,
			Transport: c.transport,
		}
	}
	return &basicTransport{username: c.username, password: c.password, next: c.transport}
}

type basicTransport struct {
	username string
	password string
	next     http.RoundTripper
}

func (t *basicTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.username, t.password)
	return t.next.RoundTrip(clone)
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errStalled) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
