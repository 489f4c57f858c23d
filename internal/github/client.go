package github

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

const (
	// MediaType is sent as the Accept header on every request.
	MediaType = "application/vnd.github+json"

	// APIVersionHeader pins the REST API version.
	APIVersionHeader = "X-GitHub-Api-Version"
	APIVersion       = "2022-11-28"

	// UserAgent identifies ghd to the API.
	UserAgent = "ghd"

	// DefaultEnvironment is the deployment environment every request is filtered to.
	DefaultEnvironment = "prod"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 5 * time.Second
)

// Client issues authenticated GET requests against the GitHub REST API.
// Response bodies are returned undecoded.
type Client struct {
	gh          *gogithub.Client
	base        *http.Client
	environment string
	timeout     time.Duration
	logger      *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient sets the client whose transport carries the requests. The
// bearer credential is layered on top of it.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.base = h
		}
	}
}

// WithEnvironment overrides the environment query parameter.
func WithEnvironment(env string) Option {
	return func(c *Client) {
		if env != "" {
			c.environment = env
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client authenticated by tokens. The token itself stays
// inside the oauth2 transport.
func New(tokens oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		base:        http.DefaultClient,
		environment: DefaultEnvironment,
		timeout:     DefaultTimeout,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.base)
	c.gh = gogithub.NewClient(oauth2.NewClient(ctx, tokens))
	c.gh.UserAgent = UserAgent
	return c
}

// Environment returns the environment filter applied to every request.
func (c *Client) Environment() string {
	return c.environment
}

// Get fetches endpoint and returns the raw body. An error status yields a
// *StatusError; failing to reach the host or read the body yields a
// *TransportError.
func (c *Client) Get(ctx context.Context, endpoint *url.URL) ([]byte, error) {
	u := *endpoint
	q := u.Query()
	q.Set("environment", c.environment)
	u.RawQuery = q.Encode()
	target := u.String()

	req, err := c.gh.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, &InvalidURLError{URL: target, Reason: "creating request", Err: err}
	}
	req.Header.Set("Accept", MediaType)
	req.Header.Set(APIVersionHeader, APIVersion)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("GET", "url", target)
	start := time.Now()

	var body bytes.Buffer
	resp, err := c.gh.Do(ctx, req, &body)
	if err != nil {
		return nil, classify(target, resp, err)
	}
	c.logger.Debug("response", "url", target, "status", resp.StatusCode, "bytes", body.Len(), "elapsed", time.Since(start))
	return body.Bytes(), nil
}

// classify separates "the API answered with an error" from "the API could
// not be reached".
func classify(target string, resp *gogithub.Response, err error) error {
	var errResp *gogithub.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return &StatusError{URL: target, StatusCode: errResp.Response.StatusCode, Message: errResp.Message}
	}
	var rateErr *gogithub.RateLimitError
	if errors.As(err, &rateErr) && rateErr.Response != nil {
		return &StatusError{URL: target, StatusCode: rateErr.Response.StatusCode, Message: rateErr.Message}
	}
	var abuseErr *gogithub.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.Response != nil {
		return &StatusError{URL: target, StatusCode: abuseErr.Response.StatusCode, Message: abuseErr.Message}
	}
	var accepted *gogithub.AcceptedError
	if errors.As(err, &accepted) {
		return &StatusError{URL: target, StatusCode: http.StatusAccepted, Message: "request accepted but not yet processed"}
	}
	if resp != nil && resp.Response != nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return &StatusError{URL: target, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return &TransportError{URL: target, Err: err}
}
