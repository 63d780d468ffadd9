// Package notion provides a client for the Notion REST API.
package notion

import (
	"net/http"
	"strings"
	"time"

	"github.com/lepinkainen/bookshelf/internal/ratelimit"
)

const (
	defaultBaseURL     = "https://api.notion.com/v1"
	defaultMaxAttempts = 3
	// APIVersion is sent as the Notion-Version header.
	APIVersion = "2022-06-28"
	// MaxPageSize is the largest page_size Notion accepts.
	MaxPageSize = 100
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is a Notion API client.
type Client struct {
	token         string
	baseURL       string
	httpClient    HTTPDoer
	rateLimiter   *ratelimit.Limiter
	retryAttempts int
	backoff       func(attempt int) time.Duration
}

// NewClient creates a new Notion API client authenticated with an
// integration token.
func NewClient(token string, opts ...Option) *Client {
	client := &Client{
		token:         token,
		baseURL:       defaultBaseURL,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		rateLimiter:   ratelimit.Notion(),
		retryAttempts: defaultMaxAttempts,
		backoff:       backoffDelay,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithBaseURL sets a custom base URL for the Notion API.
func WithBaseURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithRetryAttempts sets the number of attempts for read requests.
func WithRetryAttempts(attempts int) Option {
	return func(client *Client) {
		if attempts > 0 {
			client.retryAttempts = attempts
		}
	}
}

// WithRateLimiter sets a custom rate limiter for the client.
func WithRateLimiter(limiter *ratelimit.Limiter) Option {
	return func(client *Client) {
		if limiter != nil {
			client.rateLimiter = limiter
		}
	}
}

// WithBackoff replaces the delay between read retries.
func WithBackoff(backoff func(attempt int) time.Duration) Option {
	return func(client *Client) {
		if backoff != nil {
			client.backoff = backoff
		}
	}
}
