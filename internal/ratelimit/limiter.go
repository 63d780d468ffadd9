// Package ratelimit throttles outbound requests to the book catalogs and Notion.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Requests per second allowed for each remote API.
const (
	GoogleBooksRPS = 1
	OpenLibraryRPS = 1
	// Notion documents an average of three requests per second per integration.
	NotionRPS = 3
)

// Limiter wraps rate.Limiter with a name for logging/debugging.
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// New creates a new rate limiter with the given requests per second.
// The burst size equals the rate, allowing short bursts up to the rate limit.
func New(name string, requestsPerSecond int) *Limiter {
	return NewWithBurst(name, requestsPerSecond, requestsPerSecond)
}

// NewWithBurst creates a new rate limiter with custom burst size.
func NewWithBurst(name string, requestsPerSecond, burst int) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		name:    name,
	}
}

// Unlimited returns a limiter that never blocks. Tests use it against fake servers.
func Unlimited(name string) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Inf, 1),
		name:    name,
	}
}

// GoogleBooks returns the limiter for the Google Books volumes API.
func GoogleBooks() *Limiter { return New("googlebooks", GoogleBooksRPS) }

// OpenLibrary returns the limiter shared by OpenLibrary edition and author requests.
func OpenLibrary() *Limiter { return New("openlibrary", OpenLibraryRPS) }

// Notion returns the limiter for the Notion REST API.
func Notion() *Limiter { return New("notion", NotionRPS) }

// Wait blocks until the rate limiter allows a request to proceed.
// Returns an error if the context is cancelled. A nil limiter never blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", l.name, err)
	}
	return nil
}

// Allow reports whether a request can proceed without blocking.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

// Name returns the name of this rate limiter.
func (l *Limiter) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}
