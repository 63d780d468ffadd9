// Package enrichers implements book.Catalog for Google Books and OpenLibrary.
package enrichers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lepinkainen/bookshelf/internal/errors"
	"github.com/lepinkainen/bookshelf/internal/ratelimit"
)

const defaultTimeout = 10 * time.Second

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// getJSON performs a rate limited GET and decodes a 200 response into target.
// It returns the status code so callers can classify 404s themselves.
func getJSON(ctx context.Context, client HTTPDoer, limiter *ratelimit.Limiter, op, key, endpoint string, target any) (int, error) {
	if err := limiter.Wait(ctx); err != nil {
		return 0, errors.Transport(op, key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, errors.Transport(op, key, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, errors.Transport(op, key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, errors.TransportStatus(op, key, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return resp.StatusCode, errors.Parse(op, key, fmt.Errorf("decoding response: %w", err))
	}
	return resp.StatusCode, nil
}
