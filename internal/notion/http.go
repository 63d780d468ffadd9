package notion

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lepinkainen/bookshelf/internal/errors"
)

// readJSON performs an idempotent request, retrying network failures,
// rate limiting and 5xx responses.
func (c *Client) readJSON(ctx context.Context, method, endpoint, op, key string, body, target any) error {
	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		err := c.doJSONRequest(ctx, method, endpoint, op, key, body, target)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == c.retryAttempts {
			return err
		}

		delay := c.backoff(attempt)
		var rl *errors.RateLimitError
		if stdErrors.As(err, &rl) && rl.RetryAfter > delay {
			delay = rl.RetryAfter
		}
		if err := sleep(ctx, delay); err != nil {
			return errors.Transport(op, key, err)
		}
	}
	return lastErr
}

// writeJSON performs a request exactly once.
func (c *Client) writeJSON(ctx context.Context, method, endpoint, op, key string, body, target any) error {
	return c.doJSONRequest(ctx, method, endpoint, op, key, body, target)
}

func (c *Client) doJSONRequest(ctx context.Context, method, endpoint, op, key string, body, target any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return errors.Transport(op, key, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Transport(op, key, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Transport(op, key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(op, key, resp)
	}

	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return errors.Parse(op, key, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// statusError classifies a non-2xx response. object_not_found becomes a
// NotFound error, 429 carries a RateLimitError, everything else is Transport.
func statusError(op, key string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	apiErr := &APIError{}
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
		apiErr = &APIError{Message: strings.TrimSpace(string(raw))}
	}
	apiErr.Status = resp.StatusCode

	kind := errors.KindTransport
	var inner error = apiErr
	switch {
	case apiErr.Code == "object_not_found" || resp.StatusCode == http.StatusNotFound:
		kind = errors.KindNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		inner = errors.NewRateLimitErrorWithRetry(apiErr.Error(), retryAfter(resp.Header.Get("Retry-After")))
	}

	return &errors.Error{Kind: kind, Op: op, Key: key, StatusCode: resp.StatusCode, Err: inner}
}

func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func isRetryable(err error) bool {
	if errors.IsRateLimitError(err) {
		return true
	}
	if code := errors.StatusCode(err); code >= 500 {
		return true
	}

	var urlErr *url.Error
	if stdErrors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		// Network errors (connection resets etc.)
		if strings.Contains(urlErr.Error(), "connection") {
			return true
		}
	}
	return false
}

func backoffDelay(attempt int) time.Duration {
	// exponential backoff capped at 10 seconds
	delay := time.Duration(1<<uint(attempt-1)) * time.Second
	if delay > 10*time.Second {
		return 10 * time.Second
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
