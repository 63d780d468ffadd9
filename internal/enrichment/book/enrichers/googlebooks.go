package enrichers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/lepinkainen/bookshelf/internal/cache"
	"github.com/lepinkainen/bookshelf/internal/enrichment/book"
	"github.com/lepinkainen/bookshelf/internal/errors"
	"github.com/lepinkainen/bookshelf/internal/ratelimit"
)

const googleBooksBaseURL = "https://www.googleapis.com/books/v1"

// GoogleBooksEnricher implements book.Catalog for the Google Books volumes API.
type GoogleBooksEnricher struct {
	baseURL     string
	apiKey      string
	httpClient  HTTPDoer
	rateLimiter *ratelimit.Limiter
	cache       *cache.CacheDB
}

// Compile-time check that GoogleBooksEnricher implements book.Catalog.
var _ book.Catalog = (*GoogleBooksEnricher)(nil)

// GoogleBooksOption configures a GoogleBooksEnricher.
type GoogleBooksOption func(*GoogleBooksEnricher)

// WithGoogleBooksBaseURL overrides the API root.
func WithGoogleBooksBaseURL(base string) GoogleBooksOption {
	return func(e *GoogleBooksEnricher) {
		if base != "" {
			e.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithGoogleBooksAPIKey appends key= to every request.
func WithGoogleBooksAPIKey(key string) GoogleBooksOption {
	return func(e *GoogleBooksEnricher) { e.apiKey = key }
}

// WithGoogleBooksHTTPClient sets a custom HTTP client.
func WithGoogleBooksHTTPClient(c HTTPDoer) GoogleBooksOption {
	return func(e *GoogleBooksEnricher) {
		if c != nil {
			e.httpClient = c
		}
	}
}

// WithGoogleBooksRateLimiter sets a custom rate limiter.
func WithGoogleBooksRateLimiter(l *ratelimit.Limiter) GoogleBooksOption {
	return func(e *GoogleBooksEnricher) {
		if l != nil {
			e.rateLimiter = l
		}
	}
}

// WithGoogleBooksCache caches lookups, including negative answers.
func WithGoogleBooksCache(c *cache.CacheDB) GoogleBooksOption {
	return func(e *GoogleBooksEnricher) { e.cache = c }
}

// NewGoogleBooksEnricher creates a new Google Books enricher.
func NewGoogleBooksEnricher(opts ...GoogleBooksOption) *GoogleBooksEnricher {
	e := &GoogleBooksEnricher{
		baseURL:     googleBooksBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		rateLimiter: ratelimit.GoogleBooks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the human-readable name of this enricher.
func (e *GoogleBooksEnricher) Name() string {
	return "Google Books"
}

// Lookup fetches the first volume matching isbn.
func (e *GoogleBooksEnricher) Lookup(ctx context.Context, isbn string) (*book.Metadata, error) {
	cached, fromCache, err := cache.GetOrFetchWithTTL(e.cache, cache.GoogleBooksTable, isbn,
		func() (*cachedLookup, error) {
			return e.fetchFromAPI(ctx, isbn)
		},
		cache.SelectNegativeCacheTTL(func(r *cachedLookup) bool {
			return r.NotFound
		}))
	if err != nil {
		return nil, err
	}

	if cached.NotFound || cached.Data == nil {
		return nil, errors.NotFound("google books lookup", isbn, fmt.Errorf("no volumes match"))
	}

	slog.Debug("Google Books lookup", "isbn", isbn, "cached", fromCache)
	return cached.Data, nil
}

// cachedLookup wraps Metadata with metadata for caching.
type cachedLookup struct {
	Data     *book.Metadata `json:"data"`
	NotFound bool           `json:"not_found"`
	// Partial marks a result with gaps from failed sub-requests; it is never cached.
	Partial bool `json:"-"`
}

// googleBooksResponse matches the Google Books API response structure.
type googleBooksResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title       string   `json:"title"`
			Authors     []string `json:"authors"`
			Description string   `json:"description"`
			PageCount   *int     `json:"pageCount"`
			ImageLinks  struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

func (e *GoogleBooksEnricher) fetchFromAPI(ctx context.Context, isbn string) (*cachedLookup, error) {
	q := url.Values{}
	q.Set("q", "isbn:"+isbn)
	if e.apiKey != "" {
		q.Set("key", e.apiKey)
	}
	endpoint := fmt.Sprintf("%s/volumes?%s", e.baseURL, q.Encode())

	var result googleBooksResponse
	if _, err := getJSON(ctx, e.httpClient, e.rateLimiter, "google books lookup", isbn, endpoint, &result); err != nil {
		return nil, err
	}

	if result.TotalItems == 0 || len(result.Items) == 0 {
		return &cachedLookup{NotFound: true}, nil
	}

	// Use first item (best match)
	vol := result.Items[0].VolumeInfo

	data := book.NewMetadata(isbn)
	if vol.Title != "" {
		data.Title = vol.Title
	}
	if len(vol.Authors) > 0 {
		data.Authors = vol.Authors
	} else {
		data.Authors = []string{book.UnknownAuthor}
	}
	data.Pages = vol.PageCount
	data.CoverURL = vol.ImageLinks.Thumbnail
	data.Summary = book.CleanDescription(vol.Description)

	return &cachedLookup{Data: data}, nil
}
