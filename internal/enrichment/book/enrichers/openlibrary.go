package enrichers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lepinkainen/bookshelf/internal/cache"
	"github.com/lepinkainen/bookshelf/internal/enrichment/book"
	"github.com/lepinkainen/bookshelf/internal/errors"
	"github.com/lepinkainen/bookshelf/internal/ratelimit"
)

const (
	openLibraryBaseURL      = "https://openlibrary.org"
	openLibraryCoverPattern = "https://covers.openlibrary.org/b/isbn/%s-L.jpg"
)

// OpenLibraryEnricher implements book.Catalog for OpenLibrary editions.
type OpenLibraryEnricher struct {
	baseURL     string
	httpClient  HTTPDoer
	rateLimiter *ratelimit.Limiter
	cache       *cache.CacheDB
}

// Compile-time check that OpenLibraryEnricher implements book.Catalog.
var _ book.Catalog = (*OpenLibraryEnricher)(nil)

// OpenLibraryOption configures an OpenLibraryEnricher.
type OpenLibraryOption func(*OpenLibraryEnricher)

// WithOpenLibraryBaseURL overrides the API root.
func WithOpenLibraryBaseURL(base string) OpenLibraryOption {
	return func(e *OpenLibraryEnricher) {
		if base != "" {
			e.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithOpenLibraryHTTPClient sets a custom HTTP client.
func WithOpenLibraryHTTPClient(c HTTPDoer) OpenLibraryOption {
	return func(e *OpenLibraryEnricher) {
		if c != nil {
			e.httpClient = c
		}
	}
}

// WithOpenLibraryRateLimiter sets a custom rate limiter. Edition and author
// requests share it.
func WithOpenLibraryRateLimiter(l *ratelimit.Limiter) OpenLibraryOption {
	return func(e *OpenLibraryEnricher) {
		if l != nil {
			e.rateLimiter = l
		}
	}
}

// WithOpenLibraryCache caches edition lookups and author names.
func WithOpenLibraryCache(c *cache.CacheDB) OpenLibraryOption {
	return func(e *OpenLibraryEnricher) { e.cache = c }
}

// NewOpenLibraryEnricher creates a new OpenLibrary enricher.
func NewOpenLibraryEnricher(opts ...OpenLibraryOption) *OpenLibraryEnricher {
	e := &OpenLibraryEnricher{
		baseURL:     openLibraryBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		rateLimiter: ratelimit.OpenLibrary(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the human-readable name of this enricher.
func (e *OpenLibraryEnricher) Name() string {
	return "OpenLibrary"
}

// Lookup fetches the edition for isbn and dereferences its authors.
func (e *OpenLibraryEnricher) Lookup(ctx context.Context, isbn string) (*book.Metadata, error) {
	cached, fromCache, err := cache.GetOrFetchWithTTL(e.cache, cache.OpenLibraryTable, isbn,
		func() (*cachedLookup, error) {
			return e.fetchFromAPI(ctx, isbn)
		},
		openLibraryTTL)
	if err != nil {
		return nil, err
	}

	if cached.NotFound || cached.Data == nil {
		return nil, errors.NotFound("openlibrary lookup", isbn, fmt.Errorf("no edition with this ISBN"))
	}

	slog.Debug("OpenLibrary lookup", "isbn", isbn, "cached", fromCache)
	return cached.Data, nil
}

// openLibraryTTL keeps results with missing authors out of the cache so the
// next run retries them.
func openLibraryTTL(r *cachedLookup) time.Duration {
	switch {
	case r.Partial:
		return cache.SkipCache
	case r.NotFound:
		return cache.NegativeCacheTTL
	}
	return 0
}

// openLibraryEdition matches the /isbn/<isbn>.json response.
type openLibraryEdition struct {
	Title         string `json:"title"`
	NumberOfPages *int   `json:"number_of_pages"`
	Authors       []struct {
		Key string `json:"key"`
	} `json:"authors"`
	Description any `json:"description"`
}

type openLibraryAuthor struct {
	Name string `json:"name"`
}

func (e *OpenLibraryEnricher) fetchFromAPI(ctx context.Context, isbn string) (*cachedLookup, error) {
	endpoint := fmt.Sprintf("%s/isbn/%s.json", e.baseURL, isbn)

	var edition openLibraryEdition
	status, err := getJSON(ctx, e.httpClient, e.rateLimiter, "openlibrary lookup", isbn, endpoint, &edition)
	if status == http.StatusNotFound {
		return &cachedLookup{NotFound: true}, nil
	}
	if err != nil {
		return nil, err
	}

	data := book.NewMetadata(isbn)
	if edition.Title != "" {
		data.Title = edition.Title
	}
	data.Pages = edition.NumberOfPages
	data.CoverURL = fmt.Sprintf(openLibraryCoverPattern, isbn)
	data.Summary = book.CleanDescription(extractDescription(edition.Description))

	result := &cachedLookup{Data: data}
	authors := make([]string, 0, len(edition.Authors))
	for _, ref := range edition.Authors {
		name, ok := e.authorName(ctx, isbn, ref.Key)
		if !ok {
			result.Partial = true
		}
		authors = append(authors, name)
	}
	data.Authors = authors

	return result, nil
}

// authorName dereferences an author key such as "/authors/OL23919A".
// Failures yield "" and false so one bad author never fails the whole lookup.
func (e *OpenLibraryEnricher) authorName(ctx context.Context, isbn, key string) (string, bool) {
	if key == "" {
		return "", true
	}

	name, _, err := cache.GetOrFetch(e.cache, cache.OpenLibraryAuthorTable, key, func() (string, error) {
		var author openLibraryAuthor
		endpoint := fmt.Sprintf("%s%s.json", e.baseURL, key)
		if _, err := getJSON(ctx, e.httpClient, e.rateLimiter, "openlibrary author", key, endpoint, &author); err != nil {
			return "", err
		}
		return author.Name, nil
	})
	if err != nil {
		slog.Warn("Failed to fetch author", "isbn", isbn, "author", key, "error", err)
		return "", false
	}
	return name, true
}

// extractDescription handles OpenLibrary descriptions, which are either a
// plain string or an object with a "value" key.
func extractDescription(desc any) string {
	switch d := desc.(type) {
	case string:
		return d
	case map[string]any:
		if val, ok := d["value"].(string); ok {
			return val
		}
	}
	return ""
}
