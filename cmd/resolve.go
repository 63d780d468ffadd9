package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/bookshelf/internal/cache"
	"github.com/lepinkainen/bookshelf/internal/config"
	"github.com/lepinkainen/bookshelf/internal/enrichment/book"
	"github.com/lepinkainen/bookshelf/internal/enrichment/book/enrichers"
	"github.com/lepinkainen/bookshelf/internal/fileutil"
	"github.com/lepinkainen/bookshelf/internal/isbn"
	"github.com/lepinkainen/bookshelf/internal/ratelimit"
	"github.com/lepinkainen/bookshelf/internal/staging"
)

// ResolveCmd represents the resolve command
type ResolveCmd struct {
	Workers int `short:"w" help:"Number of ISBNs resolved concurrently" default:"1"`
}

type resolveSummary struct {
	mu      sync.Mutex
	staged  int
	skipped int
	failed  int
}

func (s *resolveSummary) add(staged, skipped, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged += staged
	s.skipped += skipped
	s.failed += failed
}

func newResolver(cfg *config.Config, cacheDB *cache.CacheDB) *book.Resolver {
	return &book.Resolver{
		Primary: enrichers.NewGoogleBooksEnricher(
			enrichers.WithGoogleBooksBaseURL(cfg.GoogleBooks.BaseURL),
			enrichers.WithGoogleBooksAPIKey(cfg.GoogleBooks.APIKey),
			enrichers.WithGoogleBooksRateLimiter(ratelimit.GoogleBooks()),
			enrichers.WithGoogleBooksCache(cacheDB),
		),
		Secondary: enrichers.NewOpenLibraryEnricher(
			enrichers.WithOpenLibraryBaseURL(cfg.OpenLibrary.BaseURL),
			enrichers.WithOpenLibraryRateLimiter(ratelimit.OpenLibrary()),
			enrichers.WithOpenLibraryCache(cacheDB),
		),
	}
}

func (r *ResolveCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	list, err := isbn.LoadInputList(cfg.Paths.InputFile)
	if err != nil {
		return err
	}
	valid, rejected := list.Sanitized()
	for _, raw := range rejected {
		slog.Warn("Skipping invalid ISBN", "raw", raw)
	}

	store, err := staging.Open(cfg.Paths.BooksDir, cfg.Paths.StagingDB)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cacheDB, err := cache.Open(cfg.Cache.DBFile, cfg.Cache.TTL)
	if err != nil {
		return err
	}
	defer func() { _ = cacheDB.Close() }()
	if _, err := cacheDB.ClearAllExpired(); err != nil {
		slog.Warn("Failed to prune expired cache entries", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resolver := newResolver(cfg, cacheDB)
	summary := &resolveSummary{}

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	slog.Info("Resolving ISBNs", "count", len(valid), "rejected", len(rejected), "workers", workers)
	for _, id := range valid {
		g.Go(func() error {
			resolveOne(gctx, cfg, store, resolver, id, summary)
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Resolve finished",
		"staged", summary.staged,
		"skipped", summary.skipped,
		"failed", summary.failed+len(rejected),
	)
	return ctx.Err()
}

// resolveOne stages a single ISBN. Failures are logged and counted, never returned.
func resolveOne(ctx context.Context, cfg *config.Config, store *staging.Store, resolver *book.Resolver, id string, summary *resolveSummary) {
	if ctx.Err() != nil {
		return
	}

	unlock := store.Lock(id)
	defer unlock()

	status, exists, err := store.Exists(id)
	if err != nil {
		slog.Error("Failed to check staging state", "isbn", id, "error", err)
		summary.add(0, 0, 1)
		return
	}
	if exists {
		slog.Debug("Already staged, skipping", "isbn", id, "status", status)
		retryCover(ctx, cfg, store, id)
		summary.add(0, 1, 0)
		return
	}

	meta, err := resolver.Resolve(ctx, id)
	if err != nil {
		slog.Error("Failed to resolve ISBN", "isbn", id, "error", err)
		summary.add(0, 0, 1)
		return
	}

	written, err := store.WriteNewLocked(meta)
	if err != nil {
		slog.Error("Failed to stage book", "isbn", id, "error", err)
		summary.add(0, 0, 1)
		return
	}
	if !written {
		summary.add(0, 1, 0)
		return
	}
	slog.Info("Staged book", "isbn", id, "title", meta.Title)

	fetchCover(ctx, cfg, meta)
	summary.add(1, 0, 0)
}

// retryCover fetches the cover of an already staged book when an earlier run
// did not store it.
func retryCover(ctx context.Context, cfg *config.Config, store *staging.Store, id string) {
	if fileutil.FileExists(fileutil.CoverPath(cfg.CoversDir(), id)) {
		return
	}
	meta, _, err := store.Read(id)
	if err != nil {
		slog.Warn("Failed to read staged book", "isbn", id, "error", err)
		return
	}
	if meta.CoverURL == "" {
		return
	}
	fetchCover(ctx, cfg, meta)
}

func fetchCover(ctx context.Context, cfg *config.Config, meta *book.Metadata) {
	result := fileutil.DownloadCover(ctx, fileutil.CoverDownloadOptions{
		URL:       meta.CoverURL,
		OutputDir: cfg.CoversDir(),
		ISBN:      meta.ISBN,
		MaxWidth:  cfg.Covers.MaxWidth,
	})
	if result.Status == fileutil.CoverFailed {
		slog.Warn("Failed to download cover", "isbn", meta.ISBN, "error", result.Err)
	}
}
