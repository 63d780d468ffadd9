package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/lepinkainen/bookshelf/internal/config"
	"github.com/lepinkainen/bookshelf/internal/notion"
	"github.com/lepinkainen/bookshelf/internal/publish"
	"github.com/lepinkainen/bookshelf/internal/ratelimit"
	"github.com/lepinkainen/bookshelf/internal/staging"
)

// PublishCmd represents the publish command
type PublishCmd struct{}

func newNotionClient(cfg *config.Config) *notion.Client {
	return notion.NewClient(cfg.Notion.Token,
		notion.WithBaseURL(cfg.Notion.BaseURL),
		notion.WithRateLimiter(ratelimit.Notion()),
	)
}

func (p *PublishCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireNotion(true); err != nil {
		return err
	}

	store, err := staging.Open(cfg.Paths.BooksDir, cfg.Paths.StagingDB)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	publisher := publish.New(publish.Config{
		DatabaseID:         cfg.Notion.DatabaseID,
		TemplateID:         cfg.Notion.TemplateID,
		CoversDir:          cfg.CoversDir(),
		PublicCoverBaseURL: cfg.PublicCoverBaseURL(),
	}, newNotionClient(cfg), store)

	if err := publisher.LoadTemplate(ctx); err != nil {
		return err
	}

	report, err := publisher.RunAll(ctx)
	if err != nil {
		return err
	}
	for _, f := range report.Failed {
		slog.Debug("Left in new_books", "isbn", f.ISBN, "error", f.Err)
	}
	return nil
}
