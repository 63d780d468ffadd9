// Package publish creates Notion pages for staged books.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lepinkainen/bookshelf/internal/enrichment/book"
	"github.com/lepinkainen/bookshelf/internal/errors"
	"github.com/lepinkainen/bookshelf/internal/fileutil"
	"github.com/lepinkainen/bookshelf/internal/notion"
)

// BookIcon is the page icon of every published book.
const BookIcon = "📘"

// Outcome is the result of publishing one ISBN.
type Outcome int

const (
	// OutcomeCreated means a new page was created.
	OutcomeCreated Outcome = iota + 1
	// OutcomeAlreadyExists means the database already had the ISBN.
	OutcomeAlreadyExists
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyExists:
		return "already exists"
	default:
		return "unknown"
	}
}

// Client is the part of the Notion API the publisher uses.
type Client interface {
	QueryDatabase(ctx context.Context, databaseID string, req notion.QueryRequest) (*notion.QueryResponse, error)
	CreatePage(ctx context.Context, req notion.CreatePageRequest) (*notion.Page, error)
	AllBlockChildren(ctx context.Context, blockID string) ([]notion.Block, error)
}

// Store is the part of the staging store the publisher uses.
type Store interface {
	ListNew() ([]string, error)
	ReadNew(isbn string) (*book.Metadata, error)
	Promote(isbn string) error
}

// Config identifies the target database and where covers live.
type Config struct {
	DatabaseID string
	TemplateID string
	// CoversDir holds <isbn>.jpg files downloaded during resolve.
	CoversDir string
	// PublicCoverBaseURL is where CoversDir is reachable publicly; empty disables local covers.
	PublicCoverBaseURL string
}

// Publisher publishes staged books into a Notion database.
type Publisher struct {
	cfg    Config
	client Client
	store  Store

	mu       sync.RWMutex
	template []notion.Block
	loaded   bool
}

// New creates a Publisher. LoadTemplate must succeed before Publish.
func New(cfg Config, client Client, store Store) *Publisher {
	return &Publisher{cfg: cfg, client: client, store: store}
}

// LoadTemplate fetches the template page's blocks. Calling it again refreshes them.
func (p *Publisher) LoadTemplate(ctx context.Context) error {
	if p.cfg.TemplateID == "" {
		return errors.Config("notion.template_id", fmt.Errorf("is required"))
	}

	blocks, err := p.client.AllBlockChildren(ctx, p.cfg.TemplateID)
	if err != nil {
		return fmt.Errorf("load template %s: %w", p.cfg.TemplateID, err)
	}

	p.mu.Lock()
	p.template = blocks
	p.loaded = true
	p.mu.Unlock()

	slog.Debug("Loaded page template", "template_id", p.cfg.TemplateID, "blocks", len(blocks))
	return nil
}

func (p *Publisher) templateBlocks() ([]notion.Block, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.template, p.loaded
}

// Exists reports whether the database already has a page with this ISBN.
func (p *Publisher) Exists(ctx context.Context, isbn string) (bool, error) {
	resp, err := p.client.QueryDatabase(ctx, p.cfg.DatabaseID, notion.QueryRequest{
		Filter:   notion.RichTextEquals("ISBN", isbn),
		PageSize: 1,
	})
	if err != nil {
		return false, fmt.Errorf("check existing page: %w", err)
	}
	return len(resp.Results) > 0, nil
}

// Publish creates the page for a staged ISBN unless the database already has
// it, then promotes the staged record. A failed create leaves the record in
// the new bucket so the next run retries it.
func (p *Publisher) Publish(ctx context.Context, isbn string) (Outcome, error) {
	template, loaded := p.templateBlocks()
	if !loaded {
		return 0, errors.State("publish", isbn, fmt.Errorf("template not loaded"))
	}

	exists, err := p.Exists(ctx, isbn)
	if err != nil {
		return 0, err
	}

	outcome := OutcomeAlreadyExists
	if exists {
		slog.Info("Already in Notion", "isbn", isbn)
	} else {
		meta, err := p.store.ReadNew(isbn)
		if err != nil {
			return 0, err
		}
		if err := p.create(ctx, meta, template); err != nil {
			return 0, err
		}
		outcome = OutcomeCreated
		slog.Info("Added to Notion", "isbn", isbn, "title", meta.Title)
	}

	if err := p.store.Promote(isbn); err != nil {
		return outcome, fmt.Errorf("promote after publish: %w", err)
	}
	return outcome, nil
}

func (p *Publisher) create(ctx context.Context, meta *book.Metadata, template []notion.Block) error {
	coverURL := p.coverURL(meta)

	req := notion.CreatePageRequest{
		Parent:     notion.Parent{DatabaseID: p.cfg.DatabaseID},
		Properties: BuildProperties(meta, coverURL),
		Icon:       notion.EmojiIcon(BookIcon),
		Children:   BuildChildren(template, meta.Summary),
	}
	if coverURL != "" {
		req.Cover = notion.ExternalCover(coverURL)
	}

	if _, err := p.client.CreatePage(ctx, req); err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	return nil
}

// coverURL prefers the catalog cover and falls back to the public URL of a
// locally downloaded one.
func (p *Publisher) coverURL(meta *book.Metadata) string {
	if u := strings.TrimSpace(meta.CoverURL); u != "" {
		return u
	}
	if p.cfg.CoversDir == "" || p.cfg.PublicCoverBaseURL == "" {
		return ""
	}
	if !fileutil.FileExists(fileutil.CoverPath(p.cfg.CoversDir, meta.ISBN)) {
		return ""
	}
	return strings.TrimRight(p.cfg.PublicCoverBaseURL, "/") + "/" + meta.ISBN + ".jpg"
}

// Failure is one ISBN that could not be published.
type Failure struct {
	ISBN string
	Err  error
}

// Report summarises a RunAll pass.
type Report struct {
	Created  []string
	Existing []string
	Failed   []Failure
}

// Total is the number of ISBNs attempted.
func (r Report) Total() int {
	return len(r.Created) + len(r.Existing) + len(r.Failed)
}

// RunAll publishes every ISBN in the new bucket, one at a time. Per-ISBN
// failures are logged and collected; only listing the bucket or a cancelled
// context stops the run.
func (p *Publisher) RunAll(ctx context.Context) (Report, error) {
	var report Report

	isbns, err := p.store.ListNew()
	if err != nil {
		return report, fmt.Errorf("list staged books: %w", err)
	}
	slog.Info("Publishing new books", "count", len(isbns))

	for _, isbn := range isbns {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome, err := p.Publish(ctx, isbn)
		switch {
		case err != nil:
			slog.Error("Failed to publish book", "isbn", isbn, "error", err)
			report.Failed = append(report.Failed, Failure{ISBN: isbn, Err: err})
		case outcome == OutcomeCreated:
			report.Created = append(report.Created, isbn)
		default:
			report.Existing = append(report.Existing, isbn)
		}
	}

	slog.Info("Publish finished",
		"created", len(report.Created),
		"existing", len(report.Existing),
		"failed", len(report.Failed),
	)
	return report, nil
}
