// Package backup exports the Notion book database to dated JSON snapshots.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/bookshelf/internal/notion"
)

// DateLayout is the snapshot date format and file name stem.
const DateLayout = "2006-01-02"

// Client is the part of the Notion API the exporter uses.
type Client interface {
	QueryAll(ctx context.Context, databaseID string, filter any, fn func([]notion.Page) error) error
	AllBlockChildren(ctx context.Context, blockID string) ([]notion.Block, error)
}

// Exporter reads every page of a database, optionally with its full block tree.
type Exporter struct {
	Client         Client
	DatabaseID     string
	IncludeContent bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Export builds a snapshot of the database. Pages keep API order; when
// IncludeContent is set every block with children carries them under
// "children", to any depth.
func (e *Exporter) Export(ctx context.Context) (*Snapshot, error) {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	snap := &Snapshot{
		Date:        now().UTC().Format(DateLayout),
		WithContent: e.IncludeContent,
	}

	err := e.Client.QueryAll(ctx, e.DatabaseID, nil, func(pages []notion.Page) error {
		for _, page := range pages {
			entry := Entry{ID: page.ID, Properties: page.Properties}
			if e.IncludeContent {
				content, err := e.blockTree(ctx, page.ID)
				if err != nil {
					return fmt.Errorf("fetch content of page %s: %w", page.ID, err)
				}
				entry.Content = content
			}
			snap.Entries = append(snap.Entries, entry)
		}
		slog.Debug("Exported database page batch", "pages", len(pages), "total", len(snap.Entries))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("export database %s: %w", e.DatabaseID, err)
	}

	snap.Count = len(snap.Entries)
	return snap, nil
}

// blockTree returns the children of blockID with their descendants attached.
func (e *Exporter) blockTree(ctx context.Context, blockID string) ([]notion.Block, error) {
	blocks, err := e.Client.AllBlockChildren(ctx, blockID)
	if err != nil {
		return nil, err
	}

	tree := make([]notion.Block, 0, len(blocks))
	for _, block := range blocks {
		if block.HasChildren() {
			children, err := e.blockTree(ctx, block.ID())
			if err != nil {
				return nil, err
			}
			block["children"] = children
		}
		tree = append(tree, block)
	}
	return tree, nil
}
