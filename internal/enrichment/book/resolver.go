package book

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/bookshelf/internal/errors"
)

// Resolver looks an ISBN up in Primary and falls back to Secondary only
// when Primary has no record of it.
type Resolver struct {
	Primary   Catalog
	Secondary Catalog
}

// Resolve returns the metadata for isbn. Primary transport and parse failures
// are returned without consulting Secondary.
func (r *Resolver) Resolve(ctx context.Context, isbn string) (*Metadata, error) {
	meta, err := r.Primary.Lookup(ctx, isbn)
	if err == nil {
		slog.Debug("Resolved book", "isbn", isbn, "source", r.Primary.Name(), "title", meta.Title)
		return meta, nil
	}
	if !errors.IsNotFound(err) || r.Secondary == nil {
		return nil, err
	}

	slog.Info("Not found in primary catalog, trying fallback",
		"isbn", isbn,
		"primary", r.Primary.Name(),
		"fallback", r.Secondary.Name(),
	)

	meta, err = r.Secondary.Lookup(ctx, isbn)
	if err == nil {
		slog.Debug("Resolved book", "isbn", isbn, "source", r.Secondary.Name(), "title", meta.Title)
		return meta, nil
	}
	if errors.IsNotFound(err) {
		return nil, errors.NotFound("resolve", isbn, fmt.Errorf("not found in either catalog"))
	}
	return nil, err
}
