// Package book defines the staged book record and resolves ISBNs against
// a primary and a fallback catalog.
package book

import (
	"context"
)

// Catalog fetches book metadata from one external source.
// Each implementation handles its own rate limiting, caching and mapping to Metadata.
type Catalog interface {
	// Name returns the human-readable name of the source (e.g., "OpenLibrary").
	Name() string

	// Lookup retrieves the book with the given sanitized ISBN.
	// A missing book is reported with an errors.KindNotFound error, network
	// trouble and unexpected statuses with KindTransport, undecodable bodies
	// with KindParse.
	Lookup(ctx context.Context, isbn string) (*Metadata, error)
}
