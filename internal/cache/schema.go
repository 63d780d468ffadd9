package cache

// SQL schemas for cache tables.
// All cache tables share the same shape: cache_key is the primary key and
// expires_at (unix seconds) carries the TTL chosen when the row was written.

const (
	// GoogleBooksTable caches Google Books volume lookups keyed by ISBN.
	GoogleBooksTable = "googlebooks_cache"
	// OpenLibraryTable caches OpenLibrary edition lookups keyed by ISBN.
	OpenLibraryTable = "openlibrary_cache"
	// OpenLibraryAuthorTable caches OpenLibrary author names keyed by author path.
	OpenLibraryAuthorTable = "openlibrary_author_cache"
)

func tableSchema(table string) string {
	return `
CREATE TABLE IF NOT EXISTS ` + table + ` (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_` + table + `_expires_at ON ` + table + `(expires_at);
`
}

// AllCacheTables lists every cache table in creation order.
var AllCacheTables = []string{GoogleBooksTable, OpenLibraryTable, OpenLibraryAuthorTable}

// AllCacheSchemas contains all cache table schemas for easy initialization
var AllCacheSchemas = []string{
	tableSchema(GoogleBooksTable),
	tableSchema(OpenLibraryTable),
	tableSchema(OpenLibraryAuthorTable),
}

// ValidCacheTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidCacheTableNames = map[string]bool{
	GoogleBooksTable:       true,
	OpenLibraryTable:       true,
	OpenLibraryAuthorTable: true,
}

// SourceTables maps the user-facing source names accepted by
// "cache invalidate" to their tables.
var SourceTables = map[string]string{
	"googlebooks":        GoogleBooksTable,
	"openlibrary":        OpenLibraryTable,
	"openlibrary_author": OpenLibraryAuthorTable,
}
