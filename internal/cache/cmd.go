package cache

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// InvalidateCacheCmd represents the cache invalidate subcommand
type InvalidateCacheCmd struct {
	Source string `arg:"" help:"Cache source to invalidate: googlebooks, openlibrary, openlibrary_author" required:""`
}

// Run clears the table behind Source. The cache is bound by the root command.
func (i *InvalidateCacheCmd) Run(c *CacheDB) error {
	tableName, ok := SourceTables[i.Source]
	if !ok {
		return fmt.Errorf("invalid cache source '%s'; valid sources are: %s", i.Source, strings.Join(sourceNames(), ", "))
	}

	slog.Info("Invalidating cache", "source", i.Source, "database", c.Path())

	rowsDeleted, err := c.InvalidateSource(tableName)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	slog.Info("Cache invalidated", "source", i.Source, "rows_deleted", rowsDeleted)
	return nil
}

func sourceNames() []string {
	names := make([]string, 0, len(SourceTables))
	for name := range SourceTables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
