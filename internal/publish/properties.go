package publish

import (
	"strings"

	"github.com/lepinkainen/bookshelf/internal/enrichment/book"
)

// CreatedVia marks pages made by this tool in the "Created via" select.
const CreatedVia = "Automation"

func text(content string) []any {
	return []any{map[string]any{"text": map[string]any{"content": content}}}
}

// BuildProperties maps staged metadata onto the database properties.
// The cover properties are only set when coverURL is non-empty.
func BuildProperties(meta *book.Metadata, coverURL string) map[string]any {
	var pages any
	if meta.Pages != nil {
		pages = *meta.Pages
	}

	authors := make([]any, 0, len(meta.Authors))
	for _, a := range meta.Authors {
		// Notion rejects empty option names.
		if a = strings.TrimSpace(a); a == "" {
			continue
		}
		authors = append(authors, map[string]any{"name": a})
	}

	props := map[string]any{
		"Title":       map[string]any{"title": text(meta.Title)},
		"Status":      map[string]any{"status": map[string]any{"name": meta.Status}},
		"Pages":       map[string]any{"number": pages},
		"Progress":    map[string]any{"number": meta.Progress},
		"Author":      map[string]any{"multi_select": authors},
		"Format":      map[string]any{"select": map[string]any{"name": meta.Format}},
		"ISBN":        map[string]any{"rich_text": text(meta.ISBN)},
		"Created via": map[string]any{"select": map[string]any{"name": CreatedVia}},
	}

	if coverURL != "" {
		props["url_cover"] = map[string]any{"url": coverURL}
		props["book_cover"] = map[string]any{
			"files": []any{
				map[string]any{
					"type":     "external",
					"name":     meta.ISBN + ".jpg",
					"external": map[string]any{"url": coverURL},
				},
			},
		}
	}
	return props
}
