package publish

import (
	"strings"

	"github.com/lepinkainen/bookshelf/internal/notion"
)

const (
	// SummaryMarker identifies the template heading that receives the summary.
	SummaryMarker = "📘 Summary"
	// NoSummary is inserted when the book has no description.
	NoSummary = "No summary available."
	// MaxSummaryRunes is the Notion limit for a single rich text item.
	MaxSummaryRunes = 2000
	ellipsis        = "..."
)

// readOnlyBlockFields are returned by the API but rejected on create.
var readOnlyBlockFields = []string{
	"id",
	"created_time",
	"last_edited_time",
	"created_by",
	"last_edited_by",
	"parent",
	"has_children",
	"archived",
	"in_trash",
}

// TruncateSummary caps s at MaxSummaryRunes, replacing the tail with "...".
func TruncateSummary(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxSummaryRunes {
		return s
	}
	return string(runes[:MaxSummaryRunes-len(ellipsis)]) + ellipsis
}

// BuildChildren clones template and puts a summary paragraph after the first
// summary heading, dropping the placeholder block that followed it.
// The template itself is never modified.
func BuildChildren(template []notion.Block, summary string) []notion.Block {
	text := TruncateSummary(summary)
	if strings.TrimSpace(text) == "" {
		text = NoSummary
	}

	children := make([]notion.Block, 0, len(template)+1)
	injected := false
	for i := 0; i < len(template); i++ {
		block := template[i]
		children = append(children, cloneBlock(block))

		if injected || block.Type() != "heading_2" || !strings.Contains(block.PlainText(), SummaryMarker) {
			continue
		}
		children = append(children, paragraph(text))
		injected = true
		i++ // skip the placeholder
	}
	return children
}

func paragraph(text string) notion.Block {
	return notion.Block{
		"object": "block",
		"type":   "paragraph",
		"paragraph": map[string]any{
			"rich_text": []any{
				map[string]any{
					"type": "text",
					"text": map[string]any{"content": text},
				},
			},
		},
	}
}

// cloneBlock deep copies a template block without its read-only fields.
func cloneBlock(b notion.Block) notion.Block {
	out := notion.Block(deepCopy(map[string]any(b)).(map[string]any))
	for _, field := range readOnlyBlockFields {
		delete(out, field)
	}
	return out
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = deepCopy(item)
		}
		return m
	case notion.Block:
		return deepCopy(map[string]any(val))
	case []any:
		s := make([]any, len(val))
		for i, item := range val {
			s[i] = deepCopy(item)
		}
		return s
	default:
		return val
	}
}
