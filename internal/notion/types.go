package notion

import (
	"fmt"
	"strings"
)

// Block is a Notion block object. Blocks are kept as generic JSON so
// templates and backups preserve every field the API returns.
type Block map[string]any

// ID returns the block id.
func (b Block) ID() string {
	id, _ := b["id"].(string)
	return id
}

// Type returns the block type, e.g. "heading_2".
func (b Block) Type() string {
	t, _ := b["type"].(string)
	return t
}

// HasChildren reports whether the block has nested blocks.
func (b Block) HasChildren() bool {
	has, _ := b["has_children"].(bool)
	return has
}

// PlainText concatenates the plain_text of the block's rich text.
func (b Block) PlainText() string {
	body, ok := b[b.Type()].(map[string]any)
	if !ok {
		return ""
	}
	items, ok := body["rich_text"].([]any)
	if !ok {
		return ""
	}

	var sb strings.Builder
	for _, item := range items {
		if rt, ok := item.(map[string]any); ok {
			if text, ok := rt["plain_text"].(string); ok {
				sb.WriteString(text)
			}
		}
	}
	return sb.String()
}

// Page is a page object as returned by a database query.
type Page struct {
	Object     string         `json:"object"`
	ID         string         `json:"id"`
	URL        string         `json:"url,omitempty"`
	Properties map[string]any `json:"properties"`
}

// QueryRequest is the body of a database query.
type QueryRequest struct {
	Filter      any    `json:"filter,omitempty"`
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

// QueryResponse is one page of database query results.
type QueryResponse struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// BlockChildrenResponse is one page of block children.
type BlockChildrenResponse struct {
	Results    []Block `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor string  `json:"next_cursor"`
}

// Parent identifies where a page is created.
type Parent struct {
	DatabaseID string `json:"database_id"`
}

// Icon is a page icon.
type Icon struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji,omitempty"`
}

// EmojiIcon returns an emoji page icon.
func EmojiIcon(emoji string) *Icon {
	return &Icon{Type: "emoji", Emoji: emoji}
}

// ExternalFile points at a file hosted outside Notion.
type ExternalFile struct {
	URL string `json:"url"`
}

// Cover is a page cover.
type Cover struct {
	Type     string       `json:"type"`
	External ExternalFile `json:"external"`
}

// ExternalCover returns a page cover hosted at url.
func ExternalCover(url string) *Cover {
	return &Cover{Type: "external", External: ExternalFile{URL: url}}
}

// CreatePageRequest is the body of a page creation.
type CreatePageRequest struct {
	Parent     Parent         `json:"parent"`
	Properties map[string]any `json:"properties"`
	Icon       *Icon          `json:"icon,omitempty"`
	Cover      *Cover         `json:"cover,omitempty"`
	Children   []Block        `json:"children,omitempty"`
}

// APIError is the error object Notion returns with non-2xx responses.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notion: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("notion: %s: %s", e.Code, e.Message)
}
