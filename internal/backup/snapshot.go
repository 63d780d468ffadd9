package backup

import (
	json "github.com/goccy/go-json"

	"github.com/lepinkainen/bookshelf/internal/notion"
)

// Entry is one exported database page.
type Entry struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
	Content    []notion.Block `json:"content,omitempty"`
}

// Snapshot is a full export of the database on Date.
//
// With content it serialises as {date, count, entries: [{id, properties, content}]},
// without as {date, count, pages: [{id, properties}]}.
type Snapshot struct {
	Date        string
	Count       int
	Entries     []Entry
	WithContent bool
}

type contentSnapshot struct {
	Date    string         `json:"date"`
	Count   int            `json:"count"`
	Entries []contentEntry `json:"entries"`
}

type contentEntry struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
	Content    []notion.Block `json:"content"`
}

type pagesSnapshot struct {
	Date  string      `json:"date"`
	Count int         `json:"count"`
	Pages []pageEntry `json:"pages"`
}

type pageEntry struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
}

// wire returns the serialised form selected by WithContent.
func (s Snapshot) wire() any {
	if s.WithContent {
		out := contentSnapshot{Date: s.Date, Count: s.Count, Entries: make([]contentEntry, 0, len(s.Entries))}
		for _, e := range s.Entries {
			content := e.Content
			if content == nil {
				content = []notion.Block{}
			}
			out.Entries = append(out.Entries, contentEntry{ID: e.ID, Properties: e.Properties, Content: content})
		}
		return out
	}

	out := pagesSnapshot{Date: s.Date, Count: s.Count, Pages: make([]pageEntry, 0, len(s.Entries))}
	for _, e := range s.Entries {
		out.Pages = append(out.Pages, pageEntry{ID: e.ID, Properties: e.Properties})
	}
	return out
}

// MarshalJSON writes the variant selected by WithContent.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.wire())
}

// UnmarshalJSON accepts either variant.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date    string         `json:"date"`
		Count   int            `json:"count"`
		Entries []contentEntry `json:"entries"`
		Pages   []pageEntry    `json:"pages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Snapshot{Date: raw.Date, Count: raw.Count, WithContent: raw.Entries != nil}
	for _, e := range raw.Entries {
		s.Entries = append(s.Entries, Entry{ID: e.ID, Properties: e.Properties, Content: e.Content})
	}
	for _, p := range raw.Pages {
		s.Entries = append(s.Entries, Entry{ID: p.ID, Properties: p.Properties})
	}
	return nil
}
