package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookshelf/internal/notion"
)

type fakeClient struct {
	batches  [][]notion.Page
	children map[string][]notion.Block
	calls    map[string]int
	queryErr error
}

func (f *fakeClient) QueryAll(_ context.Context, _ string, _ any, fn func([]notion.Page) error) error {
	if f.queryErr != nil {
		return f.queryErr
	}
	for _, batch := range f.batches {
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeClient) AllBlockChildren(_ context.Context, blockID string) ([]notion.Block, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[blockID]++
	blocks, ok := f.children[blockID]
	if !ok {
		return nil, fmt.Errorf("unknown block %s", blockID)
	}
	out := make([]notion.Block, 0, len(blocks))
	for _, b := range blocks {
		cp := notion.Block{}
		for k, v := range b {
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out, nil
}

func block(id string, hasChildren bool) notion.Block {
	return notion.Block{"id": id, "type": "paragraph", "has_children": hasChildren}
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 4, 23, 30, 0, 0, time.FixedZone("EET", 2*3600))
}

func TestExportPagesOnly(t *testing.T) {
	client := &fakeClient{batches: [][]notion.Page{
		{{ID: "p1", Properties: map[string]any{"Title": "A"}}},
		{{ID: "p2", Properties: map[string]any{"Title": "B"}}, {ID: "p3"}},
	}}
	exp := &Exporter{Client: client, DatabaseID: "db", Now: fixedNow}

	snap, err := exp.Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2026-03-04", snap.Date)
	assert.Equal(t, 3, snap.Count)
	assert.False(t, snap.WithContent)
	assert.Empty(t, client.calls, "content must not be fetched")

	data, err := Encode(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pages": [`)
	assert.NotContains(t, string(data), `"entries"`)
}

func TestExportRecursiveContent(t *testing.T) {
	client := &fakeClient{
		batches: [][]notion.Page{{{ID: "p1"}, {ID: "p2"}}},
		children: map[string][]notion.Block{
			"p1":  {block("b1", true), block("b2", false)},
			"b1":  {block("b1a", true)},
			"b1a": {block("b1a1", false)},
			"p2":  {},
		},
	}
	exp := &Exporter{Client: client, DatabaseID: "db", IncludeContent: true, Now: fixedNow}

	snap, err := exp.Export(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Entries, 2)

	content := snap.Entries[0].Content
	require.Len(t, content, 2)
	level1, ok := content[0]["children"].([]notion.Block)
	require.True(t, ok)
	require.Len(t, level1, 1)
	level2, ok := level1[0]["children"].([]notion.Block)
	require.True(t, ok)
	require.Len(t, level2, 1)
	assert.Equal(t, "b1a1", level2[0].ID())
	_, hasKids := content[1]["children"]
	assert.False(t, hasKids)
	assert.Equal(t, 0, client.calls["b2"])

	data, err := Encode(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"entries": [`)
	assert.Contains(t, string(data), `"content": []`)
}

func TestExportPropagatesErrors(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		exp := &Exporter{Client: &fakeClient{queryErr: fmt.Errorf("boom")}, DatabaseID: "db"}
		_, err := exp.Export(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("content", func(t *testing.T) {
		client := &fakeClient{
			batches:  [][]notion.Page{{{ID: "p1"}}},
			children: map[string][]notion.Block{"p1": {block("missing", true)}},
		}
		exp := &Exporter{Client: client, DatabaseID: "db", IncludeContent: true}
		_, err := exp.Export(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "p1")
	})
}

func TestEncodeDoesNotEscapeHTML(t *testing.T) {
	snap := &Snapshot{Date: "2026-01-01", Count: 1, Entries: []Entry{{ID: "p", Properties: map[string]any{"Title": "Tom & Jerry <3>"}}}}
	data, err := Encode(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Tom & Jerry <3>")
	assert.Contains(t, string(data), "\n  \"count\": 1")
}

func TestWriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	snap := &Snapshot{
		Date:        "2026-03-04",
		Count:       1,
		WithContent: true,
		Entries:     []Entry{{ID: "p1", Properties: map[string]any{"Title": "A"}, Content: []notion.Block{block("b", false)}}},
	}

	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			path, err := Write(dir, snap, WriteOptions{Compress: compress})
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, FileName("2026-03-04", compress)), path)

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, snap.Date, loaded.Date)
			assert.Equal(t, 1, loaded.Count)
			assert.True(t, loaded.WithContent)
			require.Len(t, loaded.Entries, 1)
			assert.Equal(t, "b", loaded.Entries[0].Content[0].ID())
		})
	}

	raw, err := os.ReadFile(filepath.Join(dir, "2026-03-04.json.zst"))
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(string(raw), "{"), "compressed file must not be plain JSON")
}

func TestWriteOverwritesSameDay(t *testing.T) {
	dir := t.TempDir()
	first := &Snapshot{Date: "2026-03-04", Count: 1, Entries: []Entry{{ID: "old"}}}
	second := &Snapshot{Date: "2026-03-04", Count: 2, Entries: []Entry{{ID: "a"}, {ID: "b"}}}

	_, err := Write(dir, first, WriteOptions{})
	require.NoError(t, err)
	path, err := Write(dir, second, WriteOptions{})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Count)
	assert.Equal(t, "a", loaded.Entries[0].ID)
}

func TestWriteRequiresDate(t *testing.T) {
	_, err := Write(t.TempDir(), &Snapshot{}, WriteOptions{})
	assert.Error(t, err)
}

func TestParseSchedule(t *testing.T) {
	_, err := ParseSchedule("0 3 * * *")
	assert.NoError(t, err)
	_, err = ParseSchedule("@daily")
	assert.NoError(t, err)
	_, err = ParseSchedule("not a schedule")
	assert.Error(t, err)
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler("@hourly", func(context.Context) error { return nil })

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return !s.NextRun().IsZero() }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler("bogus", func(context.Context) error { return nil })
	assert.Error(t, s.Run(context.Background()))
}
