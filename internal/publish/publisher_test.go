package publish

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookshelf/internal/enrichment/book"
	"github.com/lepinkainen/bookshelf/internal/errors"
	"github.com/lepinkainen/bookshelf/internal/notion"
	"github.com/lepinkainen/bookshelf/internal/staging"
	"github.com/lepinkainen/bookshelf/internal/testutil"
)

type fakeClient struct {
	existing    map[string]bool
	createErr   map[string]error
	queryErr    error
	templateErr error
	template    []notion.Block
	created     []notion.CreatePageRequest
	queries     []notion.QueryRequest
}

func (f *fakeClient) QueryDatabase(_ context.Context, databaseID string, req notion.QueryRequest) (*notion.QueryResponse, error) {
	f.queries = append(f.queries, req)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	filter := req.Filter.(map[string]any)
	isbn := filter["rich_text"].(map[string]any)["equals"].(string)
	if f.existing[isbn] {
		return &notion.QueryResponse{Results: []notion.Page{{ID: "existing-" + isbn}}}, nil
	}
	return &notion.QueryResponse{}, nil
}

func (f *fakeClient) CreatePage(_ context.Context, req notion.CreatePageRequest) (*notion.Page, error) {
	isbn := isbnOf(req)
	if err := f.createErr[isbn]; err != nil {
		return nil, err
	}
	f.created = append(f.created, req)
	return &notion.Page{ID: "page-" + isbn}, nil
}

func (f *fakeClient) AllBlockChildren(_ context.Context, blockID string) ([]notion.Block, error) {
	if f.templateErr != nil {
		return nil, f.templateErr
	}
	return f.template, nil
}

func isbnOf(req notion.CreatePageRequest) string {
	rt := req.Properties["ISBN"].(map[string]any)["rich_text"].([]any)
	return rt[0].(map[string]any)["text"].(map[string]any)["content"].(string)
}

type fixture struct {
	env    *testutil.TestEnv
	store  *staging.Store
	client *fakeClient
	pub    *Publisher
}

func newFixture(t *testing.T, books ...*book.Metadata) *fixture {
	t.Helper()
	env := testutil.NewTestEnv(t)
	store, err := staging.Open(env.Path("books"), env.Path("books", "staging.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	for _, b := range books {
		_, err := store.WriteNew(b)
		require.NoError(t, err)
	}

	client := &fakeClient{
		existing:  map[string]bool{},
		createErr: map[string]error{},
		template:  sampleTemplate(),
	}
	pub := New(Config{
		DatabaseID:         "db-1",
		TemplateID:         "tpl-1",
		CoversDir:          env.Path("books", "covers"),
		PublicCoverBaseURL: "https://raw.example.com/shelf/main/books/covers",
	}, client, store)

	return &fixture{env: env, store: store, client: client, pub: pub}
}

func metaWith(isbn, title, cover, summary string) *book.Metadata {
	m := book.NewMetadata(isbn)
	m.Title = title
	m.Authors = []string{"Author"}
	m.CoverURL = cover
	m.Summary = summary
	return m
}

func TestPublish_RequiresTemplate(t *testing.T) {
	f := newFixture(t, metaWith("9780000000001", "Book", "", ""))

	_, err := f.pub.Publish(context.Background(), "9780000000001")
	require.Error(t, err)
	assert.True(t, errors.IsState(err))
	assert.Empty(t, f.client.queries)
}

func TestLoadTemplate_Errors(t *testing.T) {
	f := newFixture(t)
	f.client.templateErr = errors.TransportStatus("list block children", "tpl-1", 500)
	require.Error(t, f.pub.LoadTemplate(context.Background()))

	noTemplate := New(Config{DatabaseID: "db"}, f.client, f.store)
	err := noTemplate.LoadTemplate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestPublish_CreatesAndPromotes(t *testing.T) {
	f := newFixture(t, metaWith("9780441172719", "Dune", "https://img.test/dune.jpg", "Spice."))
	require.NoError(t, f.pub.LoadTemplate(context.Background()))

	outcome, err := f.pub.Publish(context.Background(), "9780441172719")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	require.Len(t, f.client.created, 1)
	req := f.client.created[0]
	assert.Equal(t, "db-1", req.Parent.DatabaseID)
	assert.Equal(t, &notion.Icon{Type: "emoji", Emoji: "📘"}, req.Icon)
	require.NotNil(t, req.Cover)
	assert.Equal(t, "https://img.test/dune.jpg", req.Cover.External.URL)
	assert.Equal(t, "Spice.", paragraphText(t, req.Children[3]))

	require.Len(t, f.client.queries, 1)
	assert.Equal(t, notion.RichTextEquals("ISBN", "9780441172719"), f.client.queries[0].Filter)

	status, _, err := f.store.Exists("9780441172719")
	require.NoError(t, err)
	assert.Equal(t, staging.StatusProcessed, status)
}

func TestPublish_AlreadyExistsStillPromotes(t *testing.T) {
	f := newFixture(t, metaWith("9780000000002", "Book", "", ""))
	require.NoError(t, f.pub.LoadTemplate(context.Background()))
	f.client.existing["9780000000002"] = true

	outcome, err := f.pub.Publish(context.Background(), "9780000000002")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyExists, outcome)
	assert.Empty(t, f.client.created)

	assert.True(t, f.env.FileExists("books/processed_books/9780000000002.json"))
	assert.False(t, f.env.FileExists("books/new_books/9780000000002.json"))
}

func TestPublish_CreateFailureLeavesRecordNew(t *testing.T) {
	f := newFixture(t, metaWith("9780000000003", "Book", "", ""))
	require.NoError(t, f.pub.LoadTemplate(context.Background()))
	f.client.createErr["9780000000003"] = errors.TransportStatus("create page", "db-1", 502)

	_, err := f.pub.Publish(context.Background(), "9780000000003")
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))

	pending, err := f.store.ListNew()
	require.NoError(t, err)
	assert.Equal(t, []string{"9780000000003"}, pending)
}

func TestPublish_MissingStagedRecord(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pub.LoadTemplate(context.Background()))

	_, err := f.pub.Publish(context.Background(), "9780000000004")
	require.Error(t, err)
	assert.True(t, errors.IsState(err))
	assert.Empty(t, f.client.created)
}

func TestPublish_LocalCoverFallback(t *testing.T) {
	f := newFixture(t,
		metaWith("9780000000005", "With local cover", "", ""),
		metaWith("9780000000006", "No cover", "", ""),
	)
	require.NoError(t, f.pub.LoadTemplate(context.Background()))
	f.env.WriteFileString("books/covers/9780000000005.jpg", "jpeg")

	_, err := f.pub.Publish(context.Background(), "9780000000005")
	require.NoError(t, err)
	_, err = f.pub.Publish(context.Background(), "9780000000006")
	require.NoError(t, err)

	require.Len(t, f.client.created, 2)
	withCover, withoutCover := f.client.created[0], f.client.created[1]

	want := "https://raw.example.com/shelf/main/books/covers/9780000000005.jpg"
	require.NotNil(t, withCover.Cover)
	assert.Equal(t, want, withCover.Cover.External.URL)
	assert.Equal(t, map[string]any{"url": want}, withCover.Properties["url_cover"])

	assert.Nil(t, withoutCover.Cover)
	assert.NotContains(t, withoutCover.Properties, "url_cover")
	assert.NotContains(t, withoutCover.Properties, "book_cover")
}

func TestPublish_TruncatesLongSummary(t *testing.T) {
	f := newFixture(t, metaWith("9780000000007", "Long", "", strings.Repeat("x", 2500)))
	require.NoError(t, f.pub.LoadTemplate(context.Background()))

	_, err := f.pub.Publish(context.Background(), "9780000000007")
	require.NoError(t, err)

	got := paragraphText(t, f.client.created[0].Children[3])
	assert.Len(t, got, 2000)
	assert.Equal(t, strings.Repeat("x", 1997)+"...", got)
}

func TestRunAll_IsolatesFailures(t *testing.T) {
	f := newFixture(t,
		metaWith("9780000000010", "Created", "", ""),
		metaWith("9780000000011", "Existing", "", ""),
		metaWith("9780000000012", "Broken", "", ""),
	)
	require.NoError(t, f.pub.LoadTemplate(context.Background()))
	f.client.existing["9780000000011"] = true
	f.client.createErr["9780000000012"] = fmt.Errorf("boom")

	report, err := f.pub.RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"9780000000010"}, report.Created)
	assert.Equal(t, []string{"9780000000011"}, report.Existing)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "9780000000012", report.Failed[0].ISBN)
	assert.Equal(t, 3, report.Total())

	pending, err := f.store.ListNew()
	require.NoError(t, err)
	assert.Equal(t, []string{"9780000000012"}, pending)
}

func TestRunAll_QueryFailureLeavesEverythingNew(t *testing.T) {
	f := newFixture(t, metaWith("9780000000013", "A", "", ""), metaWith("9780000000014", "B", "", ""))
	require.NoError(t, f.pub.LoadTemplate(context.Background()))
	f.client.queryErr = errors.TransportStatus("query database", "db-1", 503)

	report, err := f.pub.RunAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Failed, 2)

	pending, err := f.store.ListNew()
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "created", OutcomeCreated.String())
	assert.Equal(t, "already exists", OutcomeAlreadyExists.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}
