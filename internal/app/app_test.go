package app

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FeedsImporter/internal/config"
	"FeedsImporter/internal/domain"
	"FeedsImporter/internal/infrastructure/memory"
	"FeedsImporter/internal/logging"
)

const listing = `
<dl>
  <dt><a href="/abs/1">arXiv:1</a></dt>
  <dd>
    <div class="list-title">Title: First</div>
    <div class="list-authors"><a>Ada</a></div>
    <p class="mathjax">Abstract: one <b>bold</b> claim</p>
  </dd>
  <dt><a href="/abs/2">arXiv:2</a></dt>
  <dd>
    <div class="list-title">Title: Second</div>
    <p class="mathjax">Abstract: two</p>
  </dd>
</dl>`

func newTestApp(t *testing.T, store *memory.Store) *Application {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Processor.PageSize = 1

	var logs bytes.Buffer
	a, err := New(context.Background(), cfg, Options{
		Logger: logging.NewWithWriter(&logs, "error", "text"),
		Store:  store,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestImportThenClear(t *testing.T) {
	t.Setenv("FEEDS_IMPORTER_CONFIG", "")

	store := memory.NewStore()
	a := newTestApp(t, store)
	ctx := context.Background()

	state, result, err := a.ImportReader(ctx, "cs.AI", strings.NewReader(listing))
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Equal(t, 2, state.Created)
	assert.Equal(t, []string{"Created 2 articles."}, result.Messages)
	assert.Equal(t, 2, store.Len())

	record, err := store.LoadEntity(ctx, "article", 1)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "First", record.Field("title"))
	assert.Equal(t, "one bold claim", record.Field("summary"))
	assert.Equal(t, []any{"Ada"}, record.Field("authors"))
	assert.Equal(t, "https://arxiv.org/abs/1", record.Linkage.URL)
	assert.Equal(t, "arXiv:1", record.Linkage.GUID)

	state, result, err = a.ImportReader(ctx, "cs.AI", strings.NewReader(listing))
	require.NoError(t, err)
	assert.Equal(t, 0, state.Created)
	assert.Equal(t, 2, state.Unchanged)
	assert.Equal(t, []string{"There are no new articles."}, result.Messages)

	state, result, err = a.Clear(ctx, "cs.AI")
	require.NoError(t, err)
	assert.Equal(t, 2, state.Deleted)
	assert.Equal(t, []string{"Deleted 2 articles."}, result.Messages)
	assert.Equal(t, 0, store.Len())
}

func TestTargetsIncludeConfiguredFields(t *testing.T) {
	t.Setenv("FEEDS_IMPORTER_CONFIG", "")

	a := newTestApp(t, memory.NewStore())
	built, err := a.Targets()
	require.NoError(t, err)
	assert.Equal(t, []string{"authors", "guid", "published", "summary", "title", "url"}, built.IDs())
	assert.True(t, built["guid"].UniqueEligible)
	assert.True(t, built["title"].Required)
}

func TestBuildListingRejectsUnknownPreset(t *testing.T) {
	t.Parallel()

	_, err := buildListing(config.SourceConfig{Preset: "rss"})
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestBuildListingCustom(t *testing.T) {
	t.Parallel()

	l, err := buildListing(config.SourceConfig{Listing: &config.ListingConfig{
		Item:   "li",
		Fields: map[string]config.ListingField{"name": {Selector: "span"}},
	}})
	require.NoError(t, err)

	items, err := l.Parse(strings.NewReader(`<ul><li><span>x</span></li></ul>`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "x", items[0]["name"])
}
