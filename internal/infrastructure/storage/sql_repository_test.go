package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FeedsImporter/internal/domain"
)

func openTestRepo(t *testing.T) *SQLRepository {
	t.Helper()

	repo, err := Open(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	repo.now = func() time.Time { return time.Unix(1700000000, 0) }
	return repo
}

func saveLinked(t *testing.T, repo *SQLRepository, scope domain.Scope, guid string) *domain.Record {
	t.Helper()

	ctx := context.Background()
	record, err := repo.NewEntity(ctx, scope.EntityType, "article")
	require.NoError(t, err)
	record.SetField("title", "Title "+guid)
	record.Linkage = &domain.Linkage{
		ProcessorID: scope.ProcessorID,
		OriginID:    scope.OriginID,
		Fingerprint: "hash-" + guid,
		ImportedAt:  time.Unix(1700000000, 0),
		GUID:        guid,
		URL:         "https://example.com/" + guid,
	}
	require.NoError(t, repo.SaveEntity(ctx, record))
	return record
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "mysql", "")
	require.Error(t, err)
}

func TestSaveAndLoadEntity(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()
	scope := domain.Scope{ProcessorID: "news", OriginID: "1", EntityType: "node"}

	record := saveLinked(t, repo, scope, "g1")
	require.NotZero(t, record.ID)
	require.NotNil(t, record.Linkage)
	assert.Equal(t, record.ID, record.Linkage.EntityID)

	loaded, err := repo.LoadEntity(ctx, "node", record.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "article", loaded.Bundle)
	assert.Equal(t, "Title g1", loaded.Field("title"))
	require.NotNil(t, loaded.Linkage)
	assert.Equal(t, "g1", loaded.Linkage.GUID)
	assert.Equal(t, "hash-g1", loaded.Linkage.Fingerprint)
	assert.Equal(t, int64(1700000000), loaded.Linkage.ImportedAt.Unix())

	loaded.SetField("title", "Changed")
	loaded.Linkage.Fingerprint = "hash-2"
	require.NoError(t, repo.SaveEntity(ctx, loaded))
	assert.Equal(t, record.ID, loaded.ID)

	again, err := repo.LoadEntity(ctx, "node", record.ID)
	require.NoError(t, err)
	assert.Equal(t, "Changed", again.Field("title"))

	fp, err := repo.Fingerprint(ctx, "node", record.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-2", fp)

	total, err := repo.Count(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestLoadMissingEntity(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)

	record, err := repo.LoadEntity(context.Background(), "node", 42)
	require.NoError(t, err)
	assert.Nil(t, record)

	fp, err := repo.Fingerprint(context.Background(), "node", 42)
	require.NoError(t, err)
	assert.Empty(t, fp)
}

func TestLookupIsScoped(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()
	scope := domain.Scope{ProcessorID: "news", OriginID: "1", EntityType: "node"}
	record := saveLinked(t, repo, scope, "g1")

	id, found, err := repo.Lookup(ctx, scope, "guid", "g1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, record.ID, id)

	id, found, err = repo.Lookup(ctx, scope, "url", "https://example.com/g1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, record.ID, id)

	other := scope
	other.OriginID = "2"
	_, found, err = repo.Lookup(ctx, other, "guid", "g1")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = repo.Lookup(ctx, scope, "title", "x")
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestQueryOrdersAndLimits(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()
	scope := domain.Scope{ProcessorID: "news", OriginID: "1", EntityType: "node"}
	first := saveLinked(t, repo, scope, "a")
	second := saveLinked(t, repo, scope, "b")
	saveLinked(t, repo, scope, "c")
	saveLinked(t, repo, domain.Scope{ProcessorID: "other", OriginID: "1", EntityType: "node"}, "d")

	rows, err := repo.Query(ctx, scope, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].EntityID)
	assert.Equal(t, second.ID, rows[1].EntityID)

	rows, err = repo.Query(ctx, scope, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestDeleteEntitiesAndLinkage(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()
	scope := domain.Scope{ProcessorID: "news", OriginID: "1", EntityType: "node"}
	a := saveLinked(t, repo, scope, "a")
	b := saveLinked(t, repo, scope, "b")

	require.NoError(t, repo.DeleteEntities(ctx, "node", []int64{a.ID}))
	require.NoError(t, repo.Delete(ctx, "node", []int64{a.ID}))
	require.NoError(t, repo.DeleteEntities(ctx, "node", nil))

	loaded, err := repo.LoadEntity(ctx, "node", a.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	total, err := repo.Count(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	loaded, err = repo.LoadEntity(ctx, "node", b.ID)
	require.NoError(t, err)
	assert.NotNil(t, loaded)
}

func TestFindEntityByField(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()
	scope := domain.Scope{ProcessorID: "news", OriginID: "1", EntityType: "node"}
	record := saveLinked(t, repo, scope, "a")

	id, found, err := repo.FindEntity(ctx, "node", "title", "Title a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, record.ID, id)

	_, found, err = repo.FindEntity(ctx, "node", "title", "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStateRoundTrip(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	_, ok, err := repo.LoadState(ctx, "clear:news:1")
	require.NoError(t, err)
	assert.False(t, ok)

	state := &domain.RunState{CycleID: "c1", Deleted: 3, TotalToDelete: 10, Initialized: true}
	require.NoError(t, repo.SaveState(ctx, "clear:news:1", state))
	state.Deleted = 6
	require.NoError(t, repo.SaveState(ctx, "clear:news:1", state))

	loaded, ok, err := repo.LoadState(ctx, "clear:news:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 6, loaded.Deleted)
	assert.True(t, loaded.Initialized)

	require.NoError(t, repo.DeleteState(ctx, "clear:news:1"))
	_, ok, err = repo.LoadState(ctx, "clear:news:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// seedBulk inserts n entities with linkage rows directly, ids 1..n.
func seedBulk(t *testing.T, repo *SQLRepository, scope domain.Scope, n int) {
	t.Helper()

	ctx := context.Background()
	_, err := repo.db.ExecContext(ctx, `
		WITH RECURSIVE seq(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM seq WHERE n < ?)
		INSERT INTO `+entitiesTable+` (id, entity_type, bundle, fields, created_at, updated_at)
		SELECT n, ?, 'article', '{}', 0, 0 FROM seq`, n, scope.EntityType)
	require.NoError(t, err)

	_, err = repo.db.ExecContext(ctx, `
		INSERT INTO `+linkageTable+` (entity_type, entity_id, processor_id, origin_id, guid)
		SELECT entity_type, id, ?, ?, 'g' || id FROM `+entitiesTable, scope.ProcessorID, scope.OriginID)
	require.NoError(t, err)
}

func TestDeleteBeyondBindVariableLimit(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()
	scope := domain.Scope{ProcessorID: "news", OriginID: "1", EntityType: "node"}
	seedBulk(t, repo, scope, 40000)

	rows, err := repo.Query(ctx, scope, 0)
	require.NoError(t, err)
	require.Len(t, rows, 40000)

	ids := make([]int64, 0, len(rows))
	for _, link := range rows {
		ids = append(ids, link.EntityID)
	}
	require.NoError(t, repo.DeleteEntities(ctx, "node", ids))
	require.NoError(t, repo.Delete(ctx, "node", ids))

	total, err := repo.Count(ctx, scope)
	require.NoError(t, err)
	assert.Zero(t, total)

	var left int
	require.NoError(t, repo.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+entitiesTable).Scan(&left))
	assert.Zero(t, left)
}

func TestClosedDatabaseIsFatal(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	require.NoError(t, repo.Close())

	_, err := repo.Count(context.Background(), domain.Scope{ProcessorID: "news", OriginID: "1", EntityType: "node"})
	var failure *domain.StorageError
	require.ErrorAs(t, err, &failure)
	assert.True(t, failure.Fatal)
}
