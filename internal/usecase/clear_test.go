package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FeedsImporter/internal/domain"
)

func seed(t *testing.T, p *Processor, origin string, n int) {
	t.Helper()

	items := make([]domain.Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, domain.Item{"guid": fmt.Sprintf("%s-%d", origin, i), "title": fmt.Sprintf("Item %d", i)})
	}
	state, _ := runImport(t, p, origin, items...)
	require.Equal(t, n, state.Created)
}

func TestClearDeletesInPages(t *testing.T) {
	t.Parallel()

	s := newStore()
	cfg := testConfig()
	cfg.PageSize = 2
	metrics := &metricsSpy{}
	deps := testDeps(s)
	deps.Metrics = metrics
	p := NewProcessor(cfg, deps)
	seed(t, p, "feed-1", 5)
	seed(t, p, "feed-2", 1)

	state := &domain.RunState{}
	ctx := context.Background()
	var (
		progress []float64
		deleted  []int
		result   StepResult
		err      error
	)
	for !result.Done {
		result, err = p.Clear(ctx, "feed-1", state)
		require.NoError(t, err)
		progress = append(progress, result.Progress)
		deleted = append(deleted, state.Deleted)
	}

	assert.Equal(t, []int{2, 4, 5}, deleted)
	assert.Len(t, progress, 3)
	assert.InDelta(t, 0.4, progress[0], 1e-9)
	assert.InDelta(t, 0.8, progress[1], 1e-9)
	assert.Equal(t, 1.0, progress[2])
	assert.Equal(t, 5, state.TotalToDelete)
	assert.Equal(t, []string{"Deleted 5 nodes."}, result.Messages)
	assert.Equal(t, 5, metrics.deleted)

	// the other origin is untouched
	assert.Equal(t, 1, s.Len())
	total, err := s.Count(ctx, domain.Scope{ProcessorID: "news", OriginID: "feed-2", EntityType: "node"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestClearUnboundedPage(t *testing.T) {
	t.Parallel()

	s := newStore()
	p := NewProcessor(testConfig(), testDeps(s))
	seed(t, p, "feed-1", 4)

	state := &domain.RunState{}
	result, err := p.Clear(context.Background(), "feed-1", state)
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Equal(t, 4, state.Deleted)
	assert.Equal(t, 0, s.Len())
}

func TestClearWithNothingToDelete(t *testing.T) {
	t.Parallel()

	p := NewProcessor(testConfig(), testDeps(newStore()))

	state := &domain.RunState{}
	result, err := p.Clear(context.Background(), "feed-1", state)
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Equal(t, 1.0, result.Progress)
	assert.Equal(t, []string{"There are no nodes to be deleted."}, result.Messages)
}

func TestClearAbsorbsRowsAddedMidSweep(t *testing.T) {
	t.Parallel()

	s := newStore()
	cfg := testConfig()
	cfg.PageSize = 2
	p := NewProcessor(cfg, testDeps(s))
	seed(t, p, "feed-1", 3)

	state := &domain.RunState{}
	ctx := context.Background()
	result, err := p.Clear(ctx, "feed-1", state)
	require.NoError(t, err)
	require.False(t, result.Done)
	require.Equal(t, 3, state.TotalToDelete)

	runImport(t, p, "feed-1",
		domain.Item{"guid": "late-1", "title": "Late 1"},
		domain.Item{"guid": "late-2", "title": "Late 2"},
	)

	result, err = p.Clear(ctx, "feed-1", state)
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Equal(t, 4, state.Deleted)
	assert.Equal(t, 4, state.TotalToDelete)
	assert.Equal(t, 1.0, state.Progress)
}

func TestClearCompletesWhenRowsVanish(t *testing.T) {
	t.Parallel()

	s := newStore()
	cfg := testConfig()
	cfg.PageSize = 2
	p := NewProcessor(cfg, testDeps(s))
	seed(t, p, "feed-1", 4)

	state := &domain.RunState{}
	ctx := context.Background()
	_, err := p.Clear(ctx, "feed-1", state)
	require.NoError(t, err)

	rows, err := s.Query(ctx, domain.Scope{ProcessorID: "news", OriginID: "feed-1", EntityType: "node"}, 0)
	require.NoError(t, err)
	ids := []int64{rows[0].EntityID, rows[1].EntityID}
	require.NoError(t, s.DeleteEntities(ctx, "node", ids))
	require.NoError(t, s.Delete(ctx, "node", ids))

	result, err := p.Clear(ctx, "feed-1", state)
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Equal(t, 2, state.Deleted)
	assert.Equal(t, []string{"Deleted 2 nodes."}, result.Messages)
}

func TestClearRejectsNegativePageSize(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.PageSize = -3
	p := NewProcessor(cfg, testDeps(newStore()))

	_, err := p.Clear(context.Background(), "feed-1", &domain.RunState{})
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
