package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FeedsImporter/internal/domain"
)

func TestStateKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "clear:news:feed-1", StateKey("clear", "news", "feed-1"))
}

func TestRunnerImportDiscardsStateOnCompletion(t *testing.T) {
	t.Parallel()

	s := newStore()
	cfg := testConfig()
	cfg.PageSize = 1
	p := NewProcessor(cfg, testDeps(s))
	r := NewRunner(p, s, nil)

	state, result, err := r.Import(context.Background(), "feed-1", newSource(
		domain.Item{"guid": "a", "title": "A"},
		domain.Item{"guid": "b", "title": "B"},
		domain.Item{"guid": "c", "title": "C"},
	))
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Equal(t, 3, state.Created)

	_, ok, err := s.LoadState(context.Background(), StateKey("import", "news", "feed-1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunnerClearResumesSavedState(t *testing.T) {
	t.Parallel()

	s := newStore()
	cfg := testConfig()
	cfg.PageSize = 2
	p := NewProcessor(cfg, testDeps(s))
	seed(t, p, "feed-1", 5)

	ctx := context.Background()
	key := StateKey("clear", "news", "feed-1")

	// an earlier process ran one step and stopped
	first := &domain.RunState{}
	_, err := p.Clear(ctx, "feed-1", first)
	require.NoError(t, err)
	require.NoError(t, s.SaveState(ctx, key, first))

	r := NewRunner(p, s, nil)
	state, result, err := r.Clear(ctx, "feed-1")
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Equal(t, first.CycleID, state.CycleID)
	assert.Equal(t, 5, state.Deleted)
	assert.Equal(t, 5, state.TotalToDelete)
	assert.Equal(t, []string{"Deleted 5 nodes."}, result.Messages)

	_, ok, err := s.LoadState(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunnerStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	s := newStore()
	p := NewProcessor(testConfig(), testDeps(s))
	r := NewRunner(p, s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := r.Import(ctx, "feed-1", newSource(domain.Item{"guid": "a", "title": "A"}))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Len())
}

func TestRunnerWithoutStateStore(t *testing.T) {
	t.Parallel()

	s := newStore()
	p := NewProcessor(testConfig(), testDeps(s))
	seed(t, p, "feed-1", 2)

	state, result, err := NewRunner(p, nil, nil).Clear(context.Background(), "feed-1")
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Equal(t, 2, state.Deleted)
}
