package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/pkg/keys"
	"github.com/rushteam/recommendable/rater"
	"github.com/rushteam/recommendable/store"
)

// interleavingStore 在下一次 Update 开始前执行一次 before，模拟另一个写入者恰好在
// 读取之后、提交之前完成提交。
type interleavingStore struct {
	*store.MemoryStore
	before func()
}

func (s *interleavingStore) Update(ctx context.Context, fn func(tx core.Tx) error, watch ...string) error {
	if before := s.before; before != nil {
		s.before = nil
		before()
	}
	return s.MemoryStore.Update(ctx, fn, watch...)
}

// conflictStore 让前 conflicts 次 Update 返回事务冲突。
type conflictStore struct {
	*store.MemoryStore
	conflicts int
	calls     int
}

func (s *conflictStore) Update(ctx context.Context, fn func(tx core.Tx) error, watch ...string) error {
	s.calls++
	if s.calls <= s.conflicts {
		return core.ErrTxConflict
	}
	return s.MemoryStore.Update(ctx, fn, watch...)
}

func newInterleaved(t *testing.T) (*fixture, *interleavingStore, *Engine, *rater.Rater) {
	t.Helper()
	f, _ := newFixture(t, movies)
	s := &interleavingStore{MemoryStore: f.store}
	e, err := New(s, movies)
	require.NoError(t, err)
	r, err := rater.New(f.store, movies)
	require.NoError(t, err)
	return f, s, e, r
}

func TestUpdatePopularity_ConcurrentLike(t *testing.T) {
	ctx := context.Background()
	f, s, e, _ := newInterleaved(t)
	f.like("a", "movies", "m1")

	s.before = func() { f.like("b", "movies", "m1") }

	score, err := e.UpdatePopularity(ctx, "movies", "m1")
	require.NoError(t, err)
	want := WilsonLowerBound(2, 0)
	assert.InDelta(t, want, score, 1e-12)

	stored, err := f.store.ZScore(ctx, f.keys.Scores("movies"), "m1")
	require.NoError(t, err)
	assert.InDelta(t, want, stored, 1e-12, "score must match the latest liked_by count")
}

func TestRecomputeRecommendations_ConcurrentChanges(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		during func(f *fixture, r *rater.Rater)
		want   []core.ScoredMember
	}{
		{
			name: "item purged",
			during: func(f *fixture, r *rater.Rater) {
				require.NoError(t, r.PurgeItem(ctx, "movies", "m3"))
			},
			want: []core.ScoredMember{{Member: "m4", Score: -0.5}},
		},
		{
			name: "item hidden by user",
			during: func(f *fixture, _ *rater.Rater) {
				f.rate(keys.Hidden, "alice", "movies", "m3")
			},
			want: []core.ScoredMember{{Member: "m4", Score: -0.5}},
		},
		{
			name: "user purged",
			during: func(f *fixture, r *rater.Rater) {
				require.NoError(t, r.PurgeUser(ctx, "alice"))
			},
			want: []core.ScoredMember{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, s, e, r := newInterleaved(t)
			seedRecommendations(f)
			_, err := e.RecomputeNeighbors(ctx, "alice")
			require.NoError(t, err)

			s.before = func() { tt.during(f, r) }
			n, err := e.RecomputeRecommendations(ctx, "alice", "movies")
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)

			recs, err := e.Recommended(ctx, "alice", "movies", 0)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, recs)

			to, err := f.store.SMembers(ctx, f.keys.RecommendedTo("movies", "m3"))
			require.NoError(t, err)
			assert.Empty(t, to)
		})
	}
}

func TestRecomputeNeighbors_ConcurrentPurge(t *testing.T) {
	ctx := context.Background()

	t.Run("neighbor purged", func(t *testing.T) {
		f, s, e, r := newInterleaved(t)
		seedRecommendations(f)

		s.before = func() { require.NoError(t, r.PurgeUser(ctx, "bob")) }
		n, err := e.RecomputeNeighbors(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		sims, err := f.store.ZRange(ctx, f.keys.Similarities("alice"), 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []core.ScoredMember{{Member: "carol", Score: -0.5}}, sims)

		of, err := f.store.SMembers(ctx, f.keys.NeighborOf("bob"))
		require.NoError(t, err)
		assert.Empty(t, of)
	})

	t.Run("user purged", func(t *testing.T) {
		f, s, e, r := newInterleaved(t)
		seedRecommendations(f)

		s.before = func() { require.NoError(t, r.PurgeUser(ctx, "alice")) }
		n, err := e.RecomputeNeighbors(ctx, "alice")
		require.NoError(t, err)
		assert.Zero(t, n)

		card, err := f.store.ZCard(ctx, f.keys.Similarities("alice"))
		require.NoError(t, err)
		assert.Zero(t, card)
		for _, other := range []string{"bob", "carol"} {
			of, err := f.store.SMembers(ctx, f.keys.NeighborOf(other))
			require.NoError(t, err)
			assert.Empty(t, of, other)
		}
	})
}

func TestEngineConflictRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries until commit", func(t *testing.T) {
		f, _ := newFixture(t, movies)
		seedRecommendations(f)
		s := &conflictStore{MemoryStore: f.store, conflicts: 2}
		e, err := New(s, movies)
		require.NoError(t, err)

		require.NoError(t, e.Refresh(ctx, "alice"))
		recs, err := e.Recommended(ctx, "alice", "movies", 0)
		require.NoError(t, err)
		assert.NotEmpty(t, recs)

		score, err := e.UpdatePopularity(ctx, "movies", "m1")
		require.NoError(t, err)
		assert.Greater(t, score, 0.0)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		f, _ := newFixture(t, movies)
		seedRecommendations(f)
		s := &conflictStore{MemoryStore: f.store, conflicts: 100}
		e, err := New(s, movies, WithMaxRetries(3))
		require.NoError(t, err)

		_, err = e.RecomputeNeighbors(ctx, "alice")
		assert.True(t, core.IsTxConflict(err))
		assert.Equal(t, 3, s.calls)

		_, err = e.UpdatePopularity(ctx, "movies", "m1")
		assert.True(t, core.IsTxConflict(err))
		assert.Equal(t, 6, s.calls)
	})
}
