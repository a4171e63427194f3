package rater

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/engine"
	"github.com/rushteam/recommendable/metrics"
	"github.com/rushteam/recommendable/pkg/keys"
	"github.com/rushteam/recommendable/store"
)

var testConfig = core.Config{
	Namespace:  "test",
	Categories: []string{"movies", "books"},
}

type recordingQueue struct {
	mu    sync.Mutex
	users []string
}

func (q *recordingQueue) Enqueue(_ context.Context, userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.users = append(q.users, userID)
	return nil
}

func newTestRater(t *testing.T, opts ...Option) (*Rater, *store.MemoryStore, *engine.Engine) {
	t.Helper()
	s := store.NewMemoryStore()
	e, err := engine.New(s, testConfig)
	require.NoError(t, err)
	r, err := New(s, testConfig, append([]Option{WithScorer(e)}, opts...)...)
	require.NoError(t, err)
	return r, s, e
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, testConfig)
	assert.Error(t, err)

	_, err = New(store.NewMemoryStore(), core.Config{})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestLike(t *testing.T) {
	ctx := context.Background()
	r, s, _ := newTestRater(t)
	k := keys.New(testConfig.Namespace)

	ok, err := r.Like(ctx, "alice", "movies", "m1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Like(ctx, "alice", "movies", "m1")
	require.NoError(t, err)
	assert.False(t, ok, "second like is a no-op")

	likes, err := r.Likes(ctx, "alice", "movies", "m1")
	require.NoError(t, err)
	assert.True(t, likes)

	likedBy, err := s.SMembers(ctx, k.LikedBy("movies", "m1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, likedBy)

	users, err := s.SMembers(ctx, k.Users())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, users)
}

func TestLikeThenDislike(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRater(t)

	_, err := r.Like(ctx, "alice", "movies", "m1")
	require.NoError(t, err)
	ok, err := r.Dislike(ctx, "alice", "movies", "m1")
	require.NoError(t, err)
	assert.True(t, ok)

	liked, err := r.Liked(ctx, "alice", "movies")
	require.NoError(t, err)
	assert.Empty(t, liked)

	disliked, err := r.Disliked(ctx, "alice", "movies")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, disliked)

	likedBy, err := r.LikedBy(ctx, "movies", "m1")
	require.NoError(t, err)
	assert.NotContains(t, likedBy, "alice")

	dislikedBy, err := r.DislikedBy(ctx, "movies", "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, dislikedBy)
}

func TestMutualExclusion(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRater(t)

	_, err := r.Hide(ctx, "alice", "movies", "m1")
	require.NoError(t, err)
	_, err = r.Bookmark(ctx, "alice", "movies", "m1")
	require.NoError(t, err)
	_, err = r.Like(ctx, "alice", "movies", "m1")
	require.NoError(t, err)

	hides, err := r.Hides(ctx, "alice", "movies", "m1")
	require.NoError(t, err)
	assert.False(t, hides, "like clears hide")

	bookmarks, err := r.Bookmarks(ctx, "alice", "movies", "m1")
	require.NoError(t, err)
	assert.True(t, bookmarks, "bookmark is independent")
}

func TestInverseOperations(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRater(t)

	tests := []struct {
		name string
		do   func(ctx context.Context, u, c, i string) (bool, error)
		undo func(ctx context.Context, u, c, i string) (bool, error)
		is   func(ctx context.Context, u, c, i string) (bool, error)
	}{
		{"like", r.Like, r.Unlike, r.Likes},
		{"dislike", r.Dislike, r.Undislike, r.Dislikes},
		{"hide", r.Hide, r.Unhide, r.Hides},
		{"bookmark", r.Bookmark, r.Unbookmark, r.Bookmarks},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.undo(ctx, "bob", "books", "b1")
			require.NoError(t, err)
			assert.False(t, ok, "undo without prior action is a no-op")

			ok, err = tt.do(ctx, "bob", "books", "b1")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = tt.undo(ctx, "bob", "books", "b1")
			require.NoError(t, err)
			assert.True(t, ok)

			is, err := tt.is(ctx, "bob", "books", "b1")
			require.NoError(t, err)
			assert.False(t, is)
		})
	}
}

func TestNotRecommendable(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRater(t)

	_, err := r.Like(ctx, "alice", "songs", "s1")
	assert.True(t, core.IsNotRecommendable(err))
	assert.ErrorIs(t, err, core.ErrNotRecommendable)

	_, err = r.Liked(ctx, "alice", "songs")
	assert.True(t, core.IsNotRecommendable(err))
}

func TestHooks(t *testing.T) {
	ctx := context.Background()

	t.Run("before error aborts", func(t *testing.T) {
		denied := errors.New("denied")
		r, _, _ := newTestRater(t, WithHooks(core.HookFuncs{
			BeforeFunc: func(context.Context, core.Event) error { return denied },
		}))

		ok, err := r.Like(ctx, "alice", "movies", "m1")
		assert.ErrorIs(t, err, denied)
		assert.False(t, ok)

		likes, err := r.Likes(ctx, "alice", "movies", "m1")
		require.NoError(t, err)
		assert.False(t, likes)
	})

	t.Run("after error is not fatal", func(t *testing.T) {
		var events []core.Event
		r, _, _ := newTestRater(t, WithHooks(core.HookFuncs{
			AfterFunc: func(_ context.Context, ev core.Event) error {
				events = append(events, ev)
				return errors.New("ignored")
			},
		}))

		ok, err := r.Dislike(ctx, "alice", "movies", "m1")
		require.NoError(t, err)
		assert.True(t, ok)
		require.Len(t, events, 1)
		assert.Equal(t, core.Event{Action: core.ActionDislike, UserID: "alice", Category: "movies", ItemID: "m1"}, events[0])
	})

	t.Run("no-op skips hooks", func(t *testing.T) {
		calls := 0
		r, _, _ := newTestRater(t, WithHooks(core.HookFuncs{
			BeforeFunc: func(context.Context, core.Event) error { calls++; return nil },
		}))
		_, err := r.Unlike(ctx, "alice", "movies", "m1")
		require.NoError(t, err)
		assert.Equal(t, 0, calls)
	})
}

func TestPopularityUpdatedOnRating(t *testing.T) {
	ctx := context.Background()
	r, _, e := newTestRater(t)

	_, err := r.Like(ctx, "alice", "movies", "m1")
	require.NoError(t, err)
	_, err = r.Like(ctx, "bob", "movies", "m1")
	require.NoError(t, err)
	_, err = r.Dislike(ctx, "carol", "movies", "m2")
	require.NoError(t, err)

	top, err := e.Top(ctx, "movies", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "m1", top[0].Member)
	assert.InDelta(t, engine.WilsonLowerBound(2, 0), top[0].Score, 1e-9)

	_, err = r.Undislike(ctx, "carol", "movies", "m2")
	require.NoError(t, err)
	top, err = e.Top(ctx, "movies", 10)
	require.NoError(t, err)
	require.Len(t, top, 1, "item without ratings leaves the ranking")
}

func TestUnrecommendOnInteraction(t *testing.T) {
	ctx := context.Background()
	r, s, _ := newTestRater(t)
	k := keys.New(testConfig.Namespace)

	require.NoError(t, s.Update(ctx, func(tx core.Tx) error {
		tx.ZAdd(k.Recommended("movies", "alice"),
			core.ScoredMember{Member: "m1", Score: 0.5},
			core.ScoredMember{Member: "m2", Score: 0.3})
		tx.SAdd(k.RecommendedTo("movies", "m1"), "alice")
		tx.SAdd(k.RecommendedTo("movies", "m2"), "alice")
		return nil
	}))

	_, err := r.Hide(ctx, "alice", "movies", "m1")
	require.NoError(t, err)

	recs, err := s.ZRange(ctx, k.Recommended("movies", "alice"), 0, -1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "m2", recs[0].Member)

	to, err := s.SMembers(ctx, k.RecommendedTo("movies", "m1"))
	require.NoError(t, err)
	assert.Empty(t, to)
}

func TestAutoEnqueue(t *testing.T) {
	ctx := context.Background()
	q := &recordingQueue{}
	cfg := testConfig
	cfg.AutoEnqueue = true

	m := metrics.New(prometheus.NewRegistry())

	s := store.NewMemoryStore()
	r, err := New(s, cfg, WithEnqueuer(q), WithMetrics(m))
	require.NoError(t, err)

	_, err = r.Like(ctx, "alice", "movies", "m1")
	require.NoError(t, err)
	_, err = r.Bookmark(ctx, "alice", "movies", "m2")
	require.NoError(t, err)
	_, err = r.Unlike(ctx, "alice", "movies", "m1")
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "alice"}, q.users, "bookmark does not enqueue")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EnqueuedTotal))
}

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, string) error { return errors.New("queue down") }

func TestAutoEnqueue_FailureIsNotCounted(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig
	cfg.AutoEnqueue = true
	m := metrics.New(prometheus.NewRegistry())

	r, err := New(store.NewMemoryStore(), cfg, WithEnqueuer(failingQueue{}), WithMetrics(m))
	require.NoError(t, err)

	ok, err := r.Like(ctx, "alice", "movies", "m1")
	require.NoError(t, err, "enqueue failures are only logged")
	assert.True(t, ok)
	assert.Zero(t, testutil.ToFloat64(m.EnqueuedTotal))
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRater(t)

	for _, item := range []string{"m1", "m2", "m3"} {
		_, err := r.Like(ctx, "alice", "movies", item)
		require.NoError(t, err)
	}
	for _, item := range []string{"m2", "m3", "m4"} {
		_, err := r.Like(ctx, "bob", "movies", item)
		require.NoError(t, err)
	}
	_, err := r.Bookmark(ctx, "alice", "books", "b1")
	require.NoError(t, err)
	_, err = r.Bookmark(ctx, "bob", "books", "b1")
	require.NoError(t, err)

	common, err := r.LikedInCommonWith(ctx, "alice", "bob", "movies")
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m3"}, common)

	bookmarked, err := r.BookmarkedInCommonWith(ctx, "alice", "bob", "books")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, bookmarked)

	n, err := r.LikedCount(ctx, "alice", "movies")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = r.LikedByCount(ctx, "movies", "m2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rated, err := r.Rated(ctx, "alice", "movies", "m4")
	require.NoError(t, err)
	assert.False(t, rated)

	rated, err = r.ItemRated(ctx, "movies", "m4")
	require.NoError(t, err)
	assert.True(t, rated)

	anything, err := r.RatedAnything(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, anything)

	anything, err = r.RatedAnything(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, anything)
}

func TestUnrate(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRater(t)

	_, err := r.Dislike(ctx, "alice", "movies", "m1")
	require.NoError(t, err)
	_, err = r.Bookmark(ctx, "alice", "movies", "m1")
	require.NoError(t, err)

	ok, err := r.Unrate(ctx, "alice", "movies", "m1")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, is := range []func(context.Context, string, string, string) (bool, error){
		r.Likes, r.Dislikes, r.Hides, r.Bookmarks,
	} {
		v, err := is(ctx, "alice", "movies", "m1")
		require.NoError(t, err)
		assert.False(t, v)
	}

	ok, err = r.Unrate(ctx, "alice", "movies", "m1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// conflictStore 让前 n 次 Update 返回事务冲突。
type conflictStore struct {
	*store.MemoryStore
	conflicts int
	calls     int
}

func (c *conflictStore) Update(ctx context.Context, fn func(tx core.Tx) error, watch ...string) error {
	c.calls++
	if c.calls <= c.conflicts {
		return core.ErrTxConflict
	}
	return c.MemoryStore.Update(ctx, fn, watch...)
}

func TestConflictRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries until commit", func(t *testing.T) {
		s := &conflictStore{MemoryStore: store.NewMemoryStore(), conflicts: 2}
		r, err := New(s, testConfig)
		require.NoError(t, err)

		ok, err := r.Like(ctx, "alice", "movies", "m1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 3, s.calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		s := &conflictStore{MemoryStore: store.NewMemoryStore(), conflicts: 10}
		r, err := New(s, testConfig, WithMaxRetries(2))
		require.NoError(t, err)

		_, err = r.Like(ctx, "alice", "movies", "m1")
		assert.True(t, core.IsTxConflict(err))
		assert.Equal(t, 2, s.calls)

		likes, err := r.Likes(ctx, "alice", "movies", "m1")
		require.NoError(t, err)
		assert.False(t, likes)
	})
}
