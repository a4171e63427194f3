package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/rater"
	"github.com/rushteam/recommendable/store"
)

func items(ids ...string) []*core.Item {
	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.NewItem("movies", id))
	}
	return out
}

func itemIDs(items []*core.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestRatedFilter(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r, err := rater.New(s, core.Config{Categories: []string{"movies"}})
	require.NoError(t, err)

	_, err = r.Like(ctx, "alice", "movies", "liked")
	require.NoError(t, err)
	_, err = r.Dislike(ctx, "alice", "movies", "disliked")
	require.NoError(t, err)
	_, err = r.Hide(ctx, "alice", "movies", "hidden")
	require.NoError(t, err)
	_, err = r.Bookmark(ctx, "alice", "movies", "bookmarked")
	require.NoError(t, err)

	node := &FilterNode{Filters: []Filter{&RatedFilter{Reader: r}}}
	rctx := &core.RecommendContext{UserID: "alice", Category: "movies"}

	out, err := node.Process(ctx, rctx, items("liked", "fresh", "disliked", "hidden", "bookmarked"))
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, itemIDs(out))

	out, err = node.Process(ctx, &core.RecommendContext{Category: "movies"}, items("liked", "fresh"))
	require.NoError(t, err)
	assert.Equal(t, []string{"liked", "fresh"}, itemIDs(out), "anonymous requests are not filtered")
}

func TestExprFilter(t *testing.T) {
	ctx := context.Background()
	in := items("a", "b", "c")
	in[0].Score = 0.9
	in[1].Score = -0.2
	in[2].Score = 0.1

	drop, err := NewExprFilter("item.score < 0.0", false)
	require.NoError(t, err)
	out, err := (&FilterNode{Filters: []Filter{drop}}).Process(ctx, &core.RecommendContext{}, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, itemIDs(out))

	keep, err := NewExprFilter("item.score > 0.5", true)
	require.NoError(t, err)
	out, err = (&FilterNode{Filters: []Filter{keep}}).Process(ctx, &core.RecommendContext{}, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, itemIDs(out))

	_, err = NewExprFilter("", false)
	assert.Error(t, err)
	_, err = NewExprFilter("item.score >>", false)
	assert.Error(t, err)
}

func TestBlacklistFilter(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Update(ctx, func(tx core.Tx) error {
		tx.SAdd("blacklist:movies", "b")
		return nil
	}))

	f := NewBlacklistFilter([]string{"a"}, s, "blacklist:movies")
	out, err := (&FilterNode{Filters: []Filter{f}}).Process(ctx, &core.RecommendContext{}, items("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, itemIDs(out))
}

type errFilter struct{}

func (errFilter) Name() string { return "filter.err" }
func (errFilter) ShouldFilter(context.Context, *core.RecommendContext, *core.Item) (bool, error) {
	return true, errors.New("boom")
}

func TestFilterNode_ErrorKeepsItem(t *testing.T) {
	out, err := (&FilterNode{Filters: []Filter{errFilter{}}}).Process(context.Background(), &core.RecommendContext{}, items("a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, itemIDs(out))
}
