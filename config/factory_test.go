package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/engine"
	"github.com/rushteam/recommendable/rater"
	"github.com/rushteam/recommendable/recall"
	"github.com/rushteam/recommendable/store"
)

func newDeps(t *testing.T) (Deps, *rater.Rater) {
	t.Helper()
	s := store.NewMemoryStore()
	cfg := core.Config{Namespace: "test", Categories: []string{"movies"}}

	eng, err := engine.New(s, cfg)
	require.NoError(t, err)
	r, err := rater.New(s, cfg, rater.WithScorer(eng))
	require.NoError(t, err)

	return Deps{
		Recommendations: eng,
		Popularity:      eng,
		Interactions:    r,
		Store:           s,
	}, r
}

func ids(items []*core.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestNewFactory_Types(t *testing.T) {
	deps, _ := newDeps(t)
	f := NewFactory(deps)
	assert.ElementsMatch(t, []string{
		"recall.recommended", "recall.hot", "recall.fanout",
		"filter", "rerank.topn", "rerank.diversity",
	}, f.Types())
}

const homePipeline = `
engine:
  namespace: test
  categories: [movies]
pipelines:
  - name: home
    nodes:
      - type: recall.fanout
        config:
          timeout: 200ms
          max_concurrent: 2
          dedup: true
          merge_strategy: priority
          sources:
            - type: recommended
              limit: 10
            - type: hot
              limit: 10
      - type: filter
        config:
          filters:
            - type: rated
            - type: blacklist
              item_ids: [banned]
            - type: expr
              expr: "item.score <= 0.0"
      - type: rerank.topn
        config:
          n: 2
`

func TestBuildPipelines_EndToEnd(t *testing.T) {
	ctx := context.Background()
	deps, r := newDeps(t)

	like := func(user, item string) {
		_, err := r.Like(ctx, user, "movies", item)
		require.NoError(t, err)
	}
	like("bob", "m1")
	like("bob", "m2")
	like("bob", "banned")
	like("carol", "m1")
	like("alice", "m4")
	_, err := r.Dislike(ctx, "dave", "movies", "m3")
	require.NoError(t, err)

	f, err := Parse([]byte(homePipeline))
	require.NoError(t, err)
	pipelines, err := BuildPipelines(f.Pipelines, NewFactory(deps))
	require.NoError(t, err)
	require.Contains(t, pipelines, "home")

	// 热度: m1(2 likes) > banned = m2 = m4(1 like) > m3(0)
	// alice 已 like m4，banned 在黑名单，m3 热度为 0，截断后剩 m1 和 m2
	out, err := pipelines["home"].Run(ctx, &core.RecommendContext{UserID: "alice", Category: "movies"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids(out))
}

func TestNewFactory_Errors(t *testing.T) {
	deps, _ := newDeps(t)
	full := NewFactory(deps)
	empty := NewFactory(Deps{})

	tests := []struct {
		name     string
		factory  string
		nodeType string
		config   map[string]any
	}{
		{"fanout without sources", "full", "recall.fanout", map[string]any{}},
		{"fanout unknown source", "full", "recall.fanout", map[string]any{
			"sources": []any{map[string]any{"type": "ann"}},
		}},
		{"fanout unknown strategy", "full", "recall.fanout", map[string]any{
			"sources":        []any{map[string]any{"type": "hot"}},
			"merge_strategy": "random",
		}},
		{"filter without list", "full", "filter", map[string]any{}},
		{"filter unknown type", "full", "filter", map[string]any{
			"filters": []any{map[string]any{"type": "exposed"}},
		}},
		{"filter bad expr", "full", "filter", map[string]any{
			"filters": []any{map[string]any{"type": "expr", "expr": "item.("}},
		}},
		{"recommended without reader", "empty", "recall.recommended", nil},
		{"hot without reader", "empty", "recall.hot", nil},
		{"rated without reader", "empty", "filter", map[string]any{
			"filters": []any{map[string]any{"type": "rated"}},
		}},
		{"unknown node", "full", "rank.lr", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := full
			if tt.factory == "empty" {
				f = empty
			}
			_, err := f.Build(tt.nodeType, tt.config)
			assert.Error(t, err)
		})
	}
}

func TestNewFactory_HotFallbackWithoutReader(t *testing.T) {
	f := NewFactory(Deps{})
	node, err := f.Build("recall.hot", map[string]any{"fallback": []any{"a", "b"}, "limit": 5})
	require.NoError(t, err)

	hot, ok := node.(*recall.Hot)
	require.True(t, ok)
	assert.Equal(t, 5, hot.Limit)

	out, err := hot.Recall(context.Background(), &core.RecommendContext{Category: "movies"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(out))
}
