package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/pkg/utils"
)

func scoredItems(scores map[string]float64, order ...string) []*core.Item {
	out := make([]*core.Item, 0, len(order))
	for _, id := range order {
		it := core.NewItem("movies", id)
		it.Score = scores[id]
		out = append(out, it)
	}
	return out
}

func ids(items []*core.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestTopNNode(t *testing.T) {
	ctx := context.Background()
	scores := map[string]float64{"a": 0.1, "b": 0.9, "c": 0.5}

	tests := []struct {
		name string
		node TopNNode
		want []string
	}{
		{"no limit", TopNNode{}, []string{"a", "b", "c"}},
		{"truncate", TopNNode{N: 2}, []string{"a", "b"}},
		{"larger than input", TopNNode{N: 10}, []string{"a", "b", "c"}},
		{"sort then truncate", TopNNode{N: 2, SortByScore: true}, []string{"b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.node.Process(ctx, &core.RecommendContext{}, scoredItems(scores, "a", "b", "c"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(out))
		})
	}
}

func TestDiversity(t *testing.T) {
	items := scoredItems(nil, "a", "b", "c", "d")
	items[0].PutLabel("recall_source", utils.Label{Value: "recommended"})
	items[1].PutLabel("recall_source", utils.Label{Value: "recommended"})
	items[2].PutLabel("recall_source", utils.Label{Value: "hot"})
	items[3].Meta["genre"] = "drama"

	out, err := (&Diversity{}).Process(context.Background(), &core.RecommendContext{}, items)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, ids(out))

	out, err = (&Diversity{MaxPerGroup: 2}).Process(context.Background(), &core.RecommendContext{}, items)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(out))
}
