// Package rerank 在召回与过滤之后调整结果顺序和数量。
package rerank

import (
	"context"
	"sort"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/pipeline"
)

// TopNNode 截取前 N 个物品，通常放在 Pipeline 末尾限制返回数量。
//
//	p := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &recall.Recommended{Reader: eng},
//	        &filter.FilterNode{Filters: []filter.Filter{&filter.RatedFilter{Reader: r}}},
//	        &rerank.TopNNode{N: 20, SortByScore: true},
//	    },
//	}
type TopNNode struct {
	// N <= 0 表示不截断
	N int

	// SortByScore 为 true 时先按 Score 降序稳定排序再截断
	SortByScore bool
}

func (n *TopNNode) Name() string        { return "rerank.topn" }
func (n *TopNNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.SortByScore {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Score > items[j].Score
		})
	}
	if n.N <= 0 || len(items) <= n.N {
		return items, nil
	}
	return items[:n.N], nil
}
