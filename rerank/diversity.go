package rerank

import (
	"context"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/pipeline"
)

// Diversity 限制同一分组的物品数量，保留先出现的。
// 分组取 Labels[Key].Value，不存在时取 Meta[Key]（string），两者都没有的物品不受限制。
type Diversity struct {
	// Key 默认 "recall_source"
	Key string

	// MaxPerGroup 默认 1
	MaxPerGroup int
}

func (n *Diversity) Name() string        { return "rerank.diversity" }
func (n *Diversity) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	key := n.Key
	if key == "" {
		key = "recall_source"
	}
	limit := n.MaxPerGroup
	if limit <= 0 {
		limit = 1
	}

	counts := make(map[string]int)
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		group, ok := groupOf(it, key)
		if !ok {
			out = append(out, it)
			continue
		}
		if counts[group] >= limit {
			continue
		}
		counts[group]++
		out = append(out, it)
	}
	return out, nil
}

func groupOf(it *core.Item, key string) (string, bool) {
	if v := it.LabelValue(key); v != "" {
		return v, true
	}
	if v, ok := it.Meta[key].(string); ok && v != "" {
		return v, true
	}
	return "", false
}
