package filter

import (
	"context"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/pipeline"
	"github.com/rushteam/recommendable/pkg/logger"
)

// FilterNode 组合多个 Filter，任一 Filter 返回 true 时物品被移除。
// Filter 返回错误时记录日志并保留该物品。
type FilterNode struct {
	Filters []Filter
	Logger  *logger.Logger
}

func (n *FilterNode) Name() string        { return "filter.node" }
func (n *FilterNode) Kind() pipeline.Kind { return pipeline.KindFilter }

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}
	log := n.Logger
	if log == nil {
		log = logger.Nop()
	}

	out := make([]*core.Item, 0, len(items))
	filtered := 0
	for _, item := range items {
		if item == nil {
			continue
		}
		drop := false
		for _, f := range n.Filters {
			ok, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				log.Warn("filter failed", "filter", f.Name(), "item_id", item.ID, "error", err)
				continue
			}
			if ok {
				drop = true
				break
			}
		}
		if drop {
			filtered++
			continue
		}
		out = append(out, item)
	}

	if filtered > 0 {
		log.Debug("items filtered", "user_id", rctx.UserID, "category", rctx.Category,
			"filtered", filtered, "kept", len(out))
	}
	return out, nil
}
