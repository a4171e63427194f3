package recall

import (
	"context"
	"fmt"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/pipeline"
	"github.com/rushteam/recommendable/pkg/utils"
)

// Hot 是热门召回源：读取类别的 Wilson 热度排行，非个性化。
// 排行为空时使用 Fallback 中的物品 ID。同时实现 Source 和 Node。
type Hot struct {
	Reader PopularityReader

	// Limit 是最多召回的条数，默认 100
	Limit int

	// Fallback 是排行为空时的兜底物品 ID
	Fallback []string
}

const defaultHotLimit = 100

func (r *Hot) Name() string        { return "recall.hot" }
func (r *Hot) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *Hot) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *Hot) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	limit := r.Limit
	if limit <= 0 {
		limit = defaultHotLimit
	}

	var items []*core.Item
	if r.Reader != nil {
		scored, err := r.Reader.Top(ctx, rctx.Category, limit)
		if err != nil {
			return nil, fmt.Errorf("recall hot: %w", err)
		}
		items = toItems(rctx.Category, scored)
	}
	if len(items) == 0 {
		for _, id := range r.Fallback {
			items = append(items, core.NewItem(rctx.Category, id))
		}
	}
	for _, it := range items {
		it.PutLabel("recall_source", utils.Label{Value: "hot", Source: "recall"})
	}
	return items, nil
}
