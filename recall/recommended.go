package recall

import (
	"context"
	"fmt"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/pipeline"
	"github.com/rushteam/recommendable/pkg/utils"
)

// Recommended 召回 engine 为当前用户物化的推荐结果，按预测分从高到低。
// Item.Score 为预测分。同时实现 Source 和 Node。
type Recommended struct {
	Reader RecommendationReader

	// Limit 是最多召回的条数，<= 0 表示全部
	Limit int
}

func (r *Recommended) Name() string        { return "recall.recommended" }
func (r *Recommended) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *Recommended) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *Recommended) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if rctx.UserID == "" {
		return nil, nil
	}
	scored, err := r.Reader.Recommended(ctx, rctx.UserID, rctx.Category, r.Limit)
	if err != nil {
		return nil, fmt.Errorf("recall recommended: %w", err)
	}
	items := toItems(rctx.Category, scored)
	for _, it := range items {
		it.PutLabel("recall_source", utils.Label{Value: "recommended", Source: "recall"})
	}
	return items, nil
}
