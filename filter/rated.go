package filter

import (
	"context"

	"github.com/rushteam/recommendable/core"
)

// InteractionReader 查询用户与物品的交互，*rater.Rater 实现了该接口。
type InteractionReader interface {
	Rated(ctx context.Context, userID, category, itemID string) (bool, error)
	Hides(ctx context.Context, userID, category, itemID string) (bool, error)
	Bookmarks(ctx context.Context, userID, category, itemID string) (bool, error)
}

// RatedFilter 过滤当前用户已经 like/dislike/hide/bookmark 的物品。
// 物化的推荐结果在交互时已同步移除，这里主要覆盖热度召回等非个性化来源。
type RatedFilter struct {
	Reader InteractionReader
}

func (f *RatedFilter) Name() string { return "filter.rated" }

func (f *RatedFilter) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	if rctx.UserID == "" {
		return false, nil
	}
	category := item.Category
	if category == "" {
		category = rctx.Category
	}

	checks := []func(context.Context, string, string, string) (bool, error){
		f.Reader.Rated, f.Reader.Hides, f.Reader.Bookmarks,
	}
	for _, check := range checks {
		ok, err := check(ctx, rctx.UserID, category, item.ID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
