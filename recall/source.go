// Package recall 生成候选物品：读取 engine 物化的个性化推荐或类别热度排行，
// 并支持多个召回源并发 fan-out 合并。
package recall

import (
	"context"

	"github.com/rushteam/recommendable/core"
)

// Source 是一个可复用的召回源，可以单独作为 Node 使用，也可以放进 Fanout。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// RecommendationReader 读取物化的个性化推荐，*engine.Engine 实现了该接口。
type RecommendationReader interface {
	Recommended(ctx context.Context, userID, category string, limit int) ([]core.ScoredMember, error)
}

// PopularityReader 读取类别热度排行，*engine.Engine 实现了该接口。
type PopularityReader interface {
	Top(ctx context.Context, category string, count int) ([]core.ScoredMember, error)
}

func toItems(category string, scored []core.ScoredMember) []*core.Item {
	out := make([]*core.Item, 0, len(scored))
	for _, sm := range scored {
		it := core.NewItem(category, sm.Member)
		it.Score = sm.Score
		out = append(out, it)
	}
	return out
}
