// Package filter 在召回之后剔除候选物品：用户已交互过的、黑名单中的、表达式不满足的。
package filter

import (
	"context"

	"github.com/rushteam/recommendable/core"
)

// Filter 判断一个 Item 是否应该被过滤掉，返回 true 表示移除。
type Filter interface {
	Name() string

	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}
