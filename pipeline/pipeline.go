// Package pipeline 把一次推荐请求拆成可组合的 Node 链：召回 -> 过滤 -> 重排。
//
// 推荐分数由 engine 离线物化，Pipeline 只负责读取、剔除和截断，不做在线计算。
package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/recommendable/core"
)

type Pipeline struct {
	Name  string
	Nodes []Node
}

// Run 依次执行每个 Node，上一个 Node 的输出是下一个的输入。
// 任一 Node 返回错误时整体失败，错误中带有 Node 名称。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if rctx == nil {
		return nil, fmt.Errorf("pipeline %s: recommend context is required", p.Name)
	}
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: node %s: %w", p.Name, node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}
