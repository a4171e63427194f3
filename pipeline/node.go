package pipeline

import (
	"context"

	"github.com/rushteam/recommendable/core"
)

// Kind 用于标记 Node 所处的阶段，方便按阶段打点和编排。
type Kind string

const (
	KindRecall Kind = "recall" // 召回：读取物化的推荐结果或热度排行
	KindFilter Kind = "filter" // 过滤：剔除已交互或不满足条件的候选
	KindReRank Kind = "rerank" // 重排：截断、调整顺序
)

// Node 是 Pipeline 的最小可扩展单元，统一为 "输入 items -> 输出 items"。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}

// NodeBuilder 根据配置构建 Node。
type NodeBuilder func(config map[string]any) (Node, error)
