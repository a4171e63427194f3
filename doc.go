// Package recommendable 是基于协同过滤的推荐引擎：用户对物品的 like/dislike/hide/bookmark
// 存放在 set/sorted-set 存储中（Redis 或内存），后台 worker 计算用户相似度并物化推荐结果，
// 服务端通过 Pipeline 读取推荐与热度排行。
//
//   - rater: 记录交互、查询交互、清除用户或物品
//   - engine: 相似度、预测、推荐物化、Wilson 热度
//   - worker: 刷新队列、并发消费、定时全量入队
//   - pipeline/recall/filter/rerank: 服务端候选生成与过滤
package recommendable

import "github.com/rushteam/recommendable/pipeline"

// 轻量 facade：便于直接 import 根包使用 Pipeline 抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall = pipeline.KindRecall
	KindFilter = pipeline.KindFilter
	KindReRank = pipeline.KindReRank
)
