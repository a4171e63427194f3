package recall

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/pipeline"
	"github.com/rushteam/recommendable/pkg/logger"
	"github.com/rushteam/recommendable/pkg/utils"
)

// 合并策略
const (
	MergeFirst    = "first"    // 按 ID 去重，保留先到达的
	MergeUnion    = "union"    // 不去重
	MergePriority = "priority" // 按 ID 去重，保留 Sources 中靠前的来源
)

// Fanout 是一个 Recall Node：并发执行多个召回源并合并结果。
// 某个召回源失败或超时只记录日志，返回空结果，不影响其他召回源。
type Fanout struct {
	Sources       []Source
	Dedup         bool
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数，0 表示不限
	MergeStrategy string
	Logger        *logger.Logger
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}
	log := n.Logger
	if log == nil {
		log = logger.Nop()
	}

	// 每个来源的结果按下标存放，合并时顺序与 Sources 一致
	results := make([][]*core.Item, len(n.Sources))
	var mu sync.Mutex

	g := new(errgroup.Group)
	if n.MaxConcurrent > 0 {
		g.SetLimit(n.MaxConcurrent)
	}
	for i, src := range n.Sources {
		g.Go(func() error {
			recallCtx := ctx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(ctx, n.Timeout)
				defer cancel()
			}

			items, err := src.Recall(recallCtx, rctx)
			if err != nil {
				log.Warn("recall source failed", "source", src.Name(), "user_id", rctx.UserID, "error", err)
				return nil
			}
			for _, it := range items {
				it.PutLabel("recall_priority", utils.Label{Value: strconv.Itoa(i), Source: "recall"})
			}

			mu.Lock()
			results[i] = items
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	all := make([]*core.Item, 0)
	for _, items := range results {
		all = append(all, items...)
	}

	if !n.Dedup || n.MergeStrategy == MergeUnion {
		return all, nil
	}
	// Sources 顺序即优先级，first 与 priority 在按下标合并后结果一致
	return dedup(all), nil
}

// dedup 按 ID 去重，保留第一次出现的物品，后出现的同 ID 物品的 Labels 合并进来。
func dedup(all []*core.Item) []*core.Item {
	seen := make(map[string]*core.Item, len(all))
	out := make([]*core.Item, 0, len(all))
	for _, it := range all {
		if it == nil {
			continue
		}
		if old, ok := seen[it.ID]; ok {
			for k, v := range it.Labels {
				old.PutLabel(k, v)
			}
			continue
		}
		seen[it.ID] = it
		out = append(out, it)
	}
	return out
}

var (
	_ Source        = (*Recommended)(nil)
	_ Source        = (*Hot)(nil)
	_ pipeline.Node = (*Fanout)(nil)
)
