package config

import (
	"fmt"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/filter"
	"github.com/rushteam/recommendable/pipeline"
	"github.com/rushteam/recommendable/pkg/conv"
	"github.com/rushteam/recommendable/pkg/logger"
	"github.com/rushteam/recommendable/recall"
	"github.com/rushteam/recommendable/rerank"
)

// Deps 是构建 Node 所需的运行时依赖。*engine.Engine 同时满足 Recommendations 与 Popularity，
// *rater.Rater 满足 Interactions。
type Deps struct {
	Recommendations recall.RecommendationReader
	Popularity      recall.PopularityReader
	Interactions    filter.InteractionReader
	Store           core.SetStore
	Logger          *logger.Logger
}

// NewFactory 返回注册了全部内置 Node 的工厂：
//
//	recall.recommended  {limit}
//	recall.hot          {limit, fallback}
//	recall.fanout       {sources: [{type: recommended|hot, ...}], dedup, timeout, max_concurrent, merge_strategy}
//	filter              {filters: [{type: rated} | {type: blacklist, item_ids, key} | {type: expr, expr, invert}]}
//	rerank.topn         {n, sort_by_score}
//	rerank.diversity    {key, max_per_group}
func NewFactory(d Deps) *pipeline.NodeFactory {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	b := &builder{deps: d}

	f := pipeline.NewNodeFactory()
	f.Register("recall.recommended", func(c map[string]any) (pipeline.Node, error) { return b.recommended(c) })
	f.Register("recall.hot", func(c map[string]any) (pipeline.Node, error) { return b.hot(c) })
	f.Register("recall.fanout", b.fanout)
	f.Register("filter", b.filter)
	f.Register("rerank.topn", buildTopN)
	f.Register("rerank.diversity", buildDiversity)
	return f
}

// BuildPipelines 按名称构建配置文件中的所有 Pipeline。
func BuildPipelines(cfgs []pipeline.Config, factory *pipeline.NodeFactory) (map[string]*pipeline.Pipeline, error) {
	out := make(map[string]*pipeline.Pipeline, len(cfgs))
	for i := range cfgs {
		p, err := cfgs[i].Build(factory)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", cfgs[i].Name, err)
		}
		out[cfgs[i].Name] = p
	}
	return out, nil
}

type builder struct {
	deps Deps
}

func (b *builder) recommended(c map[string]any) (*recall.Recommended, error) {
	if b.deps.Recommendations == nil {
		return nil, fmt.Errorf("recall.recommended: recommendation reader is not configured")
	}
	return &recall.Recommended{
		Reader: b.deps.Recommendations,
		Limit:  conv.ConfigGetInt(c, "limit", 0),
	}, nil
}

func (b *builder) hot(c map[string]any) (*recall.Hot, error) {
	fallback := conv.SliceAnyToString(c["fallback"])
	if b.deps.Popularity == nil && len(fallback) == 0 {
		return nil, fmt.Errorf("recall.hot: popularity reader is not configured")
	}
	return &recall.Hot{
		Reader:   b.deps.Popularity,
		Limit:    conv.ConfigGetInt(c, "limit", 0),
		Fallback: fallback,
	}, nil
}

func (b *builder) fanout(c map[string]any) (pipeline.Node, error) {
	raw, ok := c["sources"].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("recall.fanout: sources not found or invalid")
	}

	sources := make([]recall.Source, 0, len(raw))
	for i, r := range raw {
		sc, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("recall.fanout: source #%d is not a map", i)
		}
		switch t := conv.ConfigGet(sc, "type", ""); t {
		case "recommended":
			src, err := b.recommended(sc)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
		case "hot":
			src, err := b.hot(sc)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
		default:
			return nil, fmt.Errorf("recall.fanout: unknown source type %q", t)
		}
	}

	strategy := conv.ConfigGet(c, "merge_strategy", recall.MergeFirst)
	switch strategy {
	case recall.MergeFirst, recall.MergeUnion, recall.MergePriority:
	default:
		return nil, fmt.Errorf("recall.fanout: unknown merge strategy %q", strategy)
	}

	return &recall.Fanout{
		Sources:       sources,
		Dedup:         conv.ConfigGet(c, "dedup", true),
		Timeout:       conv.ConfigGetDuration(c, "timeout", 0),
		MaxConcurrent: conv.ConfigGetInt(c, "max_concurrent", 0),
		MergeStrategy: strategy,
		Logger:        b.deps.Logger,
	}, nil
}

func (b *builder) filter(c map[string]any) (pipeline.Node, error) {
	raw, ok := c["filters"].([]any)
	if !ok {
		return nil, fmt.Errorf("filter: filters not found or invalid")
	}

	filters := make([]filter.Filter, 0, len(raw))
	for i, r := range raw {
		fc, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("filter: #%d is not a map", i)
		}
		switch t := conv.ConfigGet(fc, "type", ""); t {
		case "rated":
			if b.deps.Interactions == nil {
				return nil, fmt.Errorf("filter.rated: interaction reader is not configured")
			}
			filters = append(filters, &filter.RatedFilter{Reader: b.deps.Interactions})
		case "blacklist":
			ids := conv.SliceAnyToString(fc["item_ids"])
			filters = append(filters, filter.NewBlacklistFilter(ids, b.deps.Store, conv.ConfigGet(fc, "key", "")))
		case "expr":
			ef, err := filter.NewExprFilter(conv.ConfigGet(fc, "expr", ""), conv.ConfigGet(fc, "invert", false))
			if err != nil {
				return nil, err
			}
			filters = append(filters, ef)
		default:
			return nil, fmt.Errorf("filter: unknown type %q", t)
		}
	}
	return &filter.FilterNode{Filters: filters, Logger: b.deps.Logger}, nil
}

func buildTopN(c map[string]any) (pipeline.Node, error) {
	return &rerank.TopNNode{
		N:           conv.ConfigGetInt(c, "n", 0),
		SortByScore: conv.ConfigGet(c, "sort_by_score", false),
	}, nil
}

func buildDiversity(c map[string]any) (pipeline.Node, error) {
	return &rerank.Diversity{
		Key:         conv.ConfigGet(c, "key", ""),
		MaxPerGroup: conv.ConfigGetInt(c, "max_per_group", 0),
	}, nil
}
