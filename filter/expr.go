package filter

import (
	"context"
	"fmt"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/pkg/dsl"
)

// ExprFilter 用 CEL 表达式过滤物品。
// Invert 为 false 时表达式为 true 的物品被移除；为 true 时只保留表达式为 true 的物品。
type ExprFilter struct {
	program *dsl.Program
	invert  bool
}

func NewExprFilter(expr string, invert bool) (*ExprFilter, error) {
	if expr == "" {
		return nil, fmt.Errorf("filter.expr: expression is required")
	}
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("filter.expr: %w", err)
	}
	return &ExprFilter{program: p, invert: invert}, nil
}

func (f *ExprFilter) Name() string { return "filter.expr" }

func (f *ExprFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	ok, err := f.program.Evaluate(item, rctx)
	if err != nil {
		return false, err
	}
	return ok != f.invert, nil
}
