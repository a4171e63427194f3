// Package dsl 是基于 CEL (Common Expression Language) 的物品表达式，用于配置驱动的过滤规则。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/recommendable/core"
)

var (
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的表达式，线程安全，可对不同物品重复求值。
//
// 可用变量：
//   - item.id / item.category / item.score / item.meta
//   - label.<key>：物品 Label 的 Value，例如 label.recall_source == "hot"
//   - rctx.user_id / rctx.category / rctx.scene / rctx.params / rctx.labels
//
// 示例：
//   - `item.score > 0.2`
//   - `label.recall_source == "hot" && item.score >= 0.5`
//   - `"recall_source" in label && label.recall_source.contains("hot")`
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，表达式必须返回 bool。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

func (p *Program) String() string { return p.expr }

// Evaluate 对一个物品求值。访问不存在的 label key 会返回错误，应先用 `"key" in label` 判断。
func (p *Program) Evaluate(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: expression must return bool, got %T", p.expr, out.Value())
	}
	return result, nil
}

// Evaluate 编译并求值一次，适合只用一次的表达式。空表达式视为 true。
func Evaluate(expr string, item *core.Item, rctx *core.RecommendContext) (bool, error) {
	if expr == "" {
		return true, nil
	}
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Evaluate(item, rctx)
}

func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any, len(item.Labels))
	for k, v := range item.Labels {
		labels[k] = v.Value
	}
	meta := item.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	in := map[string]any{
		"item": map[string]any{
			"id":       item.ID,
			"category": item.Category,
			"score":    item.Score,
			"meta":     meta,
		},
		"label": labels,
		"rctx":  map[string]any{},
	}
	if rctx != nil {
		userLabels := make(map[string]any, len(rctx.Labels))
		for k, v := range rctx.Labels {
			userLabels[k] = v.Value
		}
		params := rctx.Params
		if params == nil {
			params = map[string]any{}
		}
		in["rctx"] = map[string]any{
			"user_id":  rctx.UserID,
			"category": rctx.Category,
			"scene":    rctx.Scene,
			"params":   params,
			"labels":   userLabels,
		}
	}
	return in
}
