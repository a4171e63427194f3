package core

import "github.com/rushteam/recommendable/pkg/utils"

// RecommendContext 承载一次推荐请求的用户/类别/场景信息，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID   string
	Category string // 本次请求的物品类别，必须已注册
	Scene    string

	// Labels 是用户级标签，可驱动整个 Pipeline 行为
	Labels map[string]utils.Label

	// Params 请求级上下文参数（CEL 表达式中以 rctx.params 访问）
	Params map[string]any
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	rctx.Labels[key] = utils.MergeLabel(rctx.Labels[key], lbl)
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
