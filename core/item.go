package core

import "github.com/rushteam/recommendable/pkg/utils"

// Item 是 Pipeline 中流转的候选物品。
// Score 来自推荐分或热度分；Labels 记录召回来源等可解释信息。
type Item struct {
	ID       string
	Category string
	Score    float64
	Meta     map[string]any
	Labels   map[string]utils.Label
}

func NewItem(category, id string) *Item {
	return &Item{
		ID:       id,
		Category: category,
		Meta:     make(map[string]any),
		Labels:   make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label，同名 key 按 utils.MergeLabel 累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	it.Labels[key] = utils.MergeLabel(it.Labels[key], lbl)
}

// LabelValue 返回 Label 的 Value，不存在时返回空串。
func (it *Item) LabelValue(key string) string {
	return it.Labels[key].Value
}
