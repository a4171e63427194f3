// Package utils 提供物品与请求上下文共用的 Label 类型。
package utils

import "strings"

const (
	valueSep  = "|"
	sourceSep = ","
)

// Label 标记候选物品的来历，例如 recall_source=hot。
// 同名 Label 合并时 Value 以 '|' 累积，Source 以 ',' 累积，重复的片段只保留一次。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / filter / rerank
}

// Values 返回累积的 Value 片段。
func (l Label) Values() []string {
	if l.Value == "" {
		return nil
	}
	return strings.Split(l.Value, valueSep)
}

// Has 判断 Value 片段中是否包含 v。
func (l Label) Has(v string) bool {
	for _, s := range l.Values() {
		if s == v {
			return true
		}
	}
	return false
}

// MergeLabel 合并同名 Label，保留先到的顺序。
func MergeLabel(existing, incoming Label) Label {
	return Label{
		Value:  appendPart(existing.Value, incoming.Value, valueSep),
		Source: appendPart(existing.Source, incoming.Source, sourceSep),
	}
}

func appendPart(cur, part, sep string) string {
	switch {
	case part == "":
		return cur
	case cur == "":
		return part
	}
	for _, s := range strings.Split(cur, sep) {
		if s == part {
			return cur
		}
	}
	return cur + sep + part
}
