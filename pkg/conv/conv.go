// Package conv 提供 any 到具体类型的转换，主要用于读取 YAML/JSON 解析出的 map[string]any 配置。
package conv

import (
	"fmt"
	"time"
)

// ToFloat64 将 any 转为 float64。
// 支持 float64、float32、int、int64、int32；bool 视为 1.0/0.0。
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}

// ToInt 将 any 转为 int，支持整数与浮点类型。
func ToInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case int32:
		return int(val), true
	case float64:
		return int(val), true
	case float32:
		return int(val), true
	default:
		return 0, false
	}
}

// ConvertSlice 将 []T 按 convert 转为 []U，convert 返回 false 的元素被跳过。
func ConvertSlice[T, U any](s []T, convert func(T) (U, bool)) []U {
	if s == nil {
		return nil
	}
	out := make([]U, 0, len(s))
	for _, v := range s {
		if u, ok := convert(v); ok {
			out = append(out, u)
		}
	}
	return out
}

// SliceAnyToString 将 []any 转为 []string。
// 元素为 string 直接保留，为数字时格式化为 "%.0f"（YAML 中未加引号的数字 ID）。
func SliceAnyToString(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	return ConvertSlice(raw, func(e any) (string, bool) {
		if s, ok := e.(string); ok {
			return s, true
		}
		if f, ok := ToFloat64(e); ok {
			return fmt.Sprintf("%.0f", f), true
		}
		return "", false
	})
}

// ConfigGet 按 key 取 T，取不到或类型不符时返回 defaultVal。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

// ConfigGetInt 取 int。YAML/JSON 常得到 int 或 float64，此处统一处理。
func ConfigGetInt(m map[string]any, key string, defaultVal int) int {
	if n, ok := ToInt(m[key]); ok {
		return n
	}
	return defaultVal
}

// ConfigGetDuration 取时长：字符串按 time.ParseDuration 解析（"500ms"），数字视为秒。
func ConfigGetDuration(m map[string]any, key string, defaultVal time.Duration) time.Duration {
	switch val := m[key].(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	default:
		if f, ok := ToFloat64(val); ok {
			return time.Duration(f * float64(time.Second))
		}
	}
	return defaultVal
}
