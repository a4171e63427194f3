package core

import (
	"fmt"
	"strings"
)

// Config 是推荐引擎的显式配置，在构造时传入各组件，不存在进程级全局注册表。
type Config struct {
	// Namespace 是所有 key 的前缀，为空时不加前缀
	Namespace string `yaml:"namespace" json:"namespace"`

	// Categories 是已注册的物品类别（如 "movies"、"books"）
	Categories []string `yaml:"categories" json:"categories"`

	// NearestNeighbors 是保留/使用的最相似用户数 K，0 表示不限（全部用户）
	NearestNeighbors int `yaml:"nearest_neighbors" json:"nearest_neighbors"`

	// FurthestNeighbors 是保留的最不相似用户数 F，默认 0
	FurthestNeighbors int `yaml:"furthest_neighbors" json:"furthest_neighbors"`

	// RecommendationsToStore 是每个 (user, category) 最多保存的推荐数，0 表示不限
	RecommendationsToStore int `yaml:"recommendations_to_store" json:"recommendations_to_store"`

	// AutoEnqueue 为 true 时，每次 like/dislike 及其逆操作之后自动投递批处理任务
	AutoEnqueue bool `yaml:"auto_enqueue" json:"auto_enqueue"`
}

// UserScope 与 JobScope 是保留的 key 段，类别名不能与之相同。
const (
	UserScope = "users"
	JobScope  = "jobs"
)

// IsRegistered 判断类别是否已注册。
func (c *Config) IsRegistered(category string) bool {
	for _, cat := range c.Categories {
		if cat == category {
			return true
		}
	}
	return false
}

// Validate 校验配置。
func (c *Config) Validate() error {
	if len(c.Categories) == 0 {
		return WrapDomainError(ErrInvalidConfig, fmt.Errorf("at least one category is required"))
	}
	seen := make(map[string]struct{}, len(c.Categories))
	for _, cat := range c.Categories {
		if strings.TrimSpace(cat) == "" {
			return WrapDomainError(ErrInvalidConfig, fmt.Errorf("empty category name"))
		}
		if cat == UserScope || cat == JobScope {
			return WrapDomainError(ErrInvalidConfig, fmt.Errorf("category name %q is reserved", cat))
		}
		if _, ok := seen[cat]; ok {
			return WrapDomainError(ErrInvalidConfig, fmt.Errorf("duplicate category %q", cat))
		}
		seen[cat] = struct{}{}
	}
	if c.NearestNeighbors < 0 || c.FurthestNeighbors < 0 || c.RecommendationsToStore < 0 {
		return WrapDomainError(ErrInvalidConfig, fmt.Errorf("bounds must not be negative"))
	}
	return nil
}
