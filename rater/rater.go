// Package rater 是用户与物品的交互存储：like / dislike / hide / bookmark 及其逆操作、
// 只读查询，以及物品/用户被删除时的原子级联清理。
//
// 每个写操作都在一次 core.SetStore.Update 中原子提交，包括互斥关系的移除、
// 物品侧反向集合、用户全集索引以及推荐结果中该物品的移除。
package rater

import (
	"context"
	"fmt"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/metrics"
	"github.com/rushteam/recommendable/pkg/keys"
	"github.com/rushteam/recommendable/pkg/logger"
)

// DefaultMaxRetries 是事务冲突时的最大尝试次数。
const DefaultMaxRetries = core.DefaultMaxRetries

type Rater struct {
	store      core.SetStore
	cfg        core.Config
	keys       keys.Mapper
	hooks      core.Hooks
	scorer     core.PopularityUpdater
	enqueuer   core.Enqueuer
	log        *logger.Logger
	metrics    *metrics.Metrics
	maxRetries int
}

type Option func(*Rater)

// WithHooks 注册宿主持久层的交互观察者。
func WithHooks(h core.Hooks) Option {
	return func(r *Rater) { r.hooks = h }
}

// WithScorer 设置热度分更新器，通常是 *engine.Engine。
func WithScorer(s core.PopularityUpdater) Option {
	return func(r *Rater) { r.scorer = s }
}

// WithEnqueuer 设置批处理任务投递器，仅在 Config.AutoEnqueue 为 true 时使用。
func WithEnqueuer(q core.Enqueuer) Option {
	return func(r *Rater) { r.enqueuer = q }
}

func WithLogger(l *logger.Logger) Option {
	return func(r *Rater) {
		if l != nil {
			r.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Rater) { r.metrics = m }
}

func WithMaxRetries(n int) Option {
	return func(r *Rater) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

func New(store core.SetStore, cfg core.Config, opts ...Option) (*Rater, error) {
	if store == nil {
		return nil, fmt.Errorf("rater: store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Rater{
		store:      store,
		cfg:        cfg,
		keys:       keys.New(cfg.Namespace),
		hooks:      core.HookFuncs{},
		log:        logger.Nop(),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("component", "rater")
	return r, nil
}

func (r *Rater) checkCategory(category string) error {
	if !r.cfg.IsRegistered(category) {
		return core.WrapDomainError(core.ErrNotRecommendable, fmt.Errorf("category %q", category))
	}
	return nil
}

// update 执行一次带 watch 的事务，冲突时整体重试。
func (r *Rater) update(ctx context.Context, fn func(tx core.Tx) error, watch ...string) error {
	var err error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		err = r.store.Update(ctx, fn, watch...)
		if !core.IsTxConflict(err) {
			return err
		}
		r.log.Debug("transaction conflict, retrying", "attempt", attempt)
	}
	return err
}
