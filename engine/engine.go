// Package engine 实现基于 like/dislike 二值信号的用户协同过滤计算：
// 用户相似度、评分预测、推荐结果物化以及 Wilson 下界热度分。
//
// 所有状态都在 core.SetStore 中，Engine 本身无可变状态，可被多个 goroutine 共享；
// 不同用户的批处理任务触及的 key 互不相交，可以完全并行。
package engine

import (
	"context"
	"fmt"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/pkg/keys"
	"github.com/rushteam/recommendable/pkg/logger"
)

type Engine struct {
	store      core.SetStore
	cfg        core.Config
	keys       keys.Mapper
	log        *logger.Logger
	maxRetries int
}

type Option func(*Engine)

func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMaxRetries 设置写入遇到事务冲突时的最大尝试次数。
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

func New(store core.SetStore, cfg core.Config, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		store:      store,
		cfg:        cfg,
		keys:       keys.New(cfg.Namespace),
		log:        logger.Nop(),
		maxRetries: core.DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("component", "engine")
	return e, nil
}

// Config 返回引擎使用的配置副本。
func (e *Engine) Config() core.Config { return e.cfg }

func (e *Engine) checkCategory(category string) error {
	if !e.cfg.IsRegistered(category) {
		return core.WrapDomainError(core.ErrNotRecommendable, fmt.Errorf("category %q", category))
	}
	return nil
}

// update 执行一次带 watch 的事务，冲突时整体重试；fn 每次重试都会重新执行，不能依赖上一次的结果。
func (e *Engine) update(ctx context.Context, fn func(tx core.Tx) error, watch ...string) error {
	var err error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		err = e.store.Update(ctx, fn, watch...)
		if !core.IsTxConflict(err) {
			return err
		}
		e.log.Debug("transaction conflict, retrying", "attempt", attempt)
	}
	return err
}

var _ core.PopularityUpdater = (*Engine)(nil)
