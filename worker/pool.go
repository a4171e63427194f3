package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rushteam/recommendable/metrics"
	"github.com/rushteam/recommendable/pkg/logger"
)

// JobRefresh 是刷新任务在日志与指标中的名称。
const JobRefresh = "refresh"

const requeueTimeout = 5 * time.Second

// Refresher 执行单个用户的批处理任务，*engine.Engine 实现了该接口。
type Refresher interface {
	Refresh(ctx context.Context, userID string) error
}

// PoolConfig 是 Pool 的并发与限流参数。
type PoolConfig struct {
	// Concurrency 是同时执行的任务数上限
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// RatePerSecond 是每秒最多启动的任务数，<= 0 表示不限流
	RatePerSecond float64 `yaml:"rate_per_second" json:"rate_per_second"`

	// Burst 是令牌桶容量
	Burst int `yaml:"burst" json:"burst"`

	// JobTimeout 是单个任务的超时时间，<= 0 表示不设超时
	JobTimeout time.Duration `yaml:"job_timeout" json:"job_timeout"`
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Concurrency:   4,
		RatePerSecond: 0,
		Burst:         1,
		JobTimeout:    time.Minute,
	}
}

// Pool 从 Queue 取出用户并发执行 Refresher。
type Pool struct {
	queue     Queue
	refresher Refresher
	cfg       PoolConfig
	limiter   *rate.Limiter
	log       *logger.Logger
	metrics   *metrics.Metrics
}

type PoolOption func(*Pool)

func WithPoolLogger(l *logger.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

func WithPoolMetrics(m *metrics.Metrics) PoolOption {
	return func(p *Pool) { p.metrics = m }
}

func NewPool(queue Queue, refresher Refresher, cfg PoolConfig, opts ...PoolOption) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	p := &Pool{
		queue:     queue,
		refresher: refresher,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, cfg.Burst),
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("component", "worker")
	return p
}

// Run 持续消费队列直到 ctx 结束或队列关闭，返回前等待所有进行中的任务完成。
// 单个任务失败不会中断 Run。先取令牌再出队，已出队的用户一定会被处理；
// 因 ctx 结束而中断的任务会重新入队。
func (p *Pool) Run(ctx context.Context) error {
	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Concurrency)

	var runErr error
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			break
		}
		userID, err := p.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, ErrQueueClosed) && ctx.Err() == nil {
				runErr = err
			}
			break
		}
		g.Go(func() error {
			if err := p.process(ctx, userID); err != nil && ctx.Err() != nil {
				p.requeue(ctx, userID)
			}
			return nil
		})
	}

	_ = g.Wait()
	p.log.Info("worker pool stopped")
	return runErr
}

// requeue 在停止时把未完成的用户放回队列，使用独立于已取消 ctx 的短超时。
func (p *Pool) requeue(ctx context.Context, userID string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
	defer cancel()
	if err := p.queue.Enqueue(rctx, userID); err != nil {
		p.log.Error("requeue failed", "user_id", userID, "error", err)
		return
	}
	p.log.Info("requeued interrupted job", "user_id", userID)
}

// RefreshUsers 并发刷新给定用户并等待全部完成，返回所有失败合并后的错误。
func (p *Pool) RefreshUsers(ctx context.Context, userIDs []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	var (
		mu   sync.Mutex
		errs []error
	)
	for _, userID := range userIDs {
		if err := p.limiter.Wait(gctx); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		g.Go(func() error {
			if err := p.process(gctx, userID); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (p *Pool) process(ctx context.Context, userID string) error {
	runID := uuid.New().String()
	if p.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	err := p.refresher.Refresh(ctx, userID)
	duration := time.Since(start)
	p.metrics.RecordJob(JobRefresh, err, duration)

	if err != nil {
		p.log.Error("refresh failed", "run_id", runID, "user_id", userID,
			"duration", duration, "error", err)
		return err
	}
	p.log.Debug("refresh done", "run_id", runID, "user_id", userID, "duration", duration)
	return nil
}
