package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rushteam/recommendable/core"
)

// BreakerConfig 是 BreakerStore 的熔断参数。
type BreakerConfig struct {
	// Name 用于日志和监控
	Name string `yaml:"name" json:"name"`

	// MaxRequests 是半开状态下允许通过的请求数
	MaxRequests uint32 `yaml:"max_requests" json:"max_requests"`

	// Interval 是关闭状态下清零计数的周期
	Interval time.Duration `yaml:"interval" json:"interval"`

	// Timeout 是打开状态持续多久后进入半开
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// FailureThreshold 是触发熔断的失败率，例如 0.6 表示 60%
	FailureThreshold float64 `yaml:"failure_threshold" json:"failure_threshold"`

	// MinRequests 是计算失败率前的最少请求数
	MinRequests uint32 `yaml:"min_requests" json:"min_requests"`

	// OnStateChange 在状态变化时回调（可选），用于日志与指标
	OnStateChange func(name string, from, to gobreaker.State) `yaml:"-" json:"-"`
}

// DefaultBreakerConfig 返回默认熔断参数。
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      10,
	}
}

// BreakerStore 用熔断器包装任意 SetStore。
// 熔断打开时所有操作立即返回 core.ErrStoreUnavailable，调用方整体重试即可。
// key 不存在、事务冲突与 context 取消不计为失败。
type BreakerStore struct {
	next    core.SetStore
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerStore(next core.SetStore, cfg BreakerConfig) *BreakerStore {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		IsSuccessful:  isBreakerSuccess,
		OnStateChange: cfg.OnStateChange,
	}
	return &BreakerStore{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// State 返回熔断器当前状态。
func (b *BreakerStore) State() gobreaker.State {
	return b.breaker.State()
}

func (b *BreakerStore) Name() string { return b.next.Name() + "+breaker" }

func (b *BreakerStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return execute(b, func() (bool, error) { return b.next.SIsMember(ctx, key, member) })
}

func (b *BreakerStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return execute(b, func() ([]string, error) { return b.next.SMembers(ctx, key) })
}

func (b *BreakerStore) SCard(ctx context.Context, key string) (int64, error) {
	return execute(b, func() (int64, error) { return b.next.SCard(ctx, key) })
}

func (b *BreakerStore) SInter(ctx context.Context, keys ...string) ([]string, error) {
	return execute(b, func() ([]string, error) { return b.next.SInter(ctx, keys...) })
}

func (b *BreakerStore) SUnion(ctx context.Context, keys ...string) ([]string, error) {
	return execute(b, func() ([]string, error) { return b.next.SUnion(ctx, keys...) })
}

func (b *BreakerStore) SDiff(ctx context.Context, keys ...string) ([]string, error) {
	return execute(b, func() ([]string, error) { return b.next.SDiff(ctx, keys...) })
}

func (b *BreakerStore) ZScore(ctx context.Context, key, member string) (float64, error) {
	return execute(b, func() (float64, error) { return b.next.ZScore(ctx, key, member) })
}

func (b *BreakerStore) ZCard(ctx context.Context, key string) (int64, error) {
	return execute(b, func() (int64, error) { return b.next.ZCard(ctx, key) })
}

func (b *BreakerStore) ZRange(ctx context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	return execute(b, func() ([]core.ScoredMember, error) { return b.next.ZRange(ctx, key, start, stop) })
}

func (b *BreakerStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	return execute(b, func() ([]core.ScoredMember, error) { return b.next.ZRevRange(ctx, key, start, stop) })
}

func (b *BreakerStore) Update(ctx context.Context, fn func(tx core.Tx) error, watch ...string) error {
	_, err := execute(b, func() (struct{}, error) { return struct{}{}, b.next.Update(ctx, fn, watch...) })
	return err
}

func (b *BreakerStore) Close() error {
	return b.next.Close()
}

// isBreakerSuccess 只把存储本身的故障计为失败，业务错误不影响熔断。
func isBreakerSuccess(err error) bool {
	if err == nil || core.IsStoreNotFound(err) || core.IsTxConflict(err) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	if domainErr := core.GetDomainError(err); domainErr != nil && domainErr.Module != core.ModuleStore {
		return true
	}
	return false
}

func execute[T any](b *BreakerStore, fn func() (T, error)) (T, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, core.WrapDomainError(core.ErrStoreUnavailable, err)
	}
	if err != nil {
		var zero T
		if v, ok := out.(T); ok {
			return v, err
		}
		return zero, err
	}
	return out.(T), nil
}

var _ core.SetStore = (*BreakerStore)(nil)
