package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/metrics"
	"github.com/rushteam/recommendable/pkg/keys"
	"github.com/rushteam/recommendable/pkg/logger"
)

// JobEnqueueAll 是定时全量投递任务在日志与指标中的名称。
const JobEnqueueAll = "enqueue_all"

// Scheduler 按 cron 表达式定时把所有评过分的用户投递到队列，用于全量刷新。
type Scheduler struct {
	cron    *cron.Cron
	store   core.SetStore
	keys    keys.Mapper
	queue   core.Enqueuer
	log     *logger.Logger
	metrics *metrics.Metrics
}

type SchedulerOption func(*Scheduler)

func WithSchedulerLogger(l *logger.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

func WithSchedulerMetrics(m *metrics.Metrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLocation 设置 cron 表达式使用的时区，默认 UTC。
func WithLocation(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) {
		if loc != nil {
			s.cron = cron.New(cron.WithLocation(loc))
		}
	}
}

func NewScheduler(store core.SetStore, namespace string, queue core.Enqueuer, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		cron:  cron.New(cron.WithLocation(time.UTC)),
		store: store,
		keys:  keys.New(namespace),
		queue: queue,
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "scheduler")
	return s
}

// Schedule 注册定时任务，spec 为标准 cron 表达式或 "@every 1h" 形式。
func (s *Scheduler) Schedule(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.EnqueueAll(context.Background()); err != nil {
			s.log.Error("scheduled enqueue failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("add cron job %q: %w", spec, err)
	}
	s.log.Info("refresh scheduled", "spec", spec)
	return nil
}

// EnqueueAll 投递所有评过分的用户，返回投递数。
func (s *Scheduler) EnqueueAll(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.enqueueAll(ctx)
	s.metrics.RecordJob(JobEnqueueAll, err, time.Since(start))
	if err != nil {
		return n, err
	}
	s.log.Info("users enqueued", "count", n, "duration", time.Since(start))
	return n, nil
}

func (s *Scheduler) enqueueAll(ctx context.Context) (int, error) {
	userIDs, err := s.store.SMembers(ctx, s.keys.Users())
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	for i, userID := range userIDs {
		if err := s.queue.Enqueue(ctx, userID); err != nil {
			return i, fmt.Errorf("enqueue %s: %w", userID, err)
		}
		s.metrics.RecordEnqueued()
	}
	return len(userIDs), nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度，返回的 context 在进行中的任务结束后完成。
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
