// Package metrics 提供推荐引擎的 Prometheus 指标。
//
// 指标：
//   - recommendable_interactions_total{action,result}: 交互次数，result 为 applied / noop / aborted / error
//   - recommendable_jobs_total{job,result}: 批处理任务次数，result 为 success / failure
//   - recommendable_job_duration_seconds{job}: 批处理任务耗时
//   - recommendable_queue_enqueued_total: 投递到任务队列的用户数
//   - recommendable_store_breaker_state: 存储熔断器状态（0 关闭 / 1 半开 / 2 打开）
//
// 所有方法对 nil 接收者安全，未注入 Metrics 的组件不会 panic。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "recommendable"

type Metrics struct {
	InteractionsTotal *prometheus.CounterVec
	JobsTotal         *prometheus.CounterVec
	JobDuration       *prometheus.HistogramVec
	EnqueuedTotal     prometheus.Counter
	BreakerState      prometheus.Gauge
}

// New 创建并注册指标到 reg；reg 为 nil 时使用 prometheus.DefaultRegisterer。
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		InteractionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interactions_total",
				Help:      "Total number of user interactions by action and result",
			},
			[]string{"action", "result"},
		),
		JobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Total number of batch job runs by job and result",
			},
			[]string{"job", "result"},
		),
		JobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Batch job duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60},
			},
			[]string{"job"},
		),
		EnqueuedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_enqueued_total",
				Help:      "Total number of users enqueued for batch jobs",
			},
		),
		BreakerState: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "store_breaker_state",
				Help:      "Store circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
		),
	}
}

func (m *Metrics) RecordInteraction(action, result string) {
	if m == nil {
		return
	}
	m.InteractionsTotal.WithLabelValues(action, result).Inc()
}

func (m *Metrics) RecordJob(job string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.JobsTotal.WithLabelValues(job, result).Inc()
	m.JobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *Metrics) RecordEnqueued() {
	if m == nil {
		return
	}
	m.EnqueuedTotal.Inc()
}

func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.BreakerState.Set(float64(state))
}
