// Package config 加载 recommendable 进程的配置文件，并根据配置构建服务端 Pipeline。
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/pipeline"
	"github.com/rushteam/recommendable/store"
	"github.com/rushteam/recommendable/worker"
)

// 环境变量覆盖
const (
	EnvRedisAddr = "RECOMMENDABLE_REDIS_ADDR"
	EnvNamespace = "RECOMMENDABLE_NAMESPACE"
	EnvLogMode   = "RECOMMENDABLE_LOG_MODE"
	EnvRedisDB   = "RECOMMENDABLE_REDIS_DB"
)

// File 是配置文件的完整结构。
type File struct {
	Engine    core.Config       `yaml:"engine"`
	Redis     RedisConfig       `yaml:"redis"`
	Breaker   BreakerConfig     `yaml:"breaker"`
	Worker    WorkerConfig      `yaml:"worker"`
	Metrics   MetricsConfig     `yaml:"metrics"`
	Log       LogConfig         `yaml:"log"`
	Pipelines []pipeline.Config `yaml:"pipelines"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// BreakerConfig 控制是否在存储外包一层熔断。
type BreakerConfig struct {
	Enabled bool `yaml:"enabled"`

	store.BreakerConfig `yaml:",inline"`
}

type WorkerConfig struct {
	// Queue 是任务队列名称
	Queue string `yaml:"queue"`

	// Schedule 是全量刷新的 cron 表达式，为空表示不定时刷新
	Schedule string `yaml:"schedule"`

	// Timezone 是 Schedule 使用的时区（IANA 名称）
	Timezone string `yaml:"timezone"`

	Pool worker.PoolConfig `yaml:"pool"`
}

type MetricsConfig struct {
	// Addr 是 /metrics 的监听地址，为空表示不启动
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

type LogConfig struct {
	// Mode 为 prod 时输出 JSON，其余为开发模式
	Mode string `yaml:"mode"`
}

// Default 返回默认配置，Engine.Categories 没有默认值，必须在配置文件中给出。
func Default() *File {
	return &File{
		Engine: core.Config{
			Namespace: "recommendable",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Breaker: BreakerConfig{
			Enabled:       true,
			BreakerConfig: store.DefaultBreakerConfig("redis"),
		},
		Worker: WorkerConfig{
			Queue:    worker.DefaultQueueName,
			Schedule: "@every 1h",
			Timezone: "UTC",
			Pool:     worker.DefaultPoolConfig(),
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
			Path: "/metrics",
		},
		Log: LogConfig{
			Mode: "prod",
		},
	}
}

// Load 读取 YAML 配置文件，未给出的字段使用 Default，随后应用环境变量覆盖并校验。
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 内容，规则同 Load。
func Parse(data []byte) (*File, error) {
	f := Default()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, core.WrapDomainError(core.ErrInvalidConfig, fmt.Errorf("parse yaml: %w", err))
	}
	if err := f.applyEnv(); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) applyEnv() error {
	if v := os.Getenv(EnvRedisAddr); v != "" {
		f.Redis.Addr = v
	}
	if v := os.Getenv(EnvNamespace); v != "" {
		f.Engine.Namespace = v
	}
	if v := os.Getenv(EnvLogMode); v != "" {
		f.Log.Mode = v
	}
	if v := os.Getenv(EnvRedisDB); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return core.WrapDomainError(core.ErrInvalidConfig, fmt.Errorf("%s: %w", EnvRedisDB, err))
		}
		f.Redis.DB = db
	}
	return nil
}

func (f *File) Validate() error {
	if err := f.Engine.Validate(); err != nil {
		return err
	}
	if f.Redis.Addr == "" {
		return core.WrapDomainError(core.ErrInvalidConfig, fmt.Errorf("redis.addr is required"))
	}
	if f.Worker.Pool.Concurrency < 0 {
		return core.WrapDomainError(core.ErrInvalidConfig, fmt.Errorf("worker.pool.concurrency must not be negative"))
	}
	names := make(map[string]struct{}, len(f.Pipelines))
	for _, p := range f.Pipelines {
		if p.Name == "" {
			return core.WrapDomainError(core.ErrInvalidConfig, fmt.Errorf("pipeline name is required"))
		}
		if _, ok := names[p.Name]; ok {
			return core.WrapDomainError(core.ErrInvalidConfig, fmt.Errorf("duplicate pipeline %q", p.Name))
		}
		names[p.Name] = struct{}{}
	}
	return nil
}
