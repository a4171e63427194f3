// recommendable-worker 消费刷新队列，按 cron 定时把所有用户重新入队，并暴露 Prometheus 指标。
//
//	recommendable-worker -config recommendable.yaml
//	recommendable-worker -config recommendable.yaml -refresh-all
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/rushteam/recommendable/config"
	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/engine"
	"github.com/rushteam/recommendable/metrics"
	"github.com/rushteam/recommendable/pkg/keys"
	"github.com/rushteam/recommendable/pkg/logger"
	"github.com/rushteam/recommendable/store"
	"github.com/rushteam/recommendable/worker"
)

func main() {
	configPath := flag.String("config", "recommendable.yaml", "path to the YAML config file")
	refreshAll := flag.Bool("refresh-all", false, "refresh every known user once and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *refreshAll); err != nil {
		log.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.File, log *logger.Logger, refreshAll bool) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := client.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}

	var s core.SetStore = store.NewRedisStoreWithClient(client)
	if cfg.Breaker.Enabled {
		bc := cfg.Breaker.BreakerConfig
		bc.OnStateChange = func(name string, from, to gobreaker.State) {
			log.Warn("store breaker state changed", "name", name, "from", from.String(), "to", to.String())
			m.SetBreakerState(int(to))
		}
		s = store.NewBreakerStore(s, bc)
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Error("close store", "error", err)
		}
	}()

	eng, err := engine.New(s, cfg.Engine, engine.WithLogger(log))
	if err != nil {
		return err
	}

	queue := worker.NewRedisQueue(client, cfg.Engine.Namespace, cfg.Worker.Queue)
	pool := worker.NewPool(queue, eng, cfg.Worker.Pool,
		worker.WithPoolLogger(log),
		worker.WithPoolMetrics(m),
	)

	if refreshAll {
		users, err := s.SMembers(ctx, keys.New(cfg.Engine.Namespace).Users())
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		log.Info("refreshing all users", "users", len(users))
		return pool.RefreshUsers(ctx, users)
	}

	srv := startMetricsServer(log, cfg.Metrics)

	var scheduler *worker.Scheduler
	if cfg.Worker.Schedule != "" {
		loc, err := time.LoadLocation(cfg.Worker.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", cfg.Worker.Timezone, err)
		}
		scheduler = worker.NewScheduler(s, cfg.Engine.Namespace, queue,
			worker.WithSchedulerLogger(log),
			worker.WithSchedulerMetrics(m),
			worker.WithLocation(loc),
		)
		if err := scheduler.Schedule(cfg.Worker.Schedule); err != nil {
			return err
		}
		scheduler.Start()
		log.Info("scheduler started", "schedule", cfg.Worker.Schedule, "timezone", cfg.Worker.Timezone)
	}

	log.Info("worker started",
		"namespace", cfg.Engine.Namespace,
		"queue", cfg.Worker.Queue,
		"concurrency", cfg.Worker.Pool.Concurrency)
	runErr := pool.Run(ctx)

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown", "error", err)
		}
	}
	log.Info("worker stopped")
	return runErr
}

// startMetricsServer 在独立 goroutine 中提供 /metrics 与 /health，Addr 为空时不启动。
func startMetricsServer(log *logger.Logger, cfg config.MetricsConfig) *http.Server {
	if cfg.Addr == "" {
		return nil
	}
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()
	log.Info("metrics server started", "addr", cfg.Addr, "path", path)
	return srv
}
