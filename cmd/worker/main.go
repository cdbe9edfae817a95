package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/salesboard/internal/app"
	"github.com/odyssey-erp/salesboard/internal/observability"
	"github.com/odyssey-erp/salesboard/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	enqueue := flag.String("enqueue", "", "enqueue a single job (refresh or warmup) and exit")
	warmYears := flag.Int("warm-years", 2, "number of recent sale years the warm-up job covers")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	if *enqueue != "" {
		os.Exit(runEnqueue(ctx, logger, redisOpts, *enqueue, *warmYears))
	}

	metrics := observability.NewMetrics()
	deps, err := app.Bootstrap(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("bootstrap", slog.Any("error", err))
		os.Exit(1)
	}
	defer deps.Close(logger)

	refreshJob := jobs.NewSnapshotRefreshJob(deps.Service, logger, metrics.Jobs())
	warmupJob := jobs.NewCacheWarmupJob(deps.Service, logger, metrics.Jobs())

	refreshTask, err := jobs.NewSnapshotRefreshTask("scheduled")
	if err != nil {
		logger.Error("build refresh task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewCacheWarmupTask(*warmYears)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSnapshotRefresh, Handler: refreshJob.Handle},
			{Type: jobs.TaskCacheWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RefreshCron, Task: refreshTask},
			{Spec: cfg.WarmupCron, Task: warmupTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("refresh_cron", cfg.RefreshCron), slog.String("warmup_cron", cfg.WarmupCron))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func runEnqueue(ctx context.Context, logger *slog.Logger, redisOpts asynq.RedisClientOpt, name string, years int) int {
	client := jobs.NewClient(redisOpts)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("client close", slog.Any("error", err))
		}
	}()

	var (
		info *asynq.TaskInfo
		err  error
	)
	switch name {
	case "refresh":
		info, err = client.EnqueueRefresh(ctx, "manual")
	case "warmup":
		info, err = client.EnqueueWarmup(ctx, years)
	default:
		logger.Error("unsupported job", slog.String("job", name))
		return 2
	}
	if err != nil {
		logger.Error("enqueue", slog.String("job", name), slog.Any("error", err))
		return 1
	}
	logger.Info("job enqueued", slog.String("job", name), slog.String("task_id", info.ID), slog.String("queue", info.Queue))
	return 0
}
