package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/salesboard/internal/analytics"
	jobmetrics "github.com/odyssey-erp/salesboard/internal/jobs"
)

const warmYearTimeout = 20 * time.Second

// Warmer precomputes dashboard views.
type Warmer interface {
	Options(ctx context.Context, category string) (analytics.Options, error)
	WarmUp(ctx context.Context, year int) error
}

// CacheWarmupJob pre-populates the view cache for the most recent sale years.
type CacheWarmupJob struct {
	Service Warmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewCacheWarmupJob wires dependencies for the warm-up handler.
func NewCacheWarmupJob(service Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheWarmupJob {
	return &CacheWarmupJob{
		Service: service,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes warm-up tasks.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("cache warmup: service not configured")
	}
	var payload CacheWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Years <= 0 {
		payload.Years = 1
	}

	tracker := j.metrics().Track(TaskCacheWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.log().With(slog.String("scope", payload.Scope))
	start := j.now()

	years, err := j.years(ctx, payload.Years)
	if err != nil {
		resultErr = err
		logger.Error("load warmup years", slog.Any("error", err))
		return resultErr
	}

	warmed := 0
	for _, year := range years {
		yearCtx, cancel := context.WithTimeout(ctx, warmYearTimeout)
		err := j.Service.WarmUp(yearCtx, year)
		cancel()
		if err != nil {
			resultErr = err
			logger.Error("warm year", slog.Int("year", year), slog.Any("error", err))
			break
		}
		warmed++
	}
	j.metrics().AddWarmedYears(payload.Scope, warmed)

	if resultErr == nil {
		logger.Info("completed cache warmup", slog.Int("years", warmed), slog.Duration("duration", j.now().Sub(start)))
	}
	return resultErr
}

// years returns up to limit sale years, newest first, always including the current year.
func (j *CacheWarmupJob) years(ctx context.Context, limit int) ([]int, error) {
	opts, err := j.Service.Options(ctx, "")
	if err != nil {
		return nil, err
	}
	current := j.now().Year()
	out := []int{current}
	for _, y := range opts.Years {
		if len(out) >= limit {
			break
		}
		if y != current {
			out = append(out, y)
		}
	}
	return out, nil
}

func (j *CacheWarmupJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCacheWarmup))
	}
	return slog.Default().With(slog.String("job", TaskCacheWarmup))
}

func (j *CacheWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CacheWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *CacheWarmupJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
