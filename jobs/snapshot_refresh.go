package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/salesboard/internal/analytics"
	jobmetrics "github.com/odyssey-erp/salesboard/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SnapshotRefresher reloads the snapshot served by the analytics service.
type SnapshotRefresher interface {
	Refresh(ctx context.Context) (analytics.SnapshotInfo, error)
}

// SnapshotRefreshJob reloads sales data on a schedule. The service announces the new cache
// version so HTTP instances reload their own snapshot.
type SnapshotRefreshJob struct {
	Service SnapshotRefresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSnapshotRefreshJob constructs the job handler.
func NewSnapshotRefreshJob(service SnapshotRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *SnapshotRefreshJob {
	return &SnapshotRefreshJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes the refresh.
func (j *SnapshotRefreshJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("snapshot refresh: service not configured")
	}
	var payload SnapshotRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskSnapshotRefresh)
	info, err := j.Service.Refresh(ctx)
	if err != nil {
		j.log().Error("refresh snapshot", slog.String("reason", payload.Reason), slog.Any("error", err))
		return tracker.End(err)
	}
	j.log().Info("snapshot refreshed",
		slog.String("reason", payload.Reason),
		slog.String("snapshot_id", info.ID.String()),
		slog.Int("sales", info.Sales),
		slog.Int("active_sales", info.ActiveSales),
	)
	return tracker.End(nil)
}

func (j *SnapshotRefreshJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SnapshotRefreshJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSnapshotRefresh))
	}
	return slog.Default().With(slog.String("job", TaskSnapshotRefresh))
}
