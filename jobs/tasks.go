package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSnapshotRefresh reloads the sales snapshot and invalidates cached views.
	TaskSnapshotRefresh = "salesboard:snapshot:refresh"
	// TaskCacheWarmup precomputes the default dashboard views.
	TaskCacheWarmup = "salesboard:cache:warmup"
)

// SnapshotRefreshPayload records why a refresh was requested.
type SnapshotRefreshPayload struct {
	Reason string `json:"reason"`
}

// CacheWarmupPayload selects how many of the most recent sale years get warmed.
type CacheWarmupPayload struct {
	Years int    `json:"years"`
	Scope string `json:"scope"`
}

// NewSnapshotRefreshTask constructs a refresh task.
func NewSnapshotRefreshTask(reason string) (*asynq.Task, error) {
	if reason == "" {
		reason = "scheduled"
	}
	body, err := json.Marshal(SnapshotRefreshPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSnapshotRefresh, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewCacheWarmupTask constructs a warm-up task covering the latest years.
func NewCacheWarmupTask(years int) (*asynq.Task, error) {
	if years <= 0 {
		years = 1
	}
	body, err := json.Marshal(CacheWarmupPayload{Years: years, Scope: "default"})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheWarmup, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
