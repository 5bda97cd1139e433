package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/sectorpulse/internal/store"
	"github.com/wonny/sectorpulse/pkg/logger"
)

// LifecycleJob runs the daily compression and retention sweep
type LifecycleJob struct {
	lifecycle *store.Lifecycle
	logger    *logger.Logger
}

// NewLifecycleJob creates a new lifecycle job
func NewLifecycleJob(lifecycle *store.Lifecycle, log *logger.Logger) *LifecycleJob {
	return &LifecycleJob{lifecycle: lifecycle, logger: log}
}

// Name returns the job name
func (j *LifecycleJob) Name() string {
	return "lifecycle_sweep"
}

// Schedule returns the cron schedule (every day at 3 AM, off market hours)
func (j *LifecycleJob) Schedule() string {
	return "0 0 3 * * *"
}

// Run executes one sweep across every timeframe
func (j *LifecycleJob) Run(ctx context.Context) error {
	results, err := j.lifecycle.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("lifecycle sweep: %w", err)
	}

	var compressed, deleted int64
	for _, r := range results {
		compressed += r.Compressed
		deleted += r.Deleted
	}

	j.logger.WithFields(map[string]interface{}{
		"timeframes": len(results),
		"compressed": compressed,
		"deleted":    deleted,
	}).Info("Lifecycle sweep completed")

	return nil
}
