package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/sectorpulse/internal/accuracy"
	"github.com/wonny/sectorpulse/internal/contracts"
	"github.com/wonny/sectorpulse/pkg/logger"
)

// AccuracyJob backfills rolling accuracy and consistency on recent
// metrics rows, once realized follow-up buckets exist
type AccuracyJob struct {
	backfiller *accuracy.Backfiller
	logger     *logger.Logger
}

// NewAccuracyJob creates a new accuracy backfill job
func NewAccuracyJob(backfiller *accuracy.Backfiller, log *logger.Logger) *AccuracyJob {
	return &AccuracyJob{backfiller: backfiller, logger: log}
}

// Name returns the job name
func (j *AccuracyJob) Name() string {
	return "accuracy_backfill"
}

// Schedule returns the cron schedule (every day at 5 PM, after the daily rollup)
func (j *AccuracyJob) Schedule() string {
	return "0 0 17 * * *"
}

// Run backfills every timeframe
func (j *AccuracyJob) Run(ctx context.Context) error {
	total := 0
	for _, tf := range contracts.AllTimeframes() {
		n, err := j.backfiller.Run(ctx, tf)
		if err != nil {
			return fmt.Errorf("accuracy backfill for %s: %w", tf, err)
		}
		total += n
	}

	j.logger.WithField("updated", total).Info("Accuracy backfill completed")
	return nil
}
