package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/sectorpulse/internal/contracts"
	"github.com/wonny/sectorpulse/internal/engine"
	"github.com/wonny/sectorpulse/pkg/logger"
)

// Notifier pushes batch results to live subscribers
type Notifier interface {
	Broadcast(eventType string, payload interface{})
}

// RollupJob runs the sector aggregation pipeline for one timeframe.
// One instance is registered per timeframe; each tick drains that
// timeframe's pending intake batch and rolls it up.
// ⭐ SSOT: 롤업 스케줄은 타임프레임별 Job에서만
type RollupJob struct {
	timeframe contracts.Timeframe
	source    contracts.ObservationSource
	pipeline  *engine.Pipeline
	notifier  Notifier
	logger    *logger.Logger
}

// NewRollupJob creates a rollup job for one timeframe. notifier may be nil
// when no live push surface is running.
func NewRollupJob(tf contracts.Timeframe, source contracts.ObservationSource, pipeline *engine.Pipeline, notifier Notifier, log *logger.Logger) *RollupJob {
	return &RollupJob{
		timeframe: tf,
		source:    source,
		pipeline:  pipeline,
		notifier:  notifier,
		logger:    log,
	}
}

// Name returns the job name
func (j *RollupJob) Name() string {
	return fmt.Sprintf("rollup_%s", j.timeframe)
}

// Schedule returns the timeframe's cron cadence
func (j *RollupJob) Schedule() string {
	return j.timeframe.CronSchedule()
}

// Run drains the pending batch and executes the pipeline
func (j *RollupJob) Run(ctx context.Context) error {
	batch, err := j.source.Next(ctx, j.timeframe)
	if err != nil {
		if errors.Is(err, contracts.ErrNoObservations) {
			j.logger.WithField("timeframe", string(j.timeframe)).Info("No pending observations, rollup skipped")
			return nil
		}
		return fmt.Errorf("failed to drain intake: %w", err)
	}

	result, err := j.pipeline.Run(ctx, batch)
	if err != nil {
		return fmt.Errorf("rollup pipeline failed: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"timeframe":       string(j.timeframe),
		"batch_id":        result.BatchID,
		"observations":    result.Observations,
		"sectors":         result.Sectors,
		"neutral_sectors": result.NeutralSectors,
		"failed_sectors":  result.FailedSectors,
		"duration":        result.Duration,
	}).Info("Rollup completed")

	if j.notifier != nil {
		j.notifier.Broadcast("rollup_completed", result)
	}

	if result.FailedSectors > 0 {
		return fmt.Errorf("rollup finished with %d failed sectors", result.FailedSectors)
	}
	return nil
}
