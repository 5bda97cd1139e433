package ingest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/wonny/sectorpulse/internal/contracts"
	"github.com/wonny/sectorpulse/pkg/logger"
)

// Intake buffers observation batches posted by the external ingestion
// adapter until the rollup job drains them at cadence. One pending batch
// per timeframe; observations are consumed and discarded, never persisted
// verbatim.
// ⭐ SSOT: 관측 데이터 수신 버퍼는 여기서만
type Intake struct {
	mu      sync.Mutex
	pending map[contracts.Timeframe]*contracts.ObservationBatch
	logger  *logger.Logger
}

// NewIntake creates an empty intake buffer
func NewIntake(log *logger.Logger) *Intake {
	return &Intake{
		pending: make(map[contracts.Timeframe]*contracts.ObservationBatch),
		logger:  log.Component("ingest.intake"),
	}
}

// Accept stores or extends the pending batch for the batch's timeframe.
// A missing batch id is assigned here so every run is correlatable.
// Same bucket timestamp appends; a newer bucket replaces the pending batch
// (the adapter has moved on, the stale bucket will never be rolled up).
func (in *Intake) Accept(batch *contracts.ObservationBatch) error {
	if err := validateEnvelope(batch); err != nil {
		return err
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	existing, ok := in.pending[batch.Timeframe]
	if !ok || batch.BucketTS.After(existing.BucketTS) {
		if ok {
			in.logger.WithFields(map[string]interface{}{
				"timeframe": batch.Timeframe,
				"stale_ts":  existing.BucketTS,
				"dropped":   existing.Count(),
			}).Warn("Replacing unconsumed stale batch")
		}
		in.pending[batch.Timeframe] = batch
		return nil
	}

	if batch.BucketTS.Equal(existing.BucketTS) {
		existing.Observations = append(existing.Observations, batch.Observations...)
		return nil
	}

	// Older than pending: the bucket has already been superseded
	in.logger.WithFields(map[string]interface{}{
		"timeframe": batch.Timeframe,
		"bucket_ts": batch.BucketTS,
	}).Warn("Rejected batch older than pending bucket")
	return nil
}

// Next drains and returns the pending batch for a timeframe.
// Returns contracts.ErrNoObservations when nothing is buffered.
func (in *Intake) Next(ctx context.Context, tf contracts.Timeframe) (*contracts.ObservationBatch, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	batch, ok := in.pending[tf]
	if !ok {
		return nil, contracts.ErrNoObservations
	}
	delete(in.pending, tf)
	return batch, nil
}

// Pending reports the buffered observation count per timeframe
func (in *Intake) Pending() map[contracts.Timeframe]int {
	in.mu.Lock()
	defer in.mu.Unlock()

	counts := make(map[contracts.Timeframe]int, len(in.pending))
	for tf, b := range in.pending {
		counts[tf] = b.Count()
	}
	return counts
}

// validateEnvelope checks the batch envelope and fills a missing batch id
func validateEnvelope(batch *contracts.ObservationBatch) error {
	if batch.BatchID == "" {
		batch.BatchID = uuid.NewString()
	}
	return batch.Validate()
}
