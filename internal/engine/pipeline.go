package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wonny/sectorpulse/internal/contracts"
	"github.com/wonny/sectorpulse/pkg/config"
	"github.com/wonny/sectorpulse/pkg/logger"
)

// Pipeline turns one observation batch into persisted, quality-scored sector
// units. Sectors are independent, so they run in parallel across a bounded
// worker pool; within a sector the filter → evaluate → aggregate → rank
// stages run single-threaded.
// ⭐ SSOT: 배치 파이프라인 조율은 여기서만
type Pipeline struct {
	filter     *OutlierFilter
	evaluator  *Evaluator
	aggregator *Aggregator
	ranker     *GapperRanker

	repo     contracts.SignalRepository
	universe contracts.UniverseIndex

	workers    int
	maxRetries int
	retryDelay time.Duration

	logger *logger.Logger
}

// NewPipeline creates a new batch pipeline
func NewPipeline(
	cfg config.EngineConfig,
	repo contracts.SignalRepository,
	universe contracts.UniverseIndex,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		filter:     NewOutlierFilter(cfg, log),
		evaluator:  NewEvaluator(cfg),
		aggregator: NewAggregator(cfg),
		ranker:     NewGapperRanker(cfg),
		repo:       repo,
		universe:   universe,
		workers:    cfg.Workers,
		maxRetries: 3,
		retryDelay: 500 * time.Millisecond,
		logger:     log.Component("engine.pipeline"),
	}
}

// SectorOutcome records how one sector fared in a run
type SectorOutcome struct {
	Sector string                `json:"sector"`
	Status contracts.BatchStatus `json:"status"`
	Error  string                `json:"error,omitempty"`
}

// RunResult summarizes one batch run
type RunResult struct {
	BatchID          string              `json:"batch_id"`
	Timeframe        contracts.Timeframe `json:"timeframe"`
	BucketTS         time.Time           `json:"bucket_ts"`
	Observations     int                 `json:"observations"`
	DroppedInvalid   int                 `json:"dropped_invalid"`
	DroppedUniverse  int                 `json:"dropped_universe"`
	DroppedDuplicate int                 `json:"dropped_duplicate"`
	Sectors          int                 `json:"sectors"`
	NeutralSectors   int                 `json:"neutral_sectors"`
	FailedSectors    int                 `json:"failed_sectors"`
	Outcomes         []SectorOutcome     `json:"outcomes"`
	Duration         time.Duration       `json:"duration"`
}

// Run processes one observation batch end to end. Per-symbol validation
// failures and empty sectors are absorbed locally; only an invalid batch
// envelope is returned as an error.
func (p *Pipeline) Run(ctx context.Context, batch *contracts.ObservationBatch) (*RunResult, error) {
	start := time.Now()

	if err := batch.Validate(); err != nil {
		return nil, err
	}

	result := &RunResult{
		BatchID:      batch.BatchID,
		Timeframe:    batch.Timeframe,
		BucketTS:     batch.BucketTS,
		Observations: batch.Count(),
	}

	bySector := p.partition(batch, result)

	// Every known sector produces a record, observed or not
	sectors := p.universe.Sectors()
	result.Sectors = len(sectors)

	p.logger.WithFields(map[string]interface{}{
		"batch_id":     batch.BatchID,
		"timeframe":    batch.Timeframe,
		"bucket_ts":    batch.BucketTS.Format(time.RFC3339),
		"observations": result.Observations,
		"sectors":      len(sectors),
	}).Info("Starting batch run")

	type job struct {
		sector string
		obs    []contracts.SymbolObservation
	}

	jobs := make(chan job)
	outcomes := make(chan SectorOutcome, len(sectors))

	var wg sync.WaitGroup
	workers := p.workers
	if workers > len(sectors) {
		workers = len(sectors)
	}
	if workers < 1 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				outcomes <- p.runSector(ctx, batch, j.sector, j.obs)
			}
		}()
	}

	for _, sector := range sectors {
		jobs <- job{sector: sector, obs: bySector[sector]}
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	for o := range outcomes {
		result.Outcomes = append(result.Outcomes, o)
		switch o.Status {
		case contracts.BatchStatusNeutral:
			result.NeutralSectors++
		case contracts.BatchStatusFailed:
			result.FailedSectors++
		}
	}

	result.Duration = time.Since(start)

	p.logger.WithFields(map[string]interface{}{
		"batch_id": batch.BatchID,
		"sectors":  result.Sectors,
		"neutral":  result.NeutralSectors,
		"failed":   result.FailedSectors,
		"duration": result.Duration,
	}).Info("Batch run completed")

	return result, nil
}

// partition validates observations and groups them by sector. The universe
// index is the authority on sector membership; inactive and unmapped symbols
// are excluded before any statistics run. A symbol appears at most once per
// batch: adapter reposts into the same bucket duplicate observations, and a
// duplicate would double-count in the weighted sum and surface twice in a
// gapper list. The newest reading per symbol wins.
func (p *Pipeline) partition(batch *contracts.ObservationBatch, result *RunResult) map[string][]contracts.SymbolObservation {
	latest := make(map[string]contracts.SymbolObservation)

	for _, o := range batch.Observations {
		if err := o.Validate(); err != nil {
			result.DroppedInvalid++
			p.logger.WithFields(map[string]interface{}{
				"batch_id": batch.BatchID,
				"symbol":   o.Symbol,
				"error":    err.Error(),
			}).Warn("Dropped invalid observation")
			continue
		}

		sector, active, ok := p.universe.Lookup(o.Symbol)
		if !ok || !active {
			result.DroppedUniverse++
			continue
		}

		o.Sector = sector

		if prev, ok := latest[o.Symbol]; ok {
			result.DroppedDuplicate++
			if o.Timestamp.Before(prev.Timestamp) {
				continue
			}
		}
		latest[o.Symbol] = o
	}

	bySector := make(map[string][]contracts.SymbolObservation)
	for _, o := range latest {
		bySector[o.Sector] = append(bySector[o.Sector], o)
	}

	return bySector
}

// runSector executes the four-stage pipeline for one sector and persists the
// resulting unit atomically, retrying writes with bounded backoff.
func (p *Pipeline) runSector(ctx context.Context, batch *contracts.ObservationBatch, sector string, obs []contracts.SymbolObservation) SectorOutcome {
	unit := p.computeSector(batch, sector, obs)

	if err := p.saveWithRetry(ctx, unit); err != nil {
		p.logger.WithError(err).WithFields(map[string]interface{}{
			"batch_id": batch.BatchID,
			"sector":   sector,
		}).Error("Sector unit persistence failed after retries")
		return SectorOutcome{
			Sector: sector,
			Status: contracts.BatchStatusFailed,
			Error:  err.Error(),
		}
	}

	return SectorOutcome{Sector: sector, Status: unit.Metrics.Status}
}

// computeSector runs filter → evaluate → aggregate → rank for one sector.
// A sector with zero qualifying observations still yields a neutral default
// unit; sectors are never silently dropped.
func (p *Pipeline) computeSector(batch *contracts.ObservationBatch, sector string, obs []contracts.SymbolObservation) *contracts.SectorUnit {
	status := contracts.BatchStatusComputed
	if len(obs) == 0 {
		status = contracts.BatchStatusNeutral
	}

	// 1. Outlier filter
	filtered := p.filter.Filter(sector, obs)

	values := make([]float64, len(filtered.Kept))
	for i, o := range filtered.Kept {
		values[i] = o.PctChange
	}

	// 2. Significance & sample quality
	assessment := p.evaluator.Evaluate(values, filtered.Removed)
	if filtered.Skipped && len(obs) > 0 {
		assessment.SampleWarning = true
	}

	// 3. Weighted aggregation
	agg := p.aggregator.Aggregate(filtered.Kept)
	confidenceFactor := assessment.ConfidenceLevel
	weighted := p.aggregator.WeightedScore(agg.Score, confidenceFactor)

	// 4. Gapper ranking (raw set: the fence must not hide real movers)
	bullish, bearish := p.ranker.Rank(sector, batch.Timeframe, batch.BucketTS, obs)
	gappers := append(bullish, bearish...)

	return &contracts.SectorUnit{
		Sentiment: contracts.SectorSentiment{
			Sector:        sector,
			Timeframe:     batch.Timeframe,
			BucketTS:      batch.BucketTS,
			BatchID:       batch.BatchID,
			Score:         agg.Score,
			WeightedScore: weighted,
		},
		Metrics: contracts.SignalMetrics{
			Sector:             sector,
			Timeframe:          batch.Timeframe,
			BucketTS:           batch.BucketTS,
			BatchID:            batch.BatchID,
			Score:              agg.Score,
			ConfidenceLevel:    assessment.ConfidenceLevel,
			SampleSize:         assessment.SampleSize,
			OutliersRemoved:    filtered.Removed,
			SignificancePass:   assessment.SignificancePass,
			SampleWarning:      assessment.SampleWarning,
			TotalVolume:        agg.TotalVolume,
			BullishCount:       agg.BullishCount,
			BearishCount:       agg.BearishCount,
			VolumeContribution: agg.Contribution,
			ConfidenceFactor:   confidenceFactor,
			DataQuality:        assessment.DataQuality,
			Status:             status,
		},
		Gappers: gappers,
	}
}

// saveWithRetry persists one unit with bounded backoff. The unit is atomic
// at the store level; a failure here never partially writes.
func (p *Pipeline) saveWithRetry(ctx context.Context, unit *contracts.SectorUnit) error {
	var lastErr error
	delay := p.retryDelay

	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		lastErr = p.repo.SaveUnit(ctx, unit)
		if lastErr == nil {
			return nil
		}

		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			break
		}

		if attempt < p.maxRetries {
			p.logger.WithFields(map[string]interface{}{
				"sector":  unit.Sentiment.Sector,
				"attempt": attempt,
				"error":   lastErr.Error(),
			}).Warn("Unit write failed, retrying")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return &contracts.WriteError{
		Sector:    unit.Sentiment.Sector,
		Timeframe: unit.Sentiment.Timeframe,
		Attempts:  p.maxRetries,
		Err:       lastErr,
	}
}
