package engine

import (
	"math"

	"github.com/wonny/sectorpulse/internal/contracts"
	"github.com/wonny/sectorpulse/pkg/config"
	"github.com/wonny/sectorpulse/pkg/logger"
)

// OutlierFilter removes statistically anomalous per-symbol readings before
// aggregation. Below the minimum sample size the distribution cannot be
// characterized, so filtering is skipped entirely and the caller raises the
// sample-size warning instead.
// ⭐ SSOT: 이상치 제거는 여기서만
type OutlierFilter struct {
	minSample int
	sigma     float64
	logger    *logger.Logger
}

// NewOutlierFilter creates a new outlier filter
func NewOutlierFilter(cfg config.EngineConfig, log *logger.Logger) *OutlierFilter {
	return &OutlierFilter{
		minSample: cfg.MinOutlierSample,
		sigma:     cfg.OutlierSigma,
		logger:    log.Component("engine.outlier"),
	}
}

// FilterResult holds the filtered observation set and the removal count
type FilterResult struct {
	Kept    []contracts.SymbolObservation
	Removed int
	Skipped bool // true when the sample was too small to filter
}

// Filter applies a mean ± k·stddev fence to one sector's performance values.
// Always returns a (possibly unfiltered, possibly empty) set.
func (f *OutlierFilter) Filter(sector string, obs []contracts.SymbolObservation) FilterResult {
	if len(obs) < f.minSample {
		return FilterResult{Kept: obs, Removed: 0, Skipped: true}
	}

	values := make([]float64, len(obs))
	for i, o := range obs {
		values[i] = o.PctChange
	}

	mean := Mean(values)
	std := StdDev(values)
	if std == 0 {
		// Degenerate sample, nothing can be an outlier
		return FilterResult{Kept: obs}
	}

	fence := f.sigma * std
	kept := make([]contracts.SymbolObservation, 0, len(obs))
	removed := 0
	for _, o := range obs {
		if math.Abs(o.PctChange-mean) > fence {
			removed++
			continue
		}
		kept = append(kept, o)
	}

	if removed > 0 {
		f.logger.WithFields(map[string]interface{}{
			"sector":  sector,
			"removed": removed,
			"kept":    len(kept),
			"mean":    mean,
			"stddev":  std,
		}).Debug("Removed outlier observations")
	}

	return FilterResult{Kept: kept, Removed: removed}
}
