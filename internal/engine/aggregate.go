package engine

import (
	"math"
	"sort"

	"github.com/wonny/sectorpulse/internal/contracts"
	"github.com/wonny/sectorpulse/pkg/config"
)

// Aggregator combines filtered per-symbol signals into one bounded sector
// score. Volume-weighted so illiquid names cannot swing a sector. Output is
// deterministic for identical input sets regardless of order: observations
// are sorted by symbol before accumulation.
// ⭐ SSOT: 섹터 점수 집계는 여기서만
type Aggregator struct {
	scoreBound float64
	normScale  float64
}

// NewAggregator creates a new weighted sentiment aggregator
func NewAggregator(cfg config.EngineConfig) *Aggregator {
	return &Aggregator{
		scoreBound: cfg.ScoreBound,
		normScale:  cfg.NormScalePct,
	}
}

// Aggregate is the aggregator's output for one sector/batch
type Aggregate struct {
	Score        float64            // volume-weighted mean of normalized performance, clipped
	TotalVolume  int64              //
	BullishCount int                // symbols with positive performance
	BearishCount int                // symbols with negative performance
	Contribution map[string]float64 // per-symbol fraction of total weighted volume
}

// Aggregate computes the volume-weighted sector score from filtered
// observations. Empty input yields the neutral score (0).
func (a *Aggregator) Aggregate(obs []contracts.SymbolObservation) Aggregate {
	agg := Aggregate{
		Contribution: make(map[string]float64, len(obs)),
	}
	if len(obs) == 0 {
		return agg
	}

	// Sort by symbol for a stable accumulation order
	sorted := make([]contracts.SymbolObservation, len(obs))
	copy(sorted, obs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Symbol < sorted[j].Symbol
	})

	var weightSum, weightedScore float64
	for _, o := range sorted {
		// Zero-volume names carry a minimal weight so they still count
		w := float64(o.Volume)
		if w <= 0 {
			w = 1
		}

		normalized := math.Tanh(o.PctChange / a.normScale)
		weightedScore += w * normalized
		weightSum += w
		agg.TotalVolume += o.Volume

		switch {
		case o.PctChange > 0:
			agg.BullishCount++
		case o.PctChange < 0:
			agg.BearishCount++
		}
	}

	if weightSum > 0 {
		agg.Score = Clamp(weightedScore/weightSum, -a.scoreBound, a.scoreBound)
		for _, o := range sorted {
			w := float64(o.Volume)
			if w <= 0 {
				w = 1
			}
			// Accumulate so the fractions always sum to 1, even if a
			// caller hands in repeated symbols
			agg.Contribution[o.Symbol] += w / weightSum
		}
	}

	return agg
}

// WeightedScore scales the raw score by the statistical confidence factor so
// low-confidence batches do not present as strongly directional as
// high-confidence ones. Both variants are persisted; consumers choose.
func (a *Aggregator) WeightedScore(score, confidenceFactor float64) float64 {
	return Clamp(score*confidenceFactor, -a.scoreBound, a.scoreBound)
}
