package engine

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/sectorpulse/internal/contracts"
	"github.com/wonny/sectorpulse/pkg/config"
)

// GapperRanker selects a sector's top movers per batch. Fully deterministic:
// percent-change magnitude descending, then volume descending, then symbol
// ascending. Ranks are contiguous from 1 with no padding.
// ⭐ SSOT: 갭퍼 랭킹은 여기서만
type GapperRanker struct {
	topN int
}

// NewGapperRanker creates a new gapper ranker
func NewGapperRanker(cfg config.EngineConfig) *GapperRanker {
	return &GapperRanker{topN: cfg.GapperTopN}
}

// Rank emits the bullish and bearish gapper lists for one sector/batch.
// Works from the raw (pre-filter) observation set so a legitimate large
// mover still surfaces even when the aggregation filter dropped it.
func (r *GapperRanker) Rank(sector string, tf contracts.Timeframe, bucketTS time.Time, obs []contracts.SymbolObservation) (bullish, bearish []contracts.Gapper) {
	var up, down []contracts.SymbolObservation
	for _, o := range obs {
		switch {
		case o.PctChange > 0:
			up = append(up, o)
		case o.PctChange < 0:
			down = append(down, o)
		}
	}

	bullish = r.rankSide(sector, tf, bucketTS, contracts.GapperBullish, up)
	bearish = r.rankSide(sector, tf, bucketTS, contracts.GapperBearish, down)
	return bullish, bearish
}

// rankSide sorts one candidate set and emits up to topN ranked rows
func (r *GapperRanker) rankSide(sector string, tf contracts.Timeframe, bucketTS time.Time, gapType contracts.GapperType, candidates []contracts.SymbolObservation) []contracts.Gapper {
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		mi := math.Abs(candidates[i].PctChange)
		mj := math.Abs(candidates[j].PctChange)
		if mi != mj {
			return mi > mj
		}
		if candidates[i].Volume != candidates[j].Volume {
			return candidates[i].Volume > candidates[j].Volume
		}
		return candidates[i].Symbol < candidates[j].Symbol
	})

	n := r.topN
	if len(candidates) < n {
		n = len(candidates)
	}

	gappers := make([]contracts.Gapper, 0, n)
	for i := 0; i < n; i++ {
		c := candidates[i]
		gappers = append(gappers, contracts.Gapper{
			Sector:    sector,
			Timeframe: tf,
			BucketTS:  bucketTS,
			Type:      gapType,
			Rank:      i + 1,
			Symbol:    c.Symbol,
			PctChange: c.PctChange,
			Volume:    c.Volume,
			Price:     c.Price,
		})
	}

	return gappers
}
