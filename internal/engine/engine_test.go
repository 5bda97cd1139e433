package engine

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sectorpulse/internal/contracts"
	"github.com/wonny/sectorpulse/pkg/config"
	"github.com/wonny/sectorpulse/pkg/logger"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		MinOutlierSample: 5,
		MinWarnSample:    8,
		Alpha:            0.05,
		OutlierSigma:     3.0,
		GapperTopN:       3,
		ScoreBound:       1.0,
		NormScalePct:     5.0,
		ConfidenceFloor:  0.2,
		Workers:          4,
	}
}

func testLog() *logger.Logger {
	return logger.New(&config.Config{Env: "test", LogLevel: "error", LogFormat: "console"})
}

func obs(symbol string, pct float64, volume int64) contracts.SymbolObservation {
	return contracts.SymbolObservation{
		Symbol:    symbol,
		Timestamp: time.Now(),
		Price:     100,
		Volume:    volume,
		PctChange: pct,
	}
}

func TestOutlierFilter_RemovesFarObservations(t *testing.T) {
	f := NewOutlierFilter(testEngineConfig(), testLog())

	// Tight cluster around +1% plus one absurd spike. The fence uses the
	// full-sample stddev, so the cluster must be large enough for the spike
	// to clear 3 sigma despite inflating the spread itself.
	cluster := []float64{0.8, 0.9, 1.0, 1.1, 1.2, 0.9, 1.0, 1.1, 1.0, 0.95, 1.05}
	set := make([]contracts.SymbolObservation, 0, len(cluster)+1)
	for i, pct := range cluster {
		set = append(set, obs(fmt.Sprintf("S%02d", i), pct, 1000))
	}
	set = append(set, obs("SPIKE", 50.0, 1000))

	result := f.Filter("tech", set)

	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.Removed)
	require.Len(t, result.Kept, len(cluster))
	for _, o := range result.Kept {
		assert.NotEqual(t, "SPIKE", o.Symbol)
	}
}

func TestOutlierFilter_SkipsSmallSamples(t *testing.T) {
	f := NewOutlierFilter(testEngineConfig(), testLog())

	set := []contracts.SymbolObservation{
		obs("A", 1.0, 1000),
		obs("B", 99.0, 1000), // would be an outlier with more data
	}

	result := f.Filter("tech", set)

	assert.True(t, result.Skipped)
	assert.Equal(t, 0, result.Removed)
	assert.Len(t, result.Kept, 2)
}

func TestOutlierFilter_DegenerateStdDevKeepsAll(t *testing.T) {
	f := NewOutlierFilter(testEngineConfig(), testLog())

	set := []contracts.SymbolObservation{
		obs("A", 2.0, 1), obs("B", 2.0, 1), obs("C", 2.0, 1),
		obs("D", 2.0, 1), obs("E", 2.0, 1),
	}

	result := f.Filter("tech", set)

	assert.False(t, result.Skipped)
	assert.Equal(t, 0, result.Removed)
	assert.Len(t, result.Kept, 5)
}

func TestEvaluator_SignificantDirectionalSample(t *testing.T) {
	e := NewEvaluator(testEngineConfig())

	// Consistently positive, tight spread: clearly not neutral
	values := []float64{1.8, 2.1, 1.9, 2.2, 2.0, 1.7, 2.3, 2.0, 1.9, 2.1}
	a := e.Evaluate(values, 0)

	assert.Equal(t, 10, a.SampleSize)
	assert.False(t, a.SampleWarning)
	assert.True(t, a.SignificancePass)
	assert.Greater(t, a.ConfidenceLevel, 0.5)
	assert.LessOrEqual(t, a.ConfidenceLevel, 1.0)
}

func TestEvaluator_NoisySampleFailsSignificance(t *testing.T) {
	e := NewEvaluator(testEngineConfig())

	// Mean near zero, large spread
	values := []float64{3.0, -2.8, 1.5, -1.7, 2.2, -2.0, 0.4, -0.6}
	a := e.Evaluate(values, 0)

	assert.False(t, a.SignificancePass)
	assert.GreaterOrEqual(t, a.ConfidenceLevel, testEngineConfig().ConfidenceFloor)
}

func TestEvaluator_SampleWarningBelowThreshold(t *testing.T) {
	e := NewEvaluator(testEngineConfig())

	a := e.Evaluate([]float64{1.0, 1.2, 0.8}, 0)
	assert.True(t, a.SampleWarning)

	b := e.Evaluate([]float64{1, 1, 1, 1, 1, 1, 1, 1}, 0)
	assert.False(t, b.SampleWarning)
}

func TestEvaluator_ConfidenceMonotoneInSampleSize(t *testing.T) {
	e := NewEvaluator(testEngineConfig())

	// Same underlying distribution, growing sample
	base := []float64{1.9, 2.1, 2.0, 1.8, 2.2, 2.0, 1.9, 2.1}
	var prev float64
	for n := 2; n <= len(base); n++ {
		a := e.Evaluate(base[:n], 0)
		assert.GreaterOrEqual(t, a.ConfidenceLevel, prev,
			"confidence must not degrade as the sample grows (n=%d)", n)
		prev = a.ConfidenceLevel
	}
}

func TestEvaluator_EmptySample(t *testing.T) {
	cfg := testEngineConfig()
	e := NewEvaluator(cfg)

	a := e.Evaluate(nil, 0)

	assert.Equal(t, 0, a.SampleSize)
	assert.True(t, a.SampleWarning)
	assert.False(t, a.SignificancePass)
	assert.Equal(t, cfg.ConfidenceFloor, a.ConfidenceLevel)
}

func TestEvaluator_DataQualityPenalizesOutliers(t *testing.T) {
	e := NewEvaluator(testEngineConfig())

	clean := e.Evaluate([]float64{1, 1.1, 0.9, 1, 1.2, 0.8, 1, 1.1}, 0)
	dirty := e.Evaluate([]float64{1, 1.1, 0.9, 1, 1.2, 0.8, 1, 1.1}, 4)

	assert.Greater(t, clean.DataQuality, dirty.DataQuality)
}

func TestAggregator_VolumeWeighting(t *testing.T) {
	a := NewAggregator(testEngineConfig())

	// One heavy positive name vs a light negative one
	agg := a.Aggregate([]contracts.SymbolObservation{
		obs("HEAVY", 2.0, 9_000_000),
		obs("LIGHT", -2.0, 1_000),
	})

	assert.Greater(t, agg.Score, 0.0)
	assert.Equal(t, 1, agg.BullishCount)
	assert.Equal(t, 1, agg.BearishCount)
	assert.Equal(t, int64(9_001_000), agg.TotalVolume)
	assert.Greater(t, agg.Contribution["HEAVY"], agg.Contribution["LIGHT"])
	assert.InDelta(t, 1.0, agg.Contribution["HEAVY"]+agg.Contribution["LIGHT"], 1e-9)
}

func TestAggregator_ScoreBounded(t *testing.T) {
	a := NewAggregator(testEngineConfig())

	agg := a.Aggregate([]contracts.SymbolObservation{
		obs("A", 500.0, 100),
		obs("B", 400.0, 100),
	})

	assert.LessOrEqual(t, agg.Score, 1.0)
	assert.GreaterOrEqual(t, agg.Score, -1.0)
}

func TestAggregator_DeterministicUnderShuffle(t *testing.T) {
	a := NewAggregator(testEngineConfig())

	set := []contracts.SymbolObservation{
		obs("A", 1.4, 100), obs("B", -0.7, 2500), obs("C", 3.2, 900),
		obs("D", 0.1, 40), obs("E", -2.9, 7000), obs("F", 0.8, 300),
	}

	want := a.Aggregate(set)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]contracts.SymbolObservation, len(set))
		copy(shuffled, set)
		rng.Shuffle(len(shuffled), func(x, y int) {
			shuffled[x], shuffled[y] = shuffled[y], shuffled[x]
		})

		got := a.Aggregate(shuffled)
		assert.Equal(t, want.Score, got.Score)
		assert.Equal(t, want.TotalVolume, got.TotalVolume)
	}
}

func TestAggregator_ZeroVolumeStillCounts(t *testing.T) {
	a := NewAggregator(testEngineConfig())

	agg := a.Aggregate([]contracts.SymbolObservation{obs("A", 2.0, 0)})

	assert.Greater(t, agg.Score, 0.0)
	assert.Equal(t, 1, agg.BullishCount)
}

func TestAggregator_RepeatedSymbolContributionsAccumulate(t *testing.T) {
	a := NewAggregator(testEngineConfig())

	// Callers dedup upstream, but repeated symbols must still leave the
	// contribution fractions summing to 1
	agg := a.Aggregate([]contracts.SymbolObservation{
		obs("AAA", 2.0, 600),
		obs("AAA", 2.0, 400),
		obs("BBB", -1.0, 1000),
	})

	var sum float64
	for _, c := range agg.Contribution {
		sum += c
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 0.5, agg.Contribution["AAA"], 1e-9)
	assert.InDelta(t, 0.5, agg.Contribution["BBB"], 1e-9)
}

func TestAggregator_EmptyIsNeutral(t *testing.T) {
	a := NewAggregator(testEngineConfig())

	agg := a.Aggregate(nil)
	assert.Equal(t, 0.0, agg.Score)
	assert.Empty(t, agg.Contribution)
}

func TestWeightedScore_ScalesByConfidence(t *testing.T) {
	a := NewAggregator(testEngineConfig())

	assert.InDelta(t, 0.3, a.WeightedScore(0.6, 0.5), 1e-9)
	assert.InDelta(t, -0.15, a.WeightedScore(-0.3, 0.5), 1e-9)
	assert.LessOrEqual(t, a.WeightedScore(5.0, 1.0), 1.0)
}

func TestGapperRanker_OrderingAndTieBreaks(t *testing.T) {
	r := NewGapperRanker(testEngineConfig())
	now := time.Now().UTC()

	set := []contracts.SymbolObservation{
		obs("AAA", 12.0, 500),
		obs("BBB", 9.0, 900),
		obs("CCC", 9.0, 900), // full tie with BBB, symbol breaks it
		obs("DDD", 5.0, 100),
		obs("EEE", 2.0, 9999),
		obs("NEG", -4.0, 100),
	}

	bullish, bearish := r.Rank("tech", contracts.Timeframe1Day, now, set)

	require.Len(t, bullish, 3)
	assert.Equal(t, "AAA", bullish[0].Symbol)
	assert.Equal(t, "BBB", bullish[1].Symbol)
	assert.Equal(t, "CCC", bullish[2].Symbol)
	for i, g := range bullish {
		assert.Equal(t, i+1, g.Rank)
		assert.Equal(t, contracts.GapperBullish, g.Type)
	}

	require.Len(t, bearish, 1)
	assert.Equal(t, "NEG", bearish[0].Symbol)
	assert.Equal(t, 1, bearish[0].Rank)
}

func TestGapperRanker_VolumeTieBreak(t *testing.T) {
	r := NewGapperRanker(testEngineConfig())
	now := time.Now().UTC()

	set := []contracts.SymbolObservation{
		obs("LOW", 7.0, 100),
		obs("HIGH", 7.0, 100000),
	}

	bullish, _ := r.Rank("tech", contracts.Timeframe1Day, now, set)

	require.Len(t, bullish, 2)
	assert.Equal(t, "HIGH", bullish[0].Symbol)
	assert.Equal(t, "LOW", bullish[1].Symbol)
}

func TestGapperRanker_NoPadding(t *testing.T) {
	r := NewGapperRanker(testEngineConfig())
	now := time.Now().UTC()

	bullish, bearish := r.Rank("tech", contracts.Timeframe1Day, now,
		[]contracts.SymbolObservation{obs("ONLY", 3.0, 10)})

	assert.Len(t, bullish, 1)
	assert.Empty(t, bearish)
}

func TestNormInv_KnownQuantiles(t *testing.T) {
	assert.InDelta(t, 1.6449, NormInv(0.95), 1e-3)
	assert.InDelta(t, 1.9600, NormInv(0.975), 1e-3)
	assert.InDelta(t, 2.3263, NormInv(0.99), 1e-3)
	assert.InDelta(t, -NormInv(0.975), NormInv(0.025), 1e-3)
}

func TestCriticalZ(t *testing.T) {
	// Two-tailed alpha=0.05 → z for p=0.975
	assert.InDelta(t, 1.96, CriticalZ(0.05), 1e-2)
}

func TestStdDev_SampleVariance(t *testing.T) {
	// n-1 denominator
	assert.InDelta(t, 1.0, StdDev([]float64{1, 2, 3}), 1e-9)
	assert.Equal(t, 0.0, StdDev([]float64{5}))
	assert.False(t, math.IsNaN(StdDev(nil)))
}
