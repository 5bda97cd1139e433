package engine

import (
	"math"

	"github.com/wonny/sectorpulse/pkg/config"
)

// Evaluator computes the statistical quality assessment for one sector's
// filtered batch: significance vs a neutral null, confidence level, and a
// composite data-quality score. Pure functions of the batch's own sample;
// prior batches are never consulted, so reruns are idempotent.
// ⭐ SSOT: 유의성/품질 평가는 여기서만
type Evaluator struct {
	minWarnSample int
	alpha         float64
	floor         float64
}

// NewEvaluator creates a new significance evaluator
func NewEvaluator(cfg config.EngineConfig) *Evaluator {
	return &Evaluator{
		minWarnSample: cfg.MinWarnSample,
		alpha:         cfg.Alpha,
		floor:         cfg.ConfidenceFloor,
	}
}

// Assessment is the evaluator's output for one sector/batch
type Assessment struct {
	SampleSize       int
	SampleWarning    bool
	SignificancePass bool
	TStat            float64
	ConfidenceLevel  float64 // [floor, 1], monotone non-decreasing in n
	DataQuality      float64 // [0, 1] composite
}

// Evaluate assesses the filtered performance values of one sector.
// removed is the outlier count dropped before aggregation.
func (e *Evaluator) Evaluate(values []float64, removed int) Assessment {
	n := len(values)
	a := Assessment{
		SampleSize:    n,
		SampleWarning: n < e.minWarnSample,
	}

	// One-sample test against the neutral (zero) null hypothesis:
	// t = mean / (s / sqrt(n)), two-tailed at the configured alpha.
	if n >= 2 {
		mean := Mean(values)
		std := StdDev(values)
		if std > 0 {
			a.TStat = mean / (std / math.Sqrt(float64(n)))
		} else if mean != 0 {
			// Identical non-zero values: unambiguously away from neutral
			a.TStat = math.Inf(sign(mean))
		}
		a.SignificancePass = math.Abs(a.TStat) > CriticalZ(e.alpha)
	}

	a.ConfidenceLevel = e.confidence(n, a.TStat)
	a.DataQuality = e.dataQuality(a, removed)

	return a
}

// confidence maps sample size and test strength to [floor, 1].
// n/(n+8) saturates with sample size; tanh(|t|/z) rewards strong statistics.
// Holding t constant, the result is monotone non-decreasing in n; shrinking
// samples degrade toward the floor regardless of test outcome.
func (e *Evaluator) confidence(n int, tStat float64) float64 {
	if n == 0 {
		return e.floor
	}

	sizeFactor := float64(n) / (float64(n) + 8.0)

	strength := math.Tanh(math.Abs(tStat) / CriticalZ(e.alpha))
	if math.IsNaN(strength) {
		strength = 0
	}

	conf := e.floor + (1-e.floor)*sizeFactor*strength

	// A reasonable sample deserves some trust even with a weak statistic
	minForSize := e.floor + (1-e.floor)*0.25*sizeFactor
	if conf < minForSize {
		conf = minForSize
	}

	return Clamp(conf, e.floor, 1.0)
}

// dataQuality combines confidence, outlier ratio and the sample warning
// into one bounded scalar for ranking signal trustworthiness across sectors.
// Weights: confidence 50%, cleanliness 30%, sample adequacy 20%.
func (e *Evaluator) dataQuality(a Assessment, removed int) float64 {
	raw := a.SampleSize + removed

	cleanliness := 1.0
	if raw > 0 {
		cleanliness = 1.0 - float64(removed)/float64(raw)
	}

	adequacy := 1.0
	if a.SampleWarning {
		adequacy = 0.0
	}

	score := a.ConfidenceLevel*0.5 + cleanliness*0.3 + adequacy*0.2
	return Clamp(score, 0, 1)
}

func sign(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}
