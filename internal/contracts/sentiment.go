package contracts

import "time"

// BatchStatus distinguishes how a sector's record for one batch came to be.
// A failed sector must be visibly different from a computed-but-neutral one.
type BatchStatus string

const (
	BatchStatusComputed BatchStatus = "computed" // aggregated from observations
	BatchStatusNeutral  BatchStatus = "neutral"  // zero qualifying observations, neutral default
	BatchStatusFailed   BatchStatus = "failed"   // persistence retries exhausted
)

// SectorSentiment is the headline record: one per sector per timeframe per
// batch timestamp. Primary key (sector, bucket_ts); reruns upsert.
type SectorSentiment struct {
	Sector        string    `json:"sector"`
	Timeframe     Timeframe `json:"timeframe"`
	BucketTS      time.Time `json:"bucket_ts"`
	BatchID       string    `json:"batch_id"`
	Score         float64   `json:"score"`          // bounded, volume-weighted
	WeightedScore float64   `json:"weighted_score"` // confidence-scaled variant
}

// SignalMetrics is the extended quality record written alongside each
// sentiment row. Rolling accuracy fields are retrospective: nil until the
// backfill pass evaluates them (nil = not yet evaluated, not zero).
type SignalMetrics struct {
	Sector           string    `json:"sector"`
	Timeframe        Timeframe `json:"timeframe"`
	BucketTS         time.Time `json:"bucket_ts"`
	BatchID          string    `json:"batch_id"`
	Score            float64   `json:"score"`
	ConfidenceLevel  float64   `json:"confidence_level"` // [0, 1]
	SampleSize       int       `json:"sample_size"`      // post-filter count
	OutliersRemoved  int       `json:"outliers_removed"`
	SignificancePass bool      `json:"significance_test_passed"`
	SampleWarning    bool      `json:"sample_size_warning"`
	TotalVolume      int64     `json:"total_volume"`
	BullishCount     int       `json:"bullish_count"`
	BearishCount     int       `json:"bearish_count"`

	// Per-symbol fraction of total weighted volume
	VolumeContribution map[string]float64 `json:"volume_weighted_contribution"`

	ConfidenceFactor float64     `json:"statistical_confidence_factor"`
	DataQuality      float64     `json:"data_quality_score"`
	Status           BatchStatus `json:"batch_status"`

	// Backfilled by the accuracy pass; nil until evaluated
	RollingAccuracy7D  *float64 `json:"rolling_accuracy_7d,omitempty"`
	RollingAccuracy30D *float64 `json:"rolling_accuracy_30d,omitempty"`
	ConsistencyScore   *float64 `json:"signal_consistency_score,omitempty"`
}

// GapperType separates positive and negative movers
type GapperType string

const (
	GapperBullish GapperType = "bullish"
	GapperBearish GapperType = "bearish"
)

// Gapper is one ranked mover for a sector/batch/type.
// Primary key (timeframe, sector, bucket_ts, type, rank); ranks are
// contiguous from 1 with no padding.
type Gapper struct {
	Sector    string     `json:"sector"`
	Timeframe Timeframe  `json:"timeframe"`
	BucketTS  time.Time  `json:"bucket_ts"`
	Type      GapperType `json:"type"`
	Rank      int        `json:"rank"`
	Symbol    string     `json:"symbol"`
	PctChange float64    `json:"pct_change"`
	Volume    int64      `json:"volume"`
	Price     float64    `json:"price"`
}

// SectorUnit bundles everything written for one sector in one batch.
// The store persists a unit atomically: a reader never sees a sentiment
// score without its metrics or gapper list.
type SectorUnit struct {
	Sentiment SectorSentiment `json:"sentiment"`
	Metrics   SignalMetrics   `json:"metrics"`
	Gappers   []Gapper        `json:"gappers"`
}

// IsNeutral reports whether the unit is a neutral default (empty sector)
func (u *SectorUnit) IsNeutral() bool {
	return u.Metrics.Status == BatchStatusNeutral
}

// SectorSnapshot is the read-side join of the latest unit for a sector
type SectorSnapshot struct {
	Sentiment SectorSentiment `json:"sentiment"`
	Metrics   *SignalMetrics  `json:"metrics,omitempty"`
	Gappers   []Gapper        `json:"gappers,omitempty"`
}
