package contracts

import (
	"fmt"
	"math"
	"time"
)

// SymbolObservation is one symbol-level market reading inside a batch.
// Ephemeral: consumed during aggregation and discarded, never persisted verbatim.
type SymbolObservation struct {
	Symbol    string    `json:"symbol"`
	Sector    string    `json:"sector"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume"`
	PctChange float64   `json:"pct_change"` // performance over the timeframe window, percent
}

// Validate checks required fields on a single observation.
// A failing observation is dropped from its batch, never the whole batch.
func (o *SymbolObservation) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("observation missing symbol")
	}
	if o.Price <= 0 {
		return fmt.Errorf("observation %s: price must be positive, got %v", o.Symbol, o.Price)
	}
	if o.Volume < 0 {
		return fmt.Errorf("observation %s: volume must be non-negative, got %d", o.Symbol, o.Volume)
	}
	if math.IsNaN(o.PctChange) || math.IsInf(o.PctChange, 0) {
		return fmt.Errorf("observation %s: pct_change is not finite", o.Symbol)
	}
	return nil
}

// ObservationBatch is the ingestion adapter's output for one scheduled run:
// a set of symbol observations scoped to one timeframe, sharing a batch id
// and a nominal batch timestamp.
// ⭐ SSOT: Ingestion Adapter → Engine 데이터 전달
type ObservationBatch struct {
	BatchID      string              `json:"batch_id"`
	Timeframe    Timeframe           `json:"timeframe"`
	BucketTS     time.Time           `json:"bucket_ts"` // batch boundary, timezone-aware
	Observations []SymbolObservation `json:"observations"`
}

// Validate checks batch-level required fields
func (b *ObservationBatch) Validate() error {
	if b.BatchID == "" {
		return fmt.Errorf("batch missing batch_id")
	}
	if !b.Timeframe.Valid() {
		return fmt.Errorf("batch %s: invalid timeframe %q", b.BatchID, b.Timeframe)
	}
	if b.BucketTS.IsZero() {
		return fmt.Errorf("batch %s: missing bucket_ts", b.BatchID)
	}
	return nil
}

// Count returns the number of observations in the batch
func (b *ObservationBatch) Count() int {
	return len(b.Observations)
}
