package contracts

import (
	"context"
	"time"
)

// UniverseIndex maps symbols to sectors and active status.
// External collaborator, consumed read-only; inactive or unmapped symbols
// are excluded before aggregation.
type UniverseIndex interface {
	// Lookup returns the sector for a symbol. ok is false when the symbol
	// is unmapped; active is false for delisted/suspended symbols.
	Lookup(symbol string) (sector string, active bool, ok bool)

	// Sectors returns every known sector. Sectors with zero qualifying
	// observations in a batch still produce neutral records.
	Sectors() []string
}

// SignalRepository persists and reads quality-scored sector signals
// ⭐ SSOT: 시그널 저장/조회 인터페이스
type SignalRepository interface {
	// SaveUnit writes one sector's sentiment, metrics, gappers and latest
	// pointer in a single transaction. Idempotent upsert on the unit's keys.
	SaveUnit(ctx context.Context, unit *SectorUnit) error

	// LatestBySector returns the most recent snapshot for one sector
	LatestBySector(ctx context.Context, tf Timeframe, sector string) (*SectorSnapshot, error)

	// LatestAll returns the most recent snapshot per sector
	LatestAll(ctx context.Context, tf Timeframe) ([]SectorSnapshot, error)

	// SentimentRange returns sentiment rows for a sector within [from, to]
	SentimentRange(ctx context.Context, tf Timeframe, sector string, from, to time.Time) ([]SectorSentiment, error)

	// MetricsRange returns metrics rows for a sector within [from, to]
	MetricsRange(ctx context.Context, tf Timeframe, sector string, from, to time.Time) ([]SignalMetrics, error)

	// GappersAt returns the gapper list for one sector/bucket
	GappersAt(ctx context.Context, tf Timeframe, sector string, bucketTS time.Time, gapType GapperType) ([]Gapper, error)
}

// ObservationSource supplies the next pending batch for a timeframe.
// The engine is stateless between invocations; the source owns buffering.
type ObservationSource interface {
	// Next returns the pending batch for the timeframe, or
	// ErrNoObservations when there is nothing to roll up.
	Next(ctx context.Context, tf Timeframe) (*ObservationBatch, error)
}
