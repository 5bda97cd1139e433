package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// timeframe collection template; one sentiment and one metrics table per
// timeframe suffix, created by EnsureSchema
const sentimentDDL = `
CREATE TABLE IF NOT EXISTS signals.sector_sentiment_%[1]s (
	sector TEXT NOT NULL,
	bucket_ts TIMESTAMPTZ NOT NULL,
	batch_id TEXT NOT NULL,
	score DOUBLE PRECISION NOT NULL,
	weighted_score DOUBLE PRECISION NOT NULL,
	compressed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (sector, bucket_ts)
);
CREATE INDEX IF NOT EXISTS idx_sector_sentiment_%[1]s_bucket
	ON signals.sector_sentiment_%[1]s (bucket_ts);
`

const metricsDDL = `
CREATE TABLE IF NOT EXISTS signals.sector_signal_metrics_%[1]s (
	sector TEXT NOT NULL,
	bucket_ts TIMESTAMPTZ NOT NULL,
	batch_id TEXT NOT NULL,
	score DOUBLE PRECISION NOT NULL,
	confidence_level DOUBLE PRECISION NOT NULL,
	sample_size INTEGER NOT NULL,
	outliers_removed INTEGER NOT NULL,
	significance_passed BOOLEAN NOT NULL,
	sample_size_warning BOOLEAN NOT NULL,
	total_volume BIGINT NOT NULL,
	bullish_count INTEGER NOT NULL,
	bearish_count INTEGER NOT NULL,
	volume_contribution JSONB NOT NULL DEFAULT '{}',
	confidence_factor DOUBLE PRECISION NOT NULL,
	data_quality_score DOUBLE PRECISION NOT NULL,
	batch_status TEXT NOT NULL,
	rolling_accuracy_7d DOUBLE PRECISION,
	rolling_accuracy_30d DOUBLE PRECISION,
	consistency_score DOUBLE PRECISION,
	compressed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (sector, bucket_ts)
);
CREATE INDEX IF NOT EXISTS idx_sector_signal_metrics_%[1]s_bucket
	ON signals.sector_signal_metrics_%[1]s (bucket_ts);
`

const sharedDDL = `
CREATE SCHEMA IF NOT EXISTS signals;
CREATE SCHEMA IF NOT EXISTS data;

CREATE TABLE IF NOT EXISTS signals.sector_gappers (
	timeframe TEXT NOT NULL,
	sector TEXT NOT NULL,
	bucket_ts TIMESTAMPTZ NOT NULL,
	gap_type TEXT NOT NULL,
	rank INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	pct_change DOUBLE PRECISION NOT NULL,
	volume BIGINT NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	compressed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (timeframe, sector, bucket_ts, gap_type, rank)
);
CREATE INDEX IF NOT EXISTS idx_sector_gappers_bucket
	ON signals.sector_gappers (bucket_ts);

CREATE TABLE IF NOT EXISTS signals.sector_latest (
	timeframe TEXT NOT NULL,
	sector TEXT NOT NULL,
	bucket_ts TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (timeframe, sector)
);

CREATE TABLE IF NOT EXISTS data.symbols (
	symbol TEXT PRIMARY KEY,
	sector TEXT,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates every collection the engine writes to. Idempotent;
// intended for local setup and the db check command, not for production
// migration management.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, sharedDDL); err != nil {
		return fmt.Errorf("failed to create shared tables: %w", err)
	}

	for _, suffix := range []string{"30m", "1d", "3d", "1w"} {
		if _, err := pool.Exec(ctx, fmt.Sprintf(sentimentDDL, suffix)); err != nil {
			return fmt.Errorf("failed to create sentiment table %s: %w", suffix, err)
		}
		if _, err := pool.Exec(ctx, fmt.Sprintf(metricsDDL, suffix)); err != nil {
			return fmt.Errorf("failed to create metrics table %s: %w", suffix, err)
		}
	}

	return nil
}
