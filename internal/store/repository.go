package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/sectorpulse/internal/contracts"
)

// Repository implements contracts.SignalRepository over the per-timeframe
// time-series collections. Writes are idempotent upserts; one sector's
// sentiment, metrics, gappers and latest pointer go through a single
// transaction so readers never observe a partial unit.
// ⭐ SSOT: 시그널 영속화는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new signal repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Per-timeframe collection names. Timeframe values come from a closed enum,
// so interpolation is safe.
func sentimentTable(tf contracts.Timeframe) string {
	return fmt.Sprintf("signals.sector_sentiment_%s", tf.TableSuffix())
}

func metricsTable(tf contracts.Timeframe) string {
	return fmt.Sprintf("signals.sector_signal_metrics_%s", tf.TableSuffix())
}

const gappersTable = "signals.sector_gappers"
const latestTable = "signals.sector_latest"

// SaveUnit writes one sector's atomic unit for a batch
func (r *Repository) SaveUnit(ctx context.Context, unit *contracts.SectorUnit) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.saveSentiment(ctx, tx, &unit.Sentiment); err != nil {
		return fmt.Errorf("failed to save sentiment for %s: %w", unit.Sentiment.Sector, err)
	}

	if err := r.saveMetrics(ctx, tx, &unit.Metrics); err != nil {
		return fmt.Errorf("failed to save metrics for %s: %w", unit.Metrics.Sector, err)
	}

	if err := r.saveGappers(ctx, tx, unit); err != nil {
		return fmt.Errorf("failed to save gappers for %s: %w", unit.Sentiment.Sector, err)
	}

	if err := r.advanceLatest(ctx, tx, &unit.Sentiment); err != nil {
		return fmt.Errorf("failed to advance latest pointer for %s: %w", unit.Sentiment.Sector, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *Repository) saveSentiment(ctx context.Context, tx pgx.Tx, s *contracts.SectorSentiment) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (sector, bucket_ts, batch_id, score, weighted_score)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sector, bucket_ts) DO UPDATE SET
			batch_id = EXCLUDED.batch_id,
			score = EXCLUDED.score,
			weighted_score = EXCLUDED.weighted_score,
			updated_at = NOW()
	`, sentimentTable(s.Timeframe))

	_, err := tx.Exec(ctx, query, s.Sector, s.BucketTS, s.BatchID, s.Score, s.WeightedScore)
	return err
}

func (r *Repository) saveMetrics(ctx context.Context, tx pgx.Tx, m *contracts.SignalMetrics) error {
	// Rolling accuracy fields are deliberately not overwritten on rerun:
	// they belong to the backfill pass, not the batch write.
	query := fmt.Sprintf(`
		INSERT INTO %s (
			sector, bucket_ts, batch_id, score,
			confidence_level, sample_size, outliers_removed,
			significance_passed, sample_size_warning,
			total_volume, bullish_count, bearish_count,
			volume_contribution, confidence_factor, data_quality_score,
			batch_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (sector, bucket_ts) DO UPDATE SET
			batch_id = EXCLUDED.batch_id,
			score = EXCLUDED.score,
			confidence_level = EXCLUDED.confidence_level,
			sample_size = EXCLUDED.sample_size,
			outliers_removed = EXCLUDED.outliers_removed,
			significance_passed = EXCLUDED.significance_passed,
			sample_size_warning = EXCLUDED.sample_size_warning,
			total_volume = EXCLUDED.total_volume,
			bullish_count = EXCLUDED.bullish_count,
			bearish_count = EXCLUDED.bearish_count,
			volume_contribution = EXCLUDED.volume_contribution,
			confidence_factor = EXCLUDED.confidence_factor,
			data_quality_score = EXCLUDED.data_quality_score,
			batch_status = EXCLUDED.batch_status,
			updated_at = NOW()
	`, metricsTable(m.Timeframe))

	_, err := tx.Exec(ctx, query,
		m.Sector, m.BucketTS, m.BatchID, m.Score,
		m.ConfidenceLevel, m.SampleSize, m.OutliersRemoved,
		m.SignificancePass, m.SampleWarning,
		m.TotalVolume, m.BullishCount, m.BearishCount,
		m.VolumeContribution, m.ConfidenceFactor, m.DataQuality,
		string(m.Status),
	)
	return err
}

// saveGappers replaces the sector's gapper rows for the bucket inside the
// unit transaction. Delete-then-insert keeps rank sequences contiguous on
// reruns where the candidate count shrank.
func (r *Repository) saveGappers(ctx context.Context, tx pgx.Tx, unit *contracts.SectorUnit) error {
	s := &unit.Sentiment

	deleteQuery := fmt.Sprintf(`
		DELETE FROM %s
		WHERE timeframe = $1 AND sector = $2 AND bucket_ts = $3
	`, gappersTable)

	if _, err := tx.Exec(ctx, deleteQuery, string(s.Timeframe), s.Sector, s.BucketTS); err != nil {
		return err
	}

	if len(unit.Gappers) == 0 {
		return nil
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (timeframe, sector, bucket_ts, gap_type, rank, symbol, pct_change, volume, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, gappersTable)

	for _, g := range unit.Gappers {
		_, err := tx.Exec(ctx, insertQuery,
			string(g.Timeframe), g.Sector, g.BucketTS, string(g.Type),
			g.Rank, g.Symbol, g.PctChange, g.Volume, g.Price,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// advanceLatest keeps the materialized latest-per-sector pointer current.
// GREATEST() makes the upsert safe for out-of-order reruns of old buckets.
func (r *Repository) advanceLatest(ctx context.Context, tx pgx.Tx, s *contracts.SectorSentiment) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (timeframe, sector, bucket_ts)
		VALUES ($1, $2, $3)
		ON CONFLICT (timeframe, sector) DO UPDATE SET
			bucket_ts = GREATEST(%s.bucket_ts, EXCLUDED.bucket_ts)
	`, latestTable, latestTable)

	_, err := tx.Exec(ctx, query, string(s.Timeframe), s.Sector, s.BucketTS)
	return err
}

// LatestBySector returns the newest snapshot for one sector via the latest
// pointer: O(1) in history size, never a scan.
func (r *Repository) LatestBySector(ctx context.Context, tf contracts.Timeframe, sector string) (*contracts.SectorSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT s.sector, s.bucket_ts, s.batch_id, s.score, s.weighted_score
		FROM %s l
		JOIN %s s ON s.sector = l.sector AND s.bucket_ts = l.bucket_ts
		WHERE l.timeframe = $1 AND l.sector = $2
	`, latestTable, sentimentTable(tf))

	snap := &contracts.SectorSnapshot{}
	snap.Sentiment.Timeframe = tf

	err := r.pool.QueryRow(ctx, query, string(tf), sector).Scan(
		&snap.Sentiment.Sector, &snap.Sentiment.BucketTS, &snap.Sentiment.BatchID,
		&snap.Sentiment.Score, &snap.Sentiment.WeightedScore,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest sentiment: %w", err)
	}

	metrics, err := r.metricsAt(ctx, tf, sector, snap.Sentiment.BucketTS)
	if err != nil {
		return nil, err
	}
	snap.Metrics = metrics

	gappers, err := r.gappersAt(ctx, tf, sector, snap.Sentiment.BucketTS, "")
	if err != nil {
		return nil, err
	}
	snap.Gappers = gappers

	return snap, nil
}

// LatestAll returns the newest snapshot for every sector with history
func (r *Repository) LatestAll(ctx context.Context, tf contracts.Timeframe) ([]contracts.SectorSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT s.sector, s.bucket_ts, s.batch_id, s.score, s.weighted_score
		FROM %s l
		JOIN %s s ON s.sector = l.sector AND s.bucket_ts = l.bucket_ts
		WHERE l.timeframe = $1
		ORDER BY s.sector
	`, latestTable, sentimentTable(tf))

	rows, err := r.pool.Query(ctx, query, string(tf))
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []contracts.SectorSnapshot
	for rows.Next() {
		var snap contracts.SectorSnapshot
		snap.Sentiment.Timeframe = tf
		if err := rows.Scan(
			&snap.Sentiment.Sector, &snap.Sentiment.BucketTS, &snap.Sentiment.BatchID,
			&snap.Sentiment.Score, &snap.Sentiment.WeightedScore,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Attach metrics after the scan loop (one open query at a time)
	for i := range snaps {
		metrics, err := r.metricsAt(ctx, tf, snaps[i].Sentiment.Sector, snaps[i].Sentiment.BucketTS)
		if err != nil {
			return nil, err
		}
		snaps[i].Metrics = metrics
	}

	return snaps, nil
}

// SentimentRange returns a sector's sentiment rows within [from, to]
func (r *Repository) SentimentRange(ctx context.Context, tf contracts.Timeframe, sector string, from, to time.Time) ([]contracts.SectorSentiment, error) {
	query := fmt.Sprintf(`
		SELECT sector, bucket_ts, batch_id, score, weighted_score
		FROM %s
		WHERE sector = $1 AND bucket_ts BETWEEN $2 AND $3
		ORDER BY bucket_ts ASC
	`, sentimentTable(tf))

	rows, err := r.pool.Query(ctx, query, sector, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query sentiment range: %w", err)
	}
	defer rows.Close()

	var out []contracts.SectorSentiment
	for rows.Next() {
		s := contracts.SectorSentiment{Timeframe: tf}
		if err := rows.Scan(&s.Sector, &s.BucketTS, &s.BatchID, &s.Score, &s.WeightedScore); err != nil {
			return nil, fmt.Errorf("failed to scan sentiment row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MetricsRange returns a sector's quality records within [from, to]
func (r *Repository) MetricsRange(ctx context.Context, tf contracts.Timeframe, sector string, from, to time.Time) ([]contracts.SignalMetrics, error) {
	query := fmt.Sprintf(`
		SELECT sector, bucket_ts, batch_id, score,
			confidence_level, sample_size, outliers_removed,
			significance_passed, sample_size_warning,
			total_volume, bullish_count, bearish_count,
			volume_contribution, confidence_factor, data_quality_score,
			batch_status, rolling_accuracy_7d, rolling_accuracy_30d, consistency_score
		FROM %s
		WHERE sector = $1 AND bucket_ts BETWEEN $2 AND $3
		ORDER BY bucket_ts ASC
	`, metricsTable(tf))

	rows, err := r.pool.Query(ctx, query, sector, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics range: %w", err)
	}
	defer rows.Close()

	var out []contracts.SignalMetrics
	for rows.Next() {
		m, err := scanMetrics(rows, tf)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// GappersAt returns the ranked gapper list for one sector/bucket/type
func (r *Repository) GappersAt(ctx context.Context, tf contracts.Timeframe, sector string, bucketTS time.Time, gapType contracts.GapperType) ([]contracts.Gapper, error) {
	return r.gappersAt(ctx, tf, sector, bucketTS, gapType)
}

func (r *Repository) gappersAt(ctx context.Context, tf contracts.Timeframe, sector string, bucketTS time.Time, gapType contracts.GapperType) ([]contracts.Gapper, error) {
	query := fmt.Sprintf(`
		SELECT sector, bucket_ts, gap_type, rank, symbol, pct_change, volume, price
		FROM %s
		WHERE timeframe = $1 AND sector = $2 AND bucket_ts = $3
			AND ($4 = '' OR gap_type = $4)
		ORDER BY gap_type, rank ASC
	`, gappersTable)

	rows, err := r.pool.Query(ctx, query, string(tf), sector, bucketTS, string(gapType))
	if err != nil {
		return nil, fmt.Errorf("failed to query gappers: %w", err)
	}
	defer rows.Close()

	var out []contracts.Gapper
	for rows.Next() {
		g := contracts.Gapper{Timeframe: tf}
		var gt string
		if err := rows.Scan(&g.Sector, &g.BucketTS, &gt, &g.Rank, &g.Symbol, &g.PctChange, &g.Volume, &g.Price); err != nil {
			return nil, fmt.Errorf("failed to scan gapper row: %w", err)
		}
		g.Type = contracts.GapperType(gt)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *Repository) metricsAt(ctx context.Context, tf contracts.Timeframe, sector string, bucketTS time.Time) (*contracts.SignalMetrics, error) {
	query := fmt.Sprintf(`
		SELECT sector, bucket_ts, batch_id, score,
			confidence_level, sample_size, outliers_removed,
			significance_passed, sample_size_warning,
			total_volume, bullish_count, bearish_count,
			volume_contribution, confidence_factor, data_quality_score,
			batch_status, rolling_accuracy_7d, rolling_accuracy_30d, consistency_score
		FROM %s
		WHERE sector = $1 AND bucket_ts = $2
	`, metricsTable(tf))

	rows, err := r.pool.Query(ctx, query, sector, bucketTS)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanMetrics(rows, tf)
}

// scanMetrics reads one metrics row, keeping backfill fields nullable
func scanMetrics(rows pgx.Rows, tf contracts.Timeframe) (*contracts.SignalMetrics, error) {
	m := &contracts.SignalMetrics{Timeframe: tf}
	var status string

	err := rows.Scan(
		&m.Sector, &m.BucketTS, &m.BatchID, &m.Score,
		&m.ConfidenceLevel, &m.SampleSize, &m.OutliersRemoved,
		&m.SignificancePass, &m.SampleWarning,
		&m.TotalVolume, &m.BullishCount, &m.BearishCount,
		&m.VolumeContribution, &m.ConfidenceFactor, &m.DataQuality,
		&status, &m.RollingAccuracy7D, &m.RollingAccuracy30D, &m.ConsistencyScore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan metrics row: %w", err)
	}

	m.Status = contracts.BatchStatus(status)
	return m, nil
}
