package accuracy

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/wonny/sectorpulse/internal/contracts"
)

// Backfiller walks recent sector history and fills the nullable
// rolling-accuracy fields on metrics rows. Compressed rows are never
// touched: once a row ages past the compression boundary its quality
// record is frozen.
type Backfiller struct {
	pool    *pgxpool.Pool
	tracker *Tracker
	repo    contracts.SignalRepository
	log     zerolog.Logger
}

// NewBackfiller creates a new accuracy backfiller
func NewBackfiller(pool *pgxpool.Pool, repo contracts.SignalRepository, log zerolog.Logger) *Backfiller {
	return &Backfiller{
		pool:    pool,
		tracker: NewTracker(log),
		repo:    repo,
		log:     log.With().Str("component", "accuracy.backfiller").Logger(),
	}
}

// Run evaluates every sector with history in the given timeframe
func (b *Backfiller) Run(ctx context.Context, tf contracts.Timeframe) (int, error) {
	sectors, err := b.sectorsWithHistory(ctx, tf)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	from := now.Add(-31 * 24 * time.Hour)
	updated := 0

	for _, sector := range sectors {
		select {
		case <-ctx.Done():
			return updated, ctx.Err()
		default:
		}

		history, err := b.repo.SentimentRange(ctx, tf, sector, from, now)
		if err != nil {
			return updated, fmt.Errorf("failed to load history for %s: %w", sector, err)
		}

		eval := b.tracker.Evaluate(sector, tf, history)
		if eval == nil {
			continue
		}

		n, err := b.apply(ctx, tf, eval)
		if err != nil {
			return updated, fmt.Errorf("failed to apply evaluation for %s: %w", sector, err)
		}
		updated += n
	}

	b.log.Info().
		Str("timeframe", string(tf)).
		Int("sectors", len(sectors)).
		Int("updated", updated).
		Msg("accuracy backfill completed")

	return updated, nil
}

func (b *Backfiller) sectorsWithHistory(ctx context.Context, tf contracts.Timeframe) ([]string, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT sector FROM signals.sector_latest
		WHERE timeframe = $1
		ORDER BY sector
	`, string(tf))
	if err != nil {
		return nil, fmt.Errorf("failed to list sectors: %w", err)
	}
	defer rows.Close()

	var sectors []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sectors = append(sectors, s)
	}
	return sectors, rows.Err()
}

func (b *Backfiller) apply(ctx context.Context, tf contracts.Timeframe, eval *Evaluation) (int, error) {
	query := fmt.Sprintf(`
		UPDATE signals.sector_signal_metrics_%s SET
			rolling_accuracy_7d = $1,
			rolling_accuracy_30d = $2,
			consistency_score = $3,
			updated_at = NOW()
		WHERE sector = $4 AND bucket_ts = $5 AND compressed_at IS NULL
	`, tf.TableSuffix())

	tag, err := b.pool.Exec(ctx, query,
		eval.RollingAccuracy7D, eval.RollingAccuracy30, eval.ConsistencyScore,
		eval.Sector, eval.BucketTS,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
