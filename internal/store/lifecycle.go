package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/sectorpulse/internal/contracts"
	"github.com/wonny/sectorpulse/pkg/config"
	"github.com/wonny/sectorpulse/pkg/logger"
)

// Lifecycle runs the per-timeframe compression and retention sweep.
// Ordering is a hard invariant: rows are compressed first, and only rows
// already compressed are eligible for deletion. A row can never be dropped
// while still uncompressed.
type Lifecycle struct {
	pool     *pgxpool.Pool
	policies map[contracts.Timeframe]config.TimeframePolicy
	log      *logger.Logger
}

// SweepResult reports what one sweep did per timeframe
type SweepResult struct {
	Timeframe  contracts.Timeframe `json:"timeframe"`
	Compressed int64               `json:"compressed"`
	Deleted    int64               `json:"deleted"`
}

// NewLifecycle creates the sweep over the configured per-timeframe policies.
// Policies were already validated at config load; the re-check here keeps a
// programmatic caller from constructing an inverted policy.
func NewLifecycle(pool *pgxpool.Pool, policies map[contracts.Timeframe]config.TimeframePolicy, log *logger.Logger) (*Lifecycle, error) {
	for tf, p := range policies {
		if p.RetainFor <= p.CompressAfter {
			return nil, fmt.Errorf("lifecycle policy for %s: retention %s must exceed compression %s", tf, p.RetainFor, p.CompressAfter)
		}
	}
	return &Lifecycle{pool: pool, policies: policies, log: log.Component("lifecycle")}, nil
}

// PoliciesFromConfig maps the flat env-driven lifecycle config onto timeframes
func PoliciesFromConfig(cfg config.LifecycleConfig) map[contracts.Timeframe]config.TimeframePolicy {
	return map[contracts.Timeframe]config.TimeframePolicy{
		contracts.Timeframe30Min: cfg.M30,
		contracts.Timeframe1Day:  cfg.D1,
		contracts.Timeframe3Day:  cfg.D3,
		contracts.Timeframe1Week: cfg.W1,
	}
}

// Sweep applies every timeframe's policy once
func (l *Lifecycle) Sweep(ctx context.Context) ([]SweepResult, error) {
	results := make([]SweepResult, 0, len(l.policies))

	for _, tf := range contracts.AllTimeframes() {
		policy, ok := l.policies[tf]
		if !ok {
			continue
		}

		res, err := l.sweepTimeframe(ctx, tf, policy)
		if err != nil {
			return results, fmt.Errorf("lifecycle sweep failed for %s: %w", tf, err)
		}
		results = append(results, res)

		l.log.WithFields(map[string]interface{}{
			"timeframe":  string(tf),
			"compressed": res.Compressed,
			"deleted":    res.Deleted,
		}).Info("Lifecycle sweep done")
	}

	return results, nil
}

func (l *Lifecycle) sweepTimeframe(ctx context.Context, tf contracts.Timeframe, policy config.TimeframePolicy) (SweepResult, error) {
	res := SweepResult{Timeframe: tf}
	now := time.Now().UTC()
	compressBefore := now.Add(-policy.CompressAfter)
	retainBefore := now.Add(-policy.RetainFor)

	tables := []struct {
		name        string
		byTimeframe bool
	}{
		{sentimentTable(tf), false},
		{metricsTable(tf), false},
		{gappersTable, true},
	}

	// Phase 1: compression. Must complete for every table before any
	// deletion happens in this timeframe.
	for _, t := range tables {
		n, err := l.compress(ctx, t.name, t.byTimeframe, tf, compressBefore)
		if err != nil {
			return res, fmt.Errorf("compress %s: %w", t.name, err)
		}
		res.Compressed += n
	}

	// Phase 2: retention, restricted to already-compressed rows
	for _, t := range tables {
		n, err := l.retain(ctx, t.name, t.byTimeframe, tf, retainBefore)
		if err != nil {
			return res, fmt.Errorf("retain %s: %w", t.name, err)
		}
		res.Deleted += n
	}

	// Drop latest pointers whose target bucket aged out entirely
	if _, err := l.pool.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE timeframe = $1 AND bucket_ts < $2
	`, latestTable), string(tf), retainBefore); err != nil {
		return res, fmt.Errorf("prune latest pointers: %w", err)
	}

	return res, nil
}

func (l *Lifecycle) compress(ctx context.Context, table string, byTimeframe bool, tf contracts.Timeframe, before time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET compressed_at = NOW()
		WHERE bucket_ts < $1 AND compressed_at IS NULL
	`, table)
	args := []interface{}{before}

	if byTimeframe {
		query += " AND timeframe = $2"
		args = append(args, string(tf))
	}

	tag, err := l.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (l *Lifecycle) retain(ctx context.Context, table string, byTimeframe bool, tf contracts.Timeframe, before time.Time) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE bucket_ts < $1 AND compressed_at IS NOT NULL
	`, table)
	args := []interface{}{before}

	if byTimeframe {
		query += " AND timeframe = $2"
		args = append(args, string(tf))
	}

	tag, err := l.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
