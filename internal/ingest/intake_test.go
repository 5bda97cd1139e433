package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sectorpulse/internal/contracts"
	"github.com/wonny/sectorpulse/pkg/config"
	"github.com/wonny/sectorpulse/pkg/logger"
)

func testIntake() *Intake {
	return NewIntake(logger.New(&config.Config{Env: "test", LogLevel: "error", LogFormat: "console"}))
}

func batchAt(ts time.Time, symbols ...string) *contracts.ObservationBatch {
	b := &contracts.ObservationBatch{
		Timeframe: contracts.Timeframe1Day,
		BucketTS:  ts,
	}
	for _, s := range symbols {
		b.Observations = append(b.Observations, contracts.SymbolObservation{
			Symbol: s, Timestamp: ts, Price: 100, Volume: 10, PctChange: 1,
		})
	}
	return b
}

func TestIntake_AcceptAssignsBatchID(t *testing.T) {
	in := testIntake()
	b := batchAt(time.Now().UTC(), "AAA")

	require.NoError(t, in.Accept(b))
	assert.NotEmpty(t, b.BatchID)
}

func TestIntake_SameBucketAppends(t *testing.T) {
	in := testIntake()
	ts := time.Date(2026, 8, 25, 16, 0, 0, 0, time.UTC)

	require.NoError(t, in.Accept(batchAt(ts, "AAA", "BBB")))
	require.NoError(t, in.Accept(batchAt(ts, "CCC")))

	drained, err := in.Next(context.Background(), contracts.Timeframe1Day)
	require.NoError(t, err)
	assert.Equal(t, 3, drained.Count())
}

func TestIntake_NewerBucketReplaces(t *testing.T) {
	in := testIntake()
	old := time.Date(2026, 8, 24, 16, 0, 0, 0, time.UTC)
	newer := old.Add(24 * time.Hour)

	require.NoError(t, in.Accept(batchAt(old, "STALE")))
	require.NoError(t, in.Accept(batchAt(newer, "FRESH")))

	drained, err := in.Next(context.Background(), contracts.Timeframe1Day)
	require.NoError(t, err)
	assert.Equal(t, newer, drained.BucketTS)
	assert.Equal(t, "FRESH", drained.Observations[0].Symbol)
}

func TestIntake_OlderBucketIgnored(t *testing.T) {
	in := testIntake()
	ts := time.Date(2026, 8, 25, 16, 0, 0, 0, time.UTC)

	require.NoError(t, in.Accept(batchAt(ts, "KEEP")))
	require.NoError(t, in.Accept(batchAt(ts.Add(-24*time.Hour), "LATE")))

	drained, err := in.Next(context.Background(), contracts.Timeframe1Day)
	require.NoError(t, err)
	assert.Equal(t, 1, drained.Count())
	assert.Equal(t, "KEEP", drained.Observations[0].Symbol)
}

func TestIntake_NextDrains(t *testing.T) {
	in := testIntake()
	require.NoError(t, in.Accept(batchAt(time.Now().UTC(), "AAA")))

	_, err := in.Next(context.Background(), contracts.Timeframe1Day)
	require.NoError(t, err)

	_, err = in.Next(context.Background(), contracts.Timeframe1Day)
	assert.ErrorIs(t, err, contracts.ErrNoObservations)
}

func TestIntake_TimeframesIsolated(t *testing.T) {
	in := testIntake()
	ts := time.Now().UTC()

	daily := batchAt(ts, "AAA")
	halfHour := batchAt(ts, "BBB", "CCC")
	halfHour.Timeframe = contracts.Timeframe30Min

	require.NoError(t, in.Accept(daily))
	require.NoError(t, in.Accept(halfHour))

	pending := in.Pending()
	assert.Equal(t, 1, pending[contracts.Timeframe1Day])
	assert.Equal(t, 2, pending[contracts.Timeframe30Min])

	_, err := in.Next(context.Background(), contracts.Timeframe1Day)
	require.NoError(t, err)

	pending = in.Pending()
	assert.NotContains(t, pending, contracts.Timeframe1Day)
	assert.Equal(t, 2, pending[contracts.Timeframe30Min])
}

func TestIntake_RejectsInvalidEnvelope(t *testing.T) {
	in := testIntake()

	err := in.Accept(&contracts.ObservationBatch{Timeframe: "2h", BucketTS: time.Now()})
	assert.Error(t, err)

	err = in.Accept(&contracts.ObservationBatch{Timeframe: contracts.Timeframe1Day})
	assert.Error(t, err)
}
