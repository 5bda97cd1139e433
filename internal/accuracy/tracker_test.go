package accuracy

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sectorpulse/internal/contracts"
)

func testTracker() *Tracker {
	return NewTracker(zerolog.Nop())
}

// daySeries builds a daily sentiment history from scores, oldest first
func daySeries(start time.Time, scores ...float64) []contracts.SectorSentiment {
	out := make([]contracts.SectorSentiment, len(scores))
	for i, s := range scores {
		out[i] = contracts.SectorSentiment{
			Sector:    "biotech",
			Timeframe: contracts.Timeframe1Day,
			BucketTS:  start.Add(time.Duration(i) * 24 * time.Hour),
			Score:     s,
		}
	}
	return out
}

func TestTracker_TooShortHistoryIsNil(t *testing.T) {
	tr := testTracker()
	start := time.Date(2026, 8, 1, 16, 0, 0, 0, time.UTC)

	assert.Nil(t, tr.Evaluate("biotech", contracts.Timeframe1Day, nil))
	assert.Nil(t, tr.Evaluate("biotech", contracts.Timeframe1Day, daySeries(start, 0.5)))
}

func TestTracker_PerfectDirectionalRun(t *testing.T) {
	tr := testTracker()
	start := time.Date(2026, 8, 1, 16, 0, 0, 0, time.UTC)
	history := daySeries(start, 0.2, 0.4, 0.3, 0.5, 0.1)

	ev := tr.Evaluate("biotech", contracts.Timeframe1Day, history)
	require.NotNil(t, ev)
	assert.Equal(t, history[len(history)-2].BucketTS, ev.BucketTS)

	require.NotNil(t, ev.RollingAccuracy7D)
	assert.InDelta(t, 1.0, *ev.RollingAccuracy7D, 1e-9)

	require.NotNil(t, ev.ConsistencyScore)
	assert.InDelta(t, 1.0, *ev.ConsistencyScore, 1e-9)
}

func TestTracker_AlternatingSigns(t *testing.T) {
	tr := testTracker()
	start := time.Date(2026, 8, 1, 16, 0, 0, 0, time.UTC)
	history := daySeries(start, 0.3, -0.3, 0.3, -0.3, 0.3)

	ev := tr.Evaluate("biotech", contracts.Timeframe1Day, history)
	require.NotNil(t, ev)

	// every prediction points the wrong way
	require.NotNil(t, ev.RollingAccuracy7D)
	assert.InDelta(t, 0.0, *ev.RollingAccuracy7D, 1e-9)

	// and every transition is a flip
	require.NotNil(t, ev.ConsistencyScore)
	assert.InDelta(t, 0.0, *ev.ConsistencyScore, 1e-9)
}

func TestTracker_MixedHitRate(t *testing.T) {
	tr := testTracker()
	start := time.Date(2026, 8, 1, 16, 0, 0, 0, time.UTC)
	// pairs: (+,+) hit, (+,-) miss, (-,-) hit, (-,+) miss
	history := daySeries(start, 0.2, 0.4, -0.1, -0.2, 0.3)

	ev := tr.Evaluate("biotech", contracts.Timeframe1Day, history)
	require.NotNil(t, ev)
	require.NotNil(t, ev.RollingAccuracy7D)
	assert.InDelta(t, 0.5, *ev.RollingAccuracy7D, 1e-9)
}

func TestTracker_NeutralScoresDoNotCount(t *testing.T) {
	tr := testTracker()
	start := time.Date(2026, 8, 1, 16, 0, 0, 0, time.UTC)
	history := daySeries(start, 0, 0, 0)

	ev := tr.Evaluate("biotech", contracts.Timeframe1Day, history)
	require.NotNil(t, ev)
	assert.Nil(t, ev.RollingAccuracy7D)
	assert.Nil(t, ev.RollingAccuracy30)
	assert.Nil(t, ev.ConsistencyScore)
}

func TestTracker_GapPairsSkipped(t *testing.T) {
	tr := testTracker()
	start := time.Date(2026, 8, 1, 16, 0, 0, 0, time.UTC)

	history := daySeries(start, 0.2, 0.3)
	// third bucket sits four days out: the (0.3, -0.4) pair spans a gap
	// wider than twice the daily window and must not count
	history = append(history, contracts.SectorSentiment{
		Sector:    "biotech",
		Timeframe: contracts.Timeframe1Day,
		BucketTS:  start.Add(5 * 24 * time.Hour),
		Score:     -0.4,
	})

	ev := tr.Evaluate("biotech", contracts.Timeframe1Day, history)
	require.NotNil(t, ev)
	require.NotNil(t, ev.RollingAccuracy7D)
	// only the contiguous (0.2, 0.3) pair remains, and it is a hit
	assert.InDelta(t, 1.0, *ev.RollingAccuracy7D, 1e-9)
}
