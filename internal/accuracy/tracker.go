package accuracy

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/sectorpulse/internal/contracts"
)

// Evaluation holds the backfill values computed for one metrics row
type Evaluation struct {
	Sector            string
	BucketTS          time.Time
	RollingAccuracy7D *float64
	RollingAccuracy30 *float64
	ConsistencyScore  *float64
}

// Tracker computes retrospective signal quality: how often a sector signal's
// direction matched the realized direction of the next bucket, and how stable
// the sign sequence was. Rows stay unevaluated (NULL) until a following
// bucket exists to judge them against.
type Tracker struct {
	log zerolog.Logger
}

// NewTracker creates a new accuracy tracker
func NewTracker(log zerolog.Logger) *Tracker {
	return &Tracker{
		log: log.With().Str("component", "accuracy.tracker").Logger(),
	}
}

// Evaluate scores the most recent evaluable row of one sector's history.
// history must be sorted by bucket_ts ascending and contain at least two
// rows; the row judged is the second newest, since the newest has no
// realized follow-up yet.
func (t *Tracker) Evaluate(sector string, tf contracts.Timeframe, history []contracts.SectorSentiment) *Evaluation {
	if len(history) < 2 {
		return nil
	}

	target := history[len(history)-2]
	window := tf.Window()

	acc7 := t.rollingAccuracy(history, target.BucketTS, 7*24*time.Hour, window)
	acc30 := t.rollingAccuracy(history, target.BucketTS, 30*24*time.Hour, window)
	cons := t.consistency(history, target.BucketTS, 30*24*time.Hour)

	t.log.Debug().
		Str("sector", sector).
		Str("timeframe", string(tf)).
		Time("bucket_ts", target.BucketTS).
		Msg("accuracy evaluated")

	return &Evaluation{
		Sector:            sector,
		BucketTS:          target.BucketTS,
		RollingAccuracy7D: acc7,
		RollingAccuracy30: acc30,
		ConsistencyScore:  cons,
	}
}

// rollingAccuracy is the hit rate over the lookback window: a signal counts
// as a hit when its score sign matches the next bucket's score sign. Pairs
// whose gap exceeds twice the timeframe window are skipped as discontinuous.
func (t *Tracker) rollingAccuracy(history []contracts.SectorSentiment, asOf time.Time, lookback, window time.Duration) *float64 {
	var hits, total int
	from := asOf.Add(-lookback)

	for i := 0; i+1 < len(history); i++ {
		cur, next := history[i], history[i+1]
		if cur.BucketTS.Before(from) || cur.BucketTS.After(asOf) {
			continue
		}
		if next.BucketTS.Sub(cur.BucketTS) > 2*window {
			continue
		}
		if sign(cur.Score) == 0 {
			continue
		}
		total++
		if sign(cur.Score) == sign(next.Score) {
			hits++
		}
	}

	if total == 0 {
		return nil
	}
	v := float64(hits) / float64(total)
	return &v
}

// consistency measures sign stability over the lookback: 1.0 means the
// signal never flipped direction, 0.0 means it flipped at every step
func (t *Tracker) consistency(history []contracts.SectorSentiment, asOf time.Time, lookback time.Duration) *float64 {
	var flips, transitions int
	from := asOf.Add(-lookback)

	var prev *contracts.SectorSentiment
	for i := range history {
		s := &history[i]
		if s.BucketTS.Before(from) || s.BucketTS.After(asOf) {
			continue
		}
		if prev != nil && sign(prev.Score) != 0 && sign(s.Score) != 0 {
			transitions++
			if sign(prev.Score) != sign(s.Score) {
				flips++
			}
		}
		prev = s
	}

	if transitions == 0 {
		return nil
	}
	v := 1.0 - float64(flips)/float64(transitions)
	return &v
}

func sign(v float64) int {
	switch {
	case math.IsNaN(v), v == 0:
		return 0
	case v > 0:
		return 1
	default:
		return -1
	}
}
