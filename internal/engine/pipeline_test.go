package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sectorpulse/internal/contracts"
)

// fakeUniverse is a fixed symbol→sector map for pipeline tests
type fakeUniverse struct {
	entries map[string]struct {
		sector string
		active bool
	}
	sectors []string
}

func newFakeUniverse() *fakeUniverse {
	u := &fakeUniverse{entries: map[string]struct {
		sector string
		active bool
	}{
		"AAA": {"semiconductor", true},
		"BBB": {"semiconductor", true},
		"CCC": {"semiconductor", true},
		"DDD": {"biotech", true},
		"EEE": {"biotech", true},
		"OFF": {"biotech", false},
	}}
	u.sectors = []string{"biotech", "semiconductor", "shipping"}
	return u
}

func (u *fakeUniverse) Lookup(symbol string) (string, bool, bool) {
	e, ok := u.entries[symbol]
	return e.sector, e.active, ok
}

func (u *fakeUniverse) Sectors() []string { return u.sectors }

// fakeRepo records saved units and can fail a configured number of times
type fakeRepo struct {
	mu       sync.Mutex
	units    map[string]*contracts.SectorUnit
	failLeft map[string]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		units:    make(map[string]*contracts.SectorUnit),
		failLeft: make(map[string]int),
	}
}

func (r *fakeRepo) SaveUnit(ctx context.Context, unit *contracts.SectorUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sector := unit.Sentiment.Sector
	if r.failLeft[sector] > 0 {
		r.failLeft[sector]--
		return errors.New("simulated write failure")
	}
	r.units[sector] = unit
	return nil
}

func (r *fakeRepo) LatestBySector(ctx context.Context, tf contracts.Timeframe, sector string) (*contracts.SectorSnapshot, error) {
	return nil, nil
}

func (r *fakeRepo) LatestAll(ctx context.Context, tf contracts.Timeframe) ([]contracts.SectorSnapshot, error) {
	return nil, nil
}

func (r *fakeRepo) SentimentRange(ctx context.Context, tf contracts.Timeframe, sector string, from, to time.Time) ([]contracts.SectorSentiment, error) {
	return nil, nil
}

func (r *fakeRepo) MetricsRange(ctx context.Context, tf contracts.Timeframe, sector string, from, to time.Time) ([]contracts.SignalMetrics, error) {
	return nil, nil
}

func (r *fakeRepo) GappersAt(ctx context.Context, tf contracts.Timeframe, sector string, bucketTS time.Time, gapType contracts.GapperType) ([]contracts.Gapper, error) {
	return nil, nil
}

func (r *fakeRepo) unit(sector string) *contracts.SectorUnit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.units[sector]
}

func testBatch() *contracts.ObservationBatch {
	return &contracts.ObservationBatch{
		BatchID:   "batch-001",
		Timeframe: contracts.Timeframe1Day,
		BucketTS:  time.Date(2026, 8, 25, 16, 0, 0, 0, time.UTC),
		Observations: []contracts.SymbolObservation{
			obs("AAA", 2.1, 5000),
			obs("BBB", 1.8, 3000),
			obs("CCC", -0.4, 1000),
			obs("DDD", 3.5, 800),
			obs("EEE", -1.2, 600),
			obs("OFF", 9.9, 100),  // inactive, must be dropped
			obs("ZZZ", 5.0, 100),  // unknown symbol, must be dropped
			obs("", 1.0, 100),     // invalid, must be dropped
		},
	}
}

func newTestPipeline(repo contracts.SignalRepository) *Pipeline {
	return NewPipeline(testEngineConfig(), repo, newFakeUniverse(), testLog())
}

func TestPipeline_RunProducesRecordForEverySector(t *testing.T) {
	repo := newFakeRepo()
	p := newTestPipeline(repo)

	result, err := p.Run(context.Background(), testBatch())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Sectors)
	assert.Equal(t, 1, result.DroppedInvalid)
	assert.Equal(t, 2, result.DroppedUniverse) // inactive + unknown
	assert.Equal(t, 1, result.NeutralSectors)  // shipping had no observations
	assert.Equal(t, 0, result.FailedSectors)
	assert.Len(t, result.Outcomes, 3)

	semis := repo.unit("semiconductor")
	require.NotNil(t, semis)
	assert.Equal(t, contracts.BatchStatusComputed, semis.Metrics.Status)
	assert.Equal(t, 3, semis.Metrics.SampleSize)
	assert.Greater(t, semis.Sentiment.Score, 0.0)
	assert.Equal(t, "batch-001", semis.Sentiment.BatchID)
}

func TestPipeline_EmptySectorGetsNeutralDefault(t *testing.T) {
	repo := newFakeRepo()
	p := newTestPipeline(repo)

	_, err := p.Run(context.Background(), testBatch())
	require.NoError(t, err)

	shipping := repo.unit("shipping")
	require.NotNil(t, shipping, "empty sector must still persist a record")

	assert.True(t, shipping.IsNeutral())
	assert.Equal(t, 0.0, shipping.Sentiment.Score)
	assert.Equal(t, 0.0, shipping.Sentiment.WeightedScore)
	assert.Equal(t, 0, shipping.Metrics.SampleSize)
	assert.True(t, shipping.Metrics.SampleWarning)
	assert.False(t, shipping.Metrics.SignificancePass)
	assert.Empty(t, shipping.Gappers)
}

func TestPipeline_RepostedSymbolCountsOnce(t *testing.T) {
	repo := newFakeRepo()
	p := newTestPipeline(repo)

	// An adapter retry reposts into the same bucket, so the same symbol
	// arrives twice. Only the newest reading may flow into the statistics
	// and the gapper lists.
	ts := time.Date(2026, 8, 25, 15, 0, 0, 0, time.UTC)
	stale := obs("AAA", 12.0, 500)
	stale.Timestamp = ts
	fresh := obs("AAA", 3.0, 800)
	fresh.Timestamp = ts.Add(10 * time.Minute)

	batch := &contracts.ObservationBatch{
		BatchID:   "batch-repost",
		Timeframe: contracts.Timeframe1Day,
		BucketTS:  time.Date(2026, 8, 25, 16, 0, 0, 0, time.UTC),
		Observations: []contracts.SymbolObservation{
			stale,
			obs("BBB", 1.0, 300),
			fresh,
		},
	}

	result, err := p.Run(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DroppedDuplicate)

	semis := repo.unit("semiconductor")
	require.NotNil(t, semis)
	assert.Equal(t, 2, semis.Metrics.SampleSize)
	assert.Equal(t, int64(1100), semis.Metrics.TotalVolume)

	// No symbol may hold two ranks in one (sector, bucket, type) list
	seen := make(map[contracts.GapperType]map[string]bool)
	for _, g := range semis.Gappers {
		if seen[g.Type] == nil {
			seen[g.Type] = make(map[string]bool)
		}
		require.False(t, seen[g.Type][g.Symbol],
			"symbol %s ranked twice as %s", g.Symbol, g.Type)
		seen[g.Type][g.Symbol] = true

		if g.Symbol == "AAA" {
			assert.InDelta(t, 3.0, g.PctChange, 1e-9, "stale reading must not rank")
			assert.Equal(t, int64(800), g.Volume)
		}
	}

	// Contributions cover exactly the surviving weight
	var sum float64
	for _, c := range semis.Metrics.VolumeContribution {
		sum += c
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 800.0/1100.0, semis.Metrics.VolumeContribution["AAA"], 1e-9)
}

func TestPipeline_WeightedScoreScaledByConfidence(t *testing.T) {
	repo := newFakeRepo()
	p := newTestPipeline(repo)

	_, err := p.Run(context.Background(), testBatch())
	require.NoError(t, err)

	semis := repo.unit("semiconductor")
	require.NotNil(t, semis)

	expected := semis.Sentiment.Score * semis.Metrics.ConfidenceFactor
	assert.InDelta(t, expected, semis.Sentiment.WeightedScore, 1e-9)
}

func TestPipeline_TransientWriteFailureRetries(t *testing.T) {
	repo := newFakeRepo()
	repo.failLeft["biotech"] = 2 // fails twice, third attempt succeeds
	p := newTestPipeline(repo)
	p.retryDelay = time.Millisecond

	result, err := p.Run(context.Background(), testBatch())
	require.NoError(t, err)

	assert.Equal(t, 0, result.FailedSectors)
	assert.NotNil(t, repo.unit("biotech"))
}

func TestPipeline_ExhaustedRetriesMarkSectorFailed(t *testing.T) {
	repo := newFakeRepo()
	repo.failLeft["biotech"] = 99
	p := newTestPipeline(repo)
	p.retryDelay = time.Millisecond

	result, err := p.Run(context.Background(), testBatch())
	require.NoError(t, err, "one failed sector must not fail the batch")

	assert.Equal(t, 1, result.FailedSectors)
	assert.Nil(t, repo.unit("biotech"))

	var failed *SectorOutcome
	for i := range result.Outcomes {
		if result.Outcomes[i].Sector == "biotech" {
			failed = &result.Outcomes[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, contracts.BatchStatusFailed, failed.Status)
	assert.NotEmpty(t, failed.Error)

	// Other sectors are unaffected
	assert.NotNil(t, repo.unit("semiconductor"))
	assert.NotNil(t, repo.unit("shipping"))
}

func TestPipeline_InvalidBatchEnvelopeRejected(t *testing.T) {
	p := newTestPipeline(newFakeRepo())

	_, err := p.Run(context.Background(), &contracts.ObservationBatch{
		BatchID:   "x",
		Timeframe: "2h",
		BucketTS:  time.Now(),
	})
	assert.Error(t, err)

	_, err = p.Run(context.Background(), &contracts.ObservationBatch{
		Timeframe: contracts.Timeframe1Day,
		BucketTS:  time.Now(),
	})
	assert.Error(t, err)
}

func TestPipeline_RerunIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	p := newTestPipeline(repo)

	_, err := p.Run(context.Background(), testBatch())
	require.NoError(t, err)
	first := repo.unit("semiconductor")

	_, err = p.Run(context.Background(), testBatch())
	require.NoError(t, err)
	second := repo.unit("semiconductor")

	assert.Equal(t, first.Sentiment, second.Sentiment)
	assert.Equal(t, first.Metrics.DataQuality, second.Metrics.DataQuality)
	assert.Equal(t, len(first.Gappers), len(second.Gappers))
}
