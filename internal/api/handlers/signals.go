package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/sectorpulse/internal/contracts"
	"github.com/wonny/sectorpulse/pkg/logger"
	"github.com/wonny/sectorpulse/pkg/redis"
)

// SignalHandler serves sentiment, metrics and gapper reads
// ⭐ SSOT: 시그널 조회 API는 이 구조체에서만
type SignalHandler struct {
	repo   contracts.SignalRepository
	cache  *redis.Cache
	logger *logger.Logger
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(repo contracts.SignalRepository, cache *redis.Cache, log *logger.Logger) *SignalHandler {
	return &SignalHandler{
		repo:   repo,
		cache:  cache,
		logger: log,
	}
}

func parseTimeframe(r *http.Request) (contracts.Timeframe, bool) {
	tf, err := contracts.ParseTimeframe(mux.Vars(r)["timeframe"])
	return tf, err == nil
}

// GetLatestAll returns the newest snapshot for every sector
// GET /api/sectors/{timeframe}/latest
func (h *SignalHandler) GetLatestAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tf, ok := parseTimeframe(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid timeframe (valid: 30m, 1d, 3d, 1w)")
		return
	}

	cacheKey := redis.LatestAllKey(string(tf))
	var cached []contracts.SectorSnapshot
	if hit, err := h.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	snaps, err := h.repo.LatestAll(ctx, tf)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest snapshots")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve latest snapshots")
		return
	}

	if err := h.cache.Set(ctx, cacheKey, snaps, redis.TTLLatest); err != nil {
		h.logger.WithError(err).Warn("Failed to cache latest snapshots")
	}

	respondJSON(w, http.StatusOK, snaps)
}

// GetLatestBySector returns the newest snapshot for one sector
// GET /api/sectors/{timeframe}/{sector}/latest
func (h *SignalHandler) GetLatestBySector(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tf, ok := parseTimeframe(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid timeframe (valid: 30m, 1d, 3d, 1w)")
		return
	}
	sector := mux.Vars(r)["sector"]

	cacheKey := redis.LatestKey(string(tf), sector)
	var cached contracts.SectorSnapshot
	if hit, err := h.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	snap, err := h.repo.LatestBySector(ctx, tf, sector)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve latest snapshot")
		return
	}
	if snap == nil {
		respondError(w, http.StatusNotFound, "No signal history for sector")
		return
	}

	if err := h.cache.Set(ctx, cacheKey, snap, redis.TTLLatest); err != nil {
		h.logger.WithError(err).Warn("Failed to cache latest snapshot")
	}

	respondJSON(w, http.StatusOK, snap)
}

// rangeParams parses optional from/to query params, defaulting to the
// last 7 days
func rangeParams(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from, to := now.Add(-7*24*time.Hour), now

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, err
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, err
		}
		to = t
	}
	return from, to, nil
}

// GetSentimentHistory returns a sector's sentiment rows in a time range
// GET /api/sectors/{timeframe}/{sector}/history
func (h *SignalHandler) GetSentimentHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tf, ok := parseTimeframe(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid timeframe (valid: 30m, 1d, 3d, 1w)")
		return
	}
	sector := mux.Vars(r)["sector"]

	from, to, err := rangeParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid time range (expected RFC3339)")
		return
	}

	rows, err := h.repo.SentimentRange(ctx, tf, sector, from, to)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get sentiment history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve sentiment history")
		return
	}

	respondJSON(w, http.StatusOK, rows)
}

// GetMetricsHistory returns a sector's quality records in a time range
// GET /api/sectors/{timeframe}/{sector}/metrics
func (h *SignalHandler) GetMetricsHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tf, ok := parseTimeframe(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid timeframe (valid: 30m, 1d, 3d, 1w)")
		return
	}
	sector := mux.Vars(r)["sector"]

	from, to, err := rangeParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid time range (expected RFC3339)")
		return
	}

	rows, err := h.repo.MetricsRange(ctx, tf, sector, from, to)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get metrics history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics history")
		return
	}

	respondJSON(w, http.StatusOK, rows)
}

// GetGappers returns the ranked gapper lists for one sector bucket
// GET /api/sectors/{timeframe}/{sector}/gappers?bucket_ts=...&type=bullish|bearish
func (h *SignalHandler) GetGappers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tf, ok := parseTimeframe(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid timeframe (valid: 30m, 1d, 3d, 1w)")
		return
	}
	sector := mux.Vars(r)["sector"]

	gapType := contracts.GapperType(r.URL.Query().Get("type"))
	if gapType != "" && gapType != contracts.GapperBullish && gapType != contracts.GapperBearish {
		respondError(w, http.StatusBadRequest, "Invalid gapper type (valid: bullish, bearish)")
		return
	}

	var bucketTS time.Time
	var cacheKey string
	if v := r.URL.Query().Get("bucket_ts"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid bucket_ts (expected RFC3339)")
			return
		}
		bucketTS = t
	} else {
		// Latest-bucket reads are the hot path; explicit buckets bypass the cache
		cacheKey = redis.GappersKey(string(tf), sector, string(gapType))
		var cached []contracts.Gapper
		if hit, err := h.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			respondJSON(w, http.StatusOK, cached)
			return
		}
		// Default: the sector's latest bucket
		snap, err := h.repo.LatestBySector(ctx, tf, sector)
		if err != nil {
			h.logger.WithError(err).Error("Failed to resolve latest bucket")
			respondError(w, http.StatusInternalServerError, "Failed to resolve latest bucket")
			return
		}
		if snap == nil {
			respondError(w, http.StatusNotFound, "No signal history for sector")
			return
		}
		bucketTS = snap.Sentiment.BucketTS
	}

	gappers, err := h.repo.GappersAt(ctx, tf, sector, bucketTS, gapType)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get gappers")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve gappers")
		return
	}

	if cacheKey != "" {
		if err := h.cache.Set(ctx, cacheKey, gappers, redis.TTLLatest); err != nil {
			h.logger.WithError(err).Warn("Failed to cache gappers")
		}
	}

	respondJSON(w, http.StatusOK, gappers)
}
