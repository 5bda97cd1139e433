package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/wonny/sectorpulse/internal/api/handlers"
	"github.com/wonny/sectorpulse/pkg/config"
	"github.com/wonny/sectorpulse/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(
	signalHandler *handlers.SignalHandler,
	obsHandler *handlers.ObservationHandler,
	jobsHandler *handlers.JobsHandler,
	hub *Hub,
	ingestCfg config.IngestConfig,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Signal reads
	api.HandleFunc("/sectors/{timeframe}/latest", signalHandler.GetLatestAll).Methods("GET")
	api.HandleFunc("/sectors/{timeframe}/{sector}/latest", signalHandler.GetLatestBySector).Methods("GET")
	api.HandleFunc("/sectors/{timeframe}/{sector}/history", signalHandler.GetSentimentHistory).Methods("GET")
	api.HandleFunc("/sectors/{timeframe}/{sector}/metrics", signalHandler.GetMetricsHistory).Methods("GET")
	api.HandleFunc("/sectors/{timeframe}/{sector}/gappers", signalHandler.GetGappers).Methods("GET")

	// Observation intake, rate limited per process
	limiter := rate.NewLimiter(rate.Limit(ingestCfg.RateLimit), ingestCfg.Burst)
	api.Handle("/observations", rateLimitMiddleware(limiter)(http.HandlerFunc(obsHandler.Accept))).Methods("POST")
	api.HandleFunc("/observations/pending", obsHandler.Pending).Methods("GET")

	// Scheduler introspection (absent in api-only mode)
	if jobsHandler != nil {
		api.HandleFunc("/jobs", jobsHandler.GetStats).Methods("GET")
		api.HandleFunc("/jobs/{name}/history", jobsHandler.GetHistory).Methods("GET")
		api.HandleFunc("/jobs/{name}/run", jobsHandler.Trigger).Methods("POST")
	}

	// Live push
	if hub != nil {
		api.HandleFunc("/ws", hub.HandleWS).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "sectorpulse-api",
	})
}

// rateLimitMiddleware rejects requests beyond the configured ingest rate
func rateLimitMiddleware(limiter *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Ingest rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
