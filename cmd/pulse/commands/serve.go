package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sectorpulse/internal/accuracy"
	"github.com/wonny/sectorpulse/internal/api"
	"github.com/wonny/sectorpulse/internal/api/handlers"
	"github.com/wonny/sectorpulse/internal/contracts"
	"github.com/wonny/sectorpulse/internal/engine"
	"github.com/wonny/sectorpulse/internal/ingest"
	"github.com/wonny/sectorpulse/internal/scheduler"
	"github.com/wonny/sectorpulse/internal/scheduler/jobs"
	"github.com/wonny/sectorpulse/internal/store"
	"github.com/wonny/sectorpulse/internal/universe"
	"github.com/wonny/sectorpulse/pkg/config"
	"github.com/wonny/sectorpulse/pkg/database"
	"github.com/wonny/sectorpulse/pkg/logger"
	"github.com/wonny/sectorpulse/pkg/redis"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 서버 + 스케줄러 시작",
	Long: `집계 엔진 전체를 시작합니다.

관측치 인테이크는 메모리 버퍼이므로 API 서버와 롤업 스케줄러는
반드시 같은 프로세스에서 함께 실행됩니다.

이 명령어는:
- 관측치 인테이크 엔드포인트 제공
- 타임프레임별 롤업 Job 스케줄
- 라이프사이클/정확도/유니버스 Job 스케줄
- 시그널 조회 엔드포인트 및 웹소켓 푸시 제공

Endpoints:
  GET  /health
  POST /api/observations
  GET  /api/sectors/{timeframe}/latest
  GET  /api/sectors/{timeframe}/{sector}/latest
  GET  /api/sectors/{timeframe}/{sector}/history
  GET  /api/sectors/{timeframe}/{sector}/metrics
  GET  /api/sectors/{timeframe}/{sector}/gappers
  GET  /api/jobs
  GET  /api/ws

Example:
  go run ./cmd/pulse serve
  go run ./cmd/pulse serve --port 8080`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (기본: PORT env)")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== SectorPulse ===")

	// 1. Load config (lifecycle ordering and engine bounds validated here;
	//    a bad policy fails the process before anything is scheduled)
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if servePort != "" {
		cfg.Port = servePort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing SectorPulse")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 4. Redis cache (optional; no-op when disabled)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "sectorpulse")

	// 5. Universe index, loaded once before anything runs
	universeRepo := universe.NewRepository(db.Pool)
	index := universe.NewIndex(log)

	entries, err := universeRepo.LoadAll(context.Background())
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}
	index.Reload(entries)
	log.WithField("symbols", index.Size()).Info("Universe index loaded")

	// 6. Core components
	signalRepo := store.NewRepository(db.Pool)
	intake := ingest.NewIntake(log)
	pipeline := engine.NewPipeline(cfg.Engine, signalRepo, index, log)

	lifecycle, err := store.NewLifecycle(db.Pool, store.PoliciesFromConfig(cfg.Lifecycle), log)
	if err != nil {
		return fmt.Errorf("init lifecycle: %w", err)
	}

	backfiller := accuracy.NewBackfiller(db.Pool, signalRepo, log.Zerolog())

	// 7. Live push hub
	hub := api.NewHub(log)

	// 8. Scheduler with all jobs
	sched := scheduler.New(log)
	for _, tf := range contracts.AllTimeframes() {
		if err := sched.AddJob(jobs.NewRollupJob(tf, intake, pipeline, hub, log)); err != nil {
			return fmt.Errorf("register rollup job: %w", err)
		}
	}
	if err := sched.AddJob(jobs.NewLifecycleJob(lifecycle, log)); err != nil {
		return fmt.Errorf("register lifecycle job: %w", err)
	}
	if err := sched.AddJob(jobs.NewAccuracyJob(backfiller, log)); err != nil {
		return fmt.Errorf("register accuracy job: %w", err)
	}
	if err := sched.AddJob(jobs.NewUniverseJob(universeRepo, index, log)); err != nil {
		return fmt.Errorf("register universe job: %w", err)
	}

	// 9. HTTP surface
	signalHandler := handlers.NewSignalHandler(signalRepo, cache, log)
	obsHandler := handlers.NewObservationHandler(intake, cfg.Ingest.MaxBatchSize, log)
	jobsHandler := handlers.NewJobsHandler(sched, log)

	router := api.NewRouter(signalHandler, obsHandler, jobsHandler, hub, cfg.Ingest, log)
	server := api.New(cfg, log, router)

	// 10. Start everything
	sched.Start()
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nScheduled jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Stopped")
	return nil
}
