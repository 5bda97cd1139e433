package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/sectorpulse/internal/contracts"
	"github.com/wonny/sectorpulse/internal/engine"
	"github.com/wonny/sectorpulse/internal/store"
	"github.com/wonny/sectorpulse/internal/universe"
	"github.com/wonny/sectorpulse/pkg/config"
	"github.com/wonny/sectorpulse/pkg/database"
	"github.com/wonny/sectorpulse/pkg/logger"
)

// rollupCmd represents the rollup command
var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "관측치 파일로 롤업 1회 실행",
	Long: `JSON 관측치 배치 파일을 읽어 파이프라인을 한 번 실행합니다.

운영 중 놓친 배치를 재처리하거나 로컬에서 파이프라인을
검증할 때 사용합니다. 쓰기는 멱등 upsert이므로 같은 배치를
여러 번 실행해도 안전합니다.

File format:
  {
    "batch_id": "...",            (optional)
    "timeframe": "1d",
    "bucket_ts": "2026-08-25T16:00:00Z",
    "observations": [
      {"symbol": "005930", "sector": "semiconductor",
       "timestamp": "...", "price": 71000, "volume": 12000000, "pct_change": 1.4}
    ]
  }

Example:
  go run ./cmd/pulse rollup --file batch.json`,
	RunE: runRollup,
}

var rollupFile string

func init() {
	rootCmd.AddCommand(rollupCmd)

	rollupCmd.Flags().StringVar(&rollupFile, "file", "", "관측치 배치 JSON 파일 (필수)")
	rollupCmd.MarkFlagRequired("file")
}

func runRollup(cmd *cobra.Command, args []string) error {
	fmt.Println("=== SectorPulse Rollup ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	data, err := os.ReadFile(rollupFile)
	if err != nil {
		return fmt.Errorf("read batch file: %w", err)
	}

	var batch contracts.ObservationBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("parse batch file: %w", err)
	}
	if batch.BatchID == "" {
		batch.BatchID = uuid.NewString()
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	index := universe.NewIndex(log)
	entries, err := universe.NewRepository(db.Pool).LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}
	index.Reload(entries)

	pipeline := engine.NewPipeline(cfg.Engine, store.NewRepository(db.Pool), index, log)

	result, err := pipeline.Run(ctx, &batch)
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	fmt.Printf("\n✅ Rollup completed in %s\n", result.Duration)
	fmt.Printf("   Batch:        %s (%s)\n", result.BatchID, result.Timeframe)
	fmt.Printf("   Observations: %d (dropped invalid: %d, outside universe: %d, duplicate: %d)\n",
		result.Observations, result.DroppedInvalid, result.DroppedUniverse, result.DroppedDuplicate)
	fmt.Printf("   Sectors:      %d (neutral: %d, failed: %d)\n",
		result.Sectors, result.NeutralSectors, result.FailedSectors)

	for _, outcome := range result.Outcomes {
		if outcome.Status == contracts.BatchStatusFailed {
			fmt.Printf("   ❌ %s: %s\n", outcome.Sector, outcome.Error)
		}
	}

	if result.FailedSectors > 0 {
		return fmt.Errorf("%d sectors failed to persist", result.FailedSectors)
	}
	return nil
}
