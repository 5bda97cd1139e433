package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sectorpulse/internal/store"
	"github.com/wonny/sectorpulse/pkg/config"
	"github.com/wonny/sectorpulse/pkg/database"
	"github.com/wonny/sectorpulse/pkg/logger"
)

// lifecycleCmd represents the lifecycle command
var lifecycleCmd = &cobra.Command{
	Use:   "lifecycle",
	Short: "압축/보존 스윕 1회 실행",
	Long: `타임프레임별 압축/보존 스윕을 즉시 한 번 실행합니다.

압축이 먼저, 삭제는 압축된 행만 대상입니다.

Example:
  go run ./cmd/pulse lifecycle`,
	RunE: runLifecycle,
}

func init() {
	rootCmd.AddCommand(lifecycleCmd)
}

func runLifecycle(cmd *cobra.Command, args []string) error {
	fmt.Println("=== SectorPulse Lifecycle Sweep ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	lifecycle, err := store.NewLifecycle(db.Pool, store.PoliciesFromConfig(cfg.Lifecycle), log)
	if err != nil {
		return fmt.Errorf("init lifecycle: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	results, err := lifecycle.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	fmt.Println("\n✅ Sweep completed")
	for _, r := range results {
		fmt.Printf("   %-4s compressed=%d deleted=%d\n", r.Timeframe, r.Compressed, r.Deleted)
	}

	return nil
}
