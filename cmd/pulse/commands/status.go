package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sectorpulse/internal/contracts"
	"github.com/wonny/sectorpulse/internal/store"
	"github.com/wonny/sectorpulse/pkg/config"
	"github.com/wonny/sectorpulse/pkg/database"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "타임프레임별 최신 시그널 현황",
	Long: `모든 타임프레임의 섹터별 최신 시그널을 출력합니다.

Example:
  go run ./cmd/pulse status
  go run ./cmd/pulse status --timeframe 1d`,
	RunE: runStatus,
}

var statusTimeframe string

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusTimeframe, "timeframe", "", "특정 타임프레임만 조회 (30m|1d|3d|1w)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== SectorPulse Status ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	repo := store.NewRepository(db.Pool)

	timeframes := contracts.AllTimeframes()
	if statusTimeframe != "" {
		tf, err := contracts.ParseTimeframe(statusTimeframe)
		if err != nil {
			return err
		}
		timeframes = []contracts.Timeframe{tf}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, tf := range timeframes {
		snaps, err := repo.LatestAll(ctx, tf)
		if err != nil {
			return fmt.Errorf("latest snapshots for %s: %w", tf, err)
		}

		fmt.Printf("\n📊 %s (%d sectors)\n", tf, len(snaps))
		for _, snap := range snaps {
			s := snap.Sentiment
			line := fmt.Sprintf("   %-20s score=%+.4f weighted=%+.4f bucket=%s",
				s.Sector, s.Score, s.WeightedScore, s.BucketTS.Format("2006-01-02 15:04"))
			if snap.Metrics != nil {
				line += fmt.Sprintf(" status=%s conf=%.2f n=%d",
					snap.Metrics.Status, snap.Metrics.ConfidenceLevel, snap.Metrics.SampleSize)
			}
			fmt.Println(line)
		}
	}

	return nil
}
