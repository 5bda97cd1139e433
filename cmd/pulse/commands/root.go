package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "SectorPulse - 섹터 센티먼트 집계 엔진",
	Long: `SectorPulse Unified CLI

섹터별 시장 관측치를 타임프레임별로 집계하여
품질 점수가 붙은 센티먼트 시계열을 생성합니다.

Usage:
  go run ./cmd/pulse [command]

Examples:
  go run ./cmd/pulse serve
  go run ./cmd/pulse rollup --file batch.json
  go run ./cmd/pulse lifecycle
  go run ./cmd/pulse test-db`,
	// Loads the explicit env file before any subcommand reads config.
	// Already-set process env still wins (godotenv never overrides).
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile == "" {
			return nil
		}
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
