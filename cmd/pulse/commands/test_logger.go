package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/sectorpulse/pkg/config"
	"github.com/wonny/sectorpulse/pkg/logger"
)

// testLoggerCmd represents the test-logger command
var testLoggerCmd = &cobra.Command{
	Use:   "test-logger",
	Short: "Logger 기능 테스트",
	Long: `구조화된 로깅 기능을 테스트합니다.

이 명령어는:
- JSON/Console 포맷 테스트
- 구조화된 필드 및 컴포넌트 로깅
- 에러 컨텍스트 로깅

Example:
  go run ./cmd/pulse test-logger`,
	RunE: runTestLogger,
}

func init() {
	rootCmd.AddCommand(testLoggerCmd)
}

func runTestLogger(cmd *cobra.Command, args []string) error {
	fmt.Println("=== SectorPulse Logger Test ===")

	fmt.Println("1. JSON Format (Production)")
	fmt.Println("--------------------------------")
	jsonLog := logger.New(&config.Config{Env: "production", LogLevel: "info", LogFormat: "json"})
	jsonLog.Info("Service started")
	jsonLog.Warn("Sample size below warning threshold")
	jsonLog.Error("Failed to persist sector unit")
	fmt.Println()

	fmt.Println("2. Console Format (Development)")
	fmt.Println("--------------------------------")
	consoleLog := logger.New(&config.Config{Env: "development", LogLevel: "debug", LogFormat: "console"})
	consoleLog.Debug("Draining intake buffer")
	consoleLog.Info("Rollup tick")
	consoleLog.Warn("Cache miss, reading from database")
	fmt.Println()

	fmt.Println("3. Structured Logging with Fields")
	fmt.Println("--------------------------------")
	jsonLog.WithFields(map[string]interface{}{
		"sector":      "semiconductor",
		"timeframe":   "1d",
		"sample_size": 42,
		"score":       0.3172,
	}).Info("Sector sentiment computed")

	jsonLog.Component("engine.pipeline").
		WithField("batch_id", "b-20260826-001").
		Info("Batch accepted")
	fmt.Println()

	fmt.Println("4. Error Logging")
	fmt.Println("--------------------------------")
	err := errors.New("connection timeout")
	jsonLog.WithError(err).
		WithFields(map[string]interface{}{
			"sector":   "biotech",
			"attempts": 3,
		}).
		Error("Sector persistence failed after retries")
	fmt.Println()

	fmt.Println("✅ All logger tests completed!")
	return nil
}
