package logger

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/wonny/sectorpulse/pkg/config"
)

func testConfig(level, format string) *config.Config {
	return &config.Config{
		Env:       "development",
		LogLevel:  level,
		LogFormat: format,
	}
}

func TestNew(t *testing.T) {
	log := New(testConfig("debug", "json"))
	if log == nil {
		t.Fatal("New() returned nil")
	}

	// These must not panic
	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")
	log.Error("error message")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestWithFields(t *testing.T) {
	log := New(testConfig("info", "json"))

	derived := log.WithFields(map[string]interface{}{
		"sector":    "technology",
		"timeframe": "1d",
	})
	if derived == nil {
		t.Fatal("WithFields() returned nil")
	}
	derived.Info("fields attached")

	component := log.Component("engine.pipeline")
	if component == nil {
		t.Fatal("Component() returned nil")
	}
	component.Info("component attached")
}
