package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Engine
	Engine EngineConfig

	// Lifecycle (per-timeframe retention/compression policy)
	Lifecycle LifecycleConfig

	// Ingest
	Ingest IngestConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// EngineConfig holds sentiment engine thresholds
// 배치 통계 파라미터 SSOT
type EngineConfig struct {
	MinOutlierSample int     // outlier removal skipped below this sample size
	MinWarnSample    int     // sample_size_warning fires below this (>= MinOutlierSample)
	Alpha            float64 // significance test alpha (two-tailed)
	OutlierSigma     float64 // outlier fence in standard deviations
	GapperTopN       int     // gappers emitted per sector per type
	ScoreBound       float64 // sentiment score clipped to [-bound, +bound]
	NormScalePct     float64 // percent change mapped through tanh(pct/scale)
	ConfidenceFloor  float64 // confidence never degrades below this
	Workers          int     // parallel sector workers per batch run
}

// TimeframePolicy holds lifecycle ages for one timeframe collection
type TimeframePolicy struct {
	CompressAfter time.Duration
	RetainFor     time.Duration
}

// LifecycleConfig holds per-timeframe lifecycle policies
type LifecycleConfig struct {
	M30 TimeframePolicy
	D1  TimeframePolicy
	D3  TimeframePolicy
	W1  TimeframePolicy
}

// IngestConfig holds observation intake limits
type IngestConfig struct {
	RateLimit    float64 // requests per second on the ingest endpoint
	Burst        int
	MaxBatchSize int // observations per batch; larger batches are rejected
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8091"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// Engine
		Engine: EngineConfig{
			MinOutlierSample: getEnvAsInt("ENGINE_MIN_OUTLIER_SAMPLE", 5),
			MinWarnSample:    getEnvAsInt("ENGINE_MIN_WARN_SAMPLE", 8),
			Alpha:            getEnvAsFloat("ENGINE_ALPHA", 0.05),
			OutlierSigma:     getEnvAsFloat("ENGINE_OUTLIER_SIGMA", 3.0),
			GapperTopN:       getEnvAsInt("ENGINE_GAPPER_TOP_N", 3),
			ScoreBound:       getEnvAsFloat("ENGINE_SCORE_BOUND", 1.0),
			NormScalePct:     getEnvAsFloat("ENGINE_NORM_SCALE_PCT", 5.0),
			ConfidenceFloor:  getEnvAsFloat("ENGINE_CONFIDENCE_FLOOR", 0.2),
			Workers:          getEnvAsInt("ENGINE_WORKERS", 8),
		},

		// Lifecycle
		Lifecycle: LifecycleConfig{
			M30: TimeframePolicy{
				CompressAfter: getEnvAsDuration("LIFECYCLE_COMPRESS_30M", "48h"),
				RetainFor:     getEnvAsDuration("LIFECYCLE_RETAIN_30M", "336h"), // 14 days
			},
			D1: TimeframePolicy{
				CompressAfter: getEnvAsDuration("LIFECYCLE_COMPRESS_1D", "168h"), // 7 days
				RetainFor:     getEnvAsDuration("LIFECYCLE_RETAIN_1D", "2160h"),  // 90 days
			},
			D3: TimeframePolicy{
				CompressAfter: getEnvAsDuration("LIFECYCLE_COMPRESS_3D", "336h"), // 14 days
				RetainFor:     getEnvAsDuration("LIFECYCLE_RETAIN_3D", "4320h"),  // 180 days
			},
			W1: TimeframePolicy{
				CompressAfter: getEnvAsDuration("LIFECYCLE_COMPRESS_1W", "720h"), // 30 days
				RetainFor:     getEnvAsDuration("LIFECYCLE_RETAIN_1W", "8760h"),  // 365 days
			},
		},

		// Ingest
		Ingest: IngestConfig{
			RateLimit:    getEnvAsFloat("INGEST_RATE_LIMIT", 20),
			Burst:        getEnvAsInt("INGEST_BURST", 40),
			MaxBatchSize: getEnvAsInt("INGEST_MAX_BATCH", 10000),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
// Lifecycle 순서 위반과 engine 범위 위반은 startup에서 거부 (batch time에는 절대 안 남)
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if err := c.Engine.validate(); err != nil {
		return err
	}

	return c.Lifecycle.validate()
}

func (e *EngineConfig) validate() error {
	if e.GapperTopN <= 0 {
		return fmt.Errorf("ENGINE_GAPPER_TOP_N must be positive, got %d", e.GapperTopN)
	}
	if e.Alpha <= 0 || e.Alpha >= 0.5 {
		return fmt.Errorf("ENGINE_ALPHA must be in (0, 0.5), got %v", e.Alpha)
	}
	if e.OutlierSigma <= 0 {
		return fmt.Errorf("ENGINE_OUTLIER_SIGMA must be positive, got %v", e.OutlierSigma)
	}
	if e.ScoreBound <= 0 {
		return fmt.Errorf("ENGINE_SCORE_BOUND must be positive, got %v", e.ScoreBound)
	}
	if e.MinOutlierSample < 2 {
		return fmt.Errorf("ENGINE_MIN_OUTLIER_SAMPLE must be at least 2, got %d", e.MinOutlierSample)
	}
	if e.MinWarnSample < e.MinOutlierSample {
		return fmt.Errorf("ENGINE_MIN_WARN_SAMPLE (%d) must be >= ENGINE_MIN_OUTLIER_SAMPLE (%d)",
			e.MinWarnSample, e.MinOutlierSample)
	}
	if e.ConfidenceFloor < 0 || e.ConfidenceFloor >= 1 {
		return fmt.Errorf("ENGINE_CONFIDENCE_FLOOR must be in [0, 1), got %v", e.ConfidenceFloor)
	}
	if e.Workers <= 0 {
		return fmt.Errorf("ENGINE_WORKERS must be positive, got %d", e.Workers)
	}
	return nil
}

func (l *LifecycleConfig) validate() error {
	policies := map[string]TimeframePolicy{
		"30M": l.M30,
		"1D":  l.D1,
		"3D":  l.D3,
		"1W":  l.W1,
	}
	for name, p := range policies {
		if p.CompressAfter <= 0 {
			return fmt.Errorf("LIFECYCLE_COMPRESS_%s must be positive", name)
		}
		// Retention must strictly exceed compression age so rows are always
		// compressed before they become eligible for deletion.
		if p.RetainFor <= p.CompressAfter {
			return fmt.Errorf("LIFECYCLE_RETAIN_%s (%v) must exceed LIFECYCLE_COMPRESS_%s (%v)",
				name, p.RetainFor, name, p.CompressAfter)
		}
	}
	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
