package contracts

import (
	"fmt"
	"time"
)

// Timeframe is a rollup horizon. Each timeframe has its own storage
// collections and lifecycle policy; key spaces never overlap.
// ⭐ SSOT: timeframe 정의는 여기서만
type Timeframe string

const (
	Timeframe30Min Timeframe = "30m"
	Timeframe1Day  Timeframe = "1d"
	Timeframe3Day  Timeframe = "3d"
	Timeframe1Week Timeframe = "1w"
)

// AllTimeframes lists every supported timeframe in cadence order
func AllTimeframes() []Timeframe {
	return []Timeframe{Timeframe30Min, Timeframe1Day, Timeframe3Day, Timeframe1Week}
}

// ParseTimeframe validates and converts a string to a Timeframe
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if !tf.Valid() {
		return "", fmt.Errorf("unknown timeframe: %q", s)
	}
	return tf, nil
}

// Valid reports whether the timeframe is one of the supported horizons
func (tf Timeframe) Valid() bool {
	switch tf {
	case Timeframe30Min, Timeframe1Day, Timeframe3Day, Timeframe1Week:
		return true
	}
	return false
}

// TableSuffix returns the per-timeframe collection suffix
// (e.g. signals.sector_sentiment_30m)
func (tf Timeframe) TableSuffix() string {
	return string(tf)
}

// Window returns the observation window covered by one bucket
func (tf Timeframe) Window() time.Duration {
	switch tf {
	case Timeframe30Min:
		return 30 * time.Minute
	case Timeframe1Day:
		return 24 * time.Hour
	case Timeframe3Day:
		return 72 * time.Hour
	case Timeframe1Week:
		return 7 * 24 * time.Hour
	}
	return 0
}

// CronSchedule returns the rollup cadence for this timeframe
// (6-field cron expressions, seconds first)
func (tf Timeframe) CronSchedule() string {
	switch tf {
	case Timeframe30Min:
		return "0 */30 * * * *" // every 30 minutes
	case Timeframe1Day:
		return "0 5 16 * * *" // daily at 16:05
	case Timeframe3Day:
		return "0 10 16 */3 * *" // every 3rd day at 16:10
	case Timeframe1Week:
		return "0 15 16 * * FRI" // weekly, Friday close
	}
	return ""
}
