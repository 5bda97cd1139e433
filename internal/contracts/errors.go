package contracts

import (
	"errors"
	"fmt"
)

// ErrNoObservations signals an empty observation source: nothing buffered
// for the timeframe. The rollup absorbs it and skips the tick; it is never
// a failure.
var ErrNoObservations = errors.New("no pending observations")

// WriteError wraps a store failure for one sector's atomic unit.
// Raised only after bounded retries are exhausted; other sectors proceed.
type WriteError struct {
	Sector    string
	Timeframe Timeframe
	Attempts  int
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("persist %s/%s failed after %d attempts: %v",
		e.Timeframe, e.Sector, e.Attempts, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
