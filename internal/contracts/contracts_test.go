package contracts

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validObservation() SymbolObservation {
	return SymbolObservation{
		Symbol:    "AAA",
		Sector:    "semiconductor",
		Timestamp: time.Now().UTC(),
		Price:     125.5,
		Volume:    30000,
		PctChange: 2.4,
	}
}

func TestSymbolObservation_Validate(t *testing.T) {
	o := validObservation()
	assert.NoError(t, o.Validate())

	o = validObservation()
	o.Symbol = ""
	assert.Error(t, o.Validate())

	o = validObservation()
	o.Price = 0
	assert.Error(t, o.Validate())

	o = validObservation()
	o.Price = -10
	assert.Error(t, o.Validate())

	o = validObservation()
	o.Volume = -1
	assert.Error(t, o.Validate())

	// zero volume is legal, it just carries minimal weight downstream
	o = validObservation()
	o.Volume = 0
	assert.NoError(t, o.Validate())

	o = validObservation()
	o.PctChange = math.NaN()
	assert.Error(t, o.Validate())

	o = validObservation()
	o.PctChange = math.Inf(1)
	assert.Error(t, o.Validate())
}

func TestObservationBatch_Validate(t *testing.T) {
	b := ObservationBatch{
		BatchID:   "batch-1",
		Timeframe: Timeframe1Day,
		BucketTS:  time.Now().UTC(),
	}
	assert.NoError(t, b.Validate())

	missing := b
	missing.BatchID = ""
	assert.Error(t, missing.Validate())

	badTF := b
	badTF.Timeframe = "2h"
	assert.Error(t, badTF.Validate())

	noTS := b
	noTS.BucketTS = time.Time{}
	assert.Error(t, noTS.Validate())
}

func TestParseTimeframe(t *testing.T) {
	for _, tf := range AllTimeframes() {
		got, err := ParseTimeframe(string(tf))
		require.NoError(t, err)
		assert.Equal(t, tf, got)
	}

	_, err := ParseTimeframe("1m")
	assert.Error(t, err)

	_, err = ParseTimeframe("")
	assert.Error(t, err)
}

func TestTimeframe_Window(t *testing.T) {
	assert.Equal(t, 30*time.Minute, Timeframe30Min.Window())
	assert.Equal(t, 24*time.Hour, Timeframe1Day.Window())
	assert.Equal(t, 72*time.Hour, Timeframe3Day.Window())
	assert.Equal(t, 7*24*time.Hour, Timeframe1Week.Window())
}

func TestTimeframe_CronSchedules(t *testing.T) {
	for _, tf := range AllTimeframes() {
		assert.NotEmpty(t, tf.CronSchedule(), "timeframe %s needs a schedule", tf)
	}
}

func TestWriteError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	we := &WriteError{Sector: "biotech", Timeframe: Timeframe1Day, Attempts: 3, Err: cause}

	assert.ErrorIs(t, we, cause)
	assert.Contains(t, we.Error(), "biotech")
	assert.Contains(t, we.Error(), "3 attempts")
}
