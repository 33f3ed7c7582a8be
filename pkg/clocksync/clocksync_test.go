package clocksync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasurementFormulas(t *testing.T) {
	m := Measurement{T0: 1000, T1: 1050, T2: 1060, T3: 1120}

	assert.Equal(t, -5.0, m.Offset())
	assert.Equal(t, 110.0, m.RoundTrip())
}

func TestWindowEvictsOldestFirst(t *testing.T) {
	e := NewEstimator(3)

	for i := int64(0); i < 5; i++ {
		t0 := 1000 * i
		e.Begin(t0)
		// offset of each measurement is i*10
		ok := e.Complete(Measurement{T0: t0, T1: t0 + i*10, T2: t0 + i*10, T3: t0})
		require.True(t, ok)
	}

	assert.Equal(t, 3, e.Len())
	// window holds measurements 2,3,4 -> offsets 20,30,40
	assert.Equal(t, 30.0, e.Offset())
}

func TestSyncedOnlyOnceWindowFilled(t *testing.T) {
	e := NewEstimator(2)
	assert.False(t, e.Synced())

	e.Begin(1)
	e.Complete(Measurement{T0: 1, T1: 1, T2: 1, T3: 1})
	assert.False(t, e.Synced())

	e.Begin(2)
	e.Complete(Measurement{T0: 2, T1: 2, T2: 2, T3: 2})
	assert.True(t, e.Synced())
}

func TestCompleteDropsUnknownT0(t *testing.T) {
	e := NewEstimator(2)

	ok := e.Complete(Measurement{T0: 42, T1: 43, T2: 44, T3: 45})
	assert.False(t, ok)
	assert.Equal(t, 0, e.Len())
}

func TestResetClearsWindowAndPending(t *testing.T) {
	e := NewEstimator(2)
	e.Begin(1)
	e.Complete(Measurement{T0: 1, T1: 11, T2: 11, T3: 1})
	e.Begin(2)

	e.Reset()

	assert.Equal(t, 0, e.Len())
	assert.False(t, e.Synced())
	assert.Equal(t, 0.0, e.Offset())
	// the measurement begun before the reset must not complete
	assert.False(t, e.Complete(Measurement{T0: 2, T1: 3, T2: 3, T3: 4}))
}

func TestWaitUntilNeverNegative(t *testing.T) {
	assert.Equal(t, time.Duration(0), WaitUntil(1000, 2000, 0))
	assert.Equal(t, time.Duration(0), WaitUntil(1000, 900, 200))
	assert.Equal(t, 100*time.Millisecond, WaitUntil(1100, 1000, 0))
	// a positive offset means the local clock is behind the server
	assert.Equal(t, 50*time.Millisecond, WaitUntil(1100, 1000, 50))
}
