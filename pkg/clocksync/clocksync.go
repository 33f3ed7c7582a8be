package clocksync

import (
	"sync"
	"time"
)

const DefaultWindowSize = 8

// Measurement is one completed clock exchange. All timestamps are epoch
// milliseconds: t0 client send, t1 server receive, t2 server send, t3
// client receive.
type Measurement struct {
	T0 int64
	T1 int64
	T2 int64
	T3 int64
}

func (m Measurement) Offset() float64 {
	return float64((m.T1-m.T0)+(m.T2-m.T3)) / 2
}

func (m Measurement) RoundTrip() float64 {
	return float64((m.T3 - m.T0) - (m.T2 - m.T1))
}

// Estimator accumulates clock measurements against a single time authority
// in a fixed-capacity rolling window and exposes the window means as the
// current offset and round-trip estimates.
type Estimator struct {
	mu       sync.Mutex
	window   []Measurement
	capacity int
	filled   bool
	pending  map[int64]struct{}
}

func NewEstimator(capacity int) *Estimator {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}

	return &Estimator{
		window:   make([]Measurement, 0, capacity),
		capacity: capacity,
		pending:  make(map[int64]struct{}),
	}
}

// Begin registers an outgoing request keyed by its send timestamp.
func (e *Estimator) Begin(t0 int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending[t0] = struct{}{}
}

// Complete matches a response to a pending request and pushes the resulting
// measurement. Responses for unknown t0 values are dropped: they belong to
// a previous connection and must not pollute the window.
func (e *Estimator) Complete(m Measurement) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.pending[m.T0]; !ok {
		return false
	}
	delete(e.pending, m.T0)

	if len(e.window) == e.capacity {
		// FIFO eviction
		e.window = append(e.window[:0], e.window[1:]...)
		e.window = append(e.window, m)
		e.filled = true
	} else {
		e.window = append(e.window, m)
		if len(e.window) == e.capacity {
			e.filled = true
		}
	}

	return true
}

// Offset returns the mean clock offset of the window in milliseconds.
func (e *Estimator) Offset() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.window) == 0 {
		return 0
	}

	var sum float64
	for _, m := range e.window {
		sum += m.Offset()
	}

	return sum / float64(len(e.window))
}

// RoundTrip returns the mean round-trip of the window in milliseconds.
func (e *Estimator) RoundTrip() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.window) == 0 {
		return 0
	}

	var sum float64
	for _, m := range e.window {
		sum += m.RoundTrip()
	}

	return sum / float64(len(e.window))
}

// Synced reports whether the window has reached capacity at least once.
func (e *Estimator) Synced() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.filled
}

func (e *Estimator) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.window)
}

// Reset discards the window and all pending requests. Called on reconnect:
// offsets measured over a previous network path must not be reused.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.window = e.window[:0]
	e.filled = false
	e.pending = make(map[int64]struct{})
}

// WaitUntil converts an absolute server-stamped execute time into a local
// wait, given the local clock and the current offset estimate. Never
// negative: a stamp already in the past executes immediately.
func WaitUntil(serverTimeToExecute, localNow int64, offset float64) time.Duration {
	waitMs := float64(serverTimeToExecute) - (float64(localNow) + offset)
	if waitMs < 0 {
		waitMs = 0
	}

	return time.Duration(waitMs * float64(time.Millisecond))
}
