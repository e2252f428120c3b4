package apmz

import (
	"math"
	"time"

	"github.com/zoobzio/clockz"
)

// Timer measures the duration of an event.
// Durations are reported in microseconds.
// Timers are NOT thread-safe.
type Timer struct {
	clock     clockz.Clock
	startedAt time.Time
	stoppedAt time.Time
	started   bool
	stopped   bool
}

// NewTimer creates a timer reading from the given clock.
// A nil clock falls back to the real clock.
func NewTimer(clock clockz.Clock) *Timer {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Timer{clock: clock}
}

// Start records the current time and clears any previous stop.
func (t *Timer) Start() {
	t.startedAt = t.clock.Now()
	t.started = true
	t.stopped = false
	t.stoppedAt = time.Time{}
}

// Stop records the current time.
func (t *Timer) Stop() error {
	if !t.started {
		return ErrTimerNotStarted
	}
	t.stoppedAt = t.clock.Now()
	t.stopped = true
	return nil
}

// Duration returns the time between Start and Stop in microseconds.
func (t *Timer) Duration() (float64, error) {
	if !t.stopped {
		return 0, ErrTimerNotStopped
	}
	return toMicro(t.stoppedAt.Sub(t.startedAt)), nil
}

// Elapsed returns the running time in microseconds, or the final
// duration once the timer is stopped.
func (t *Timer) Elapsed() (float64, error) {
	if !t.started {
		return 0, ErrTimerNotStarted
	}
	if t.stopped {
		return t.Duration()
	}
	return toMicro(t.clock.Now().Sub(t.startedAt)), nil
}

func toMicro(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}

// toMillis converts timer microseconds to the wire unit, rounded to 3 decimals.
func toMillis(micro float64) float64 {
	return round3(micro / 1000)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
