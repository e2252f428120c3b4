package apmz

import (
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestTimerStopBeforeStart(t *testing.T) {
	timer := NewTimer(clockz.NewFakeClock())

	if err := timer.Stop(); !errors.Is(err, ErrTimerNotStarted) {
		t.Errorf("Expected ErrTimerNotStarted, got %v", err)
	}
}

func TestTimerDurationBeforeStop(t *testing.T) {
	timer := NewTimer(clockz.NewFakeClock())

	// Never started.
	if _, err := timer.Duration(); !errors.Is(err, ErrTimerNotStopped) {
		t.Errorf("Expected ErrTimerNotStopped, got %v", err)
	}

	// Running.
	timer.Start()
	if _, err := timer.Duration(); !errors.Is(err, ErrTimerNotStopped) {
		t.Errorf("Expected ErrTimerNotStopped on running timer, got %v", err)
	}
}

func TestTimerDurationInMicroseconds(t *testing.T) {
	clock := clockz.NewFakeClockAt(testEpoch)
	timer := NewTimer(clock)

	timer.Start()
	clock.Advance(1500 * time.Millisecond)
	if err := timer.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	d, err := timer.Duration()
	if err != nil {
		t.Fatalf("Duration failed: %v", err)
	}
	if d != 1_500_000 {
		t.Errorf("Expected 1500000us, got %f", d)
	}
}

func TestTimerElapsed(t *testing.T) {
	clock := clockz.NewFakeClockAt(testEpoch)
	timer := NewTimer(clock)

	if _, err := timer.Elapsed(); !errors.Is(err, ErrTimerNotStarted) {
		t.Errorf("Expected ErrTimerNotStarted, got %v", err)
	}

	timer.Start()
	clock.Advance(250 * time.Microsecond)

	elapsed, err := timer.Elapsed()
	if err != nil {
		t.Fatalf("Elapsed failed: %v", err)
	}
	if elapsed != 250 {
		t.Errorf("Expected 250us while running, got %f", elapsed)
	}

	if err := timer.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	clock.Advance(time.Second)

	// Stopped timers report the final duration.
	elapsed, err = timer.Elapsed()
	if err != nil {
		t.Fatalf("Elapsed failed: %v", err)
	}
	d, _ := timer.Duration()
	if elapsed != d || elapsed != 250 {
		t.Errorf("Expected elapsed %f to equal duration 250, got %f", d, elapsed)
	}
}

func TestTimerRestartClearsStop(t *testing.T) {
	clock := clockz.NewFakeClockAt(testEpoch)
	timer := NewTimer(clock)

	timer.Start()
	clock.Advance(time.Millisecond)
	_ = timer.Stop()

	timer.Start()
	if _, err := timer.Duration(); !errors.Is(err, ErrTimerNotStopped) {
		t.Errorf("Expected restart to clear the stop, got %v", err)
	}

	clock.Advance(2 * time.Millisecond)
	_ = timer.Stop()
	if d, _ := timer.Duration(); d != 2000 {
		t.Errorf("Expected 2000us after restart, got %f", d)
	}
}

func TestTimerRealClock(t *testing.T) {
	timer := NewTimer(nil)
	timer.Start()
	if err := timer.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if d, err := timer.Duration(); err != nil || d < 0 {
		t.Errorf("Expected non-negative duration, got %f (%v)", d, err)
	}
}

func TestDurationRounding(t *testing.T) {
	if got := toMillis(1234.5678); got != 1.235 {
		t.Errorf("Expected 1.235ms, got %f", got)
	}
	if got := round3(0.0004); got != 0 {
		t.Errorf("Expected 0, got %f", got)
	}
}
