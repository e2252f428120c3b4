package apmz

import (
	"encoding/json"
	"time"

	"github.com/zoobzio/clockz"
)

// Span is a timed sub-operation of exactly one transaction.
// Spans are NOT thread-safe - do not modify from multiple goroutines.
type Span struct {
	eventCore
	timer    *Timer
	name     string
	duration float64
	stopped  bool
}

// NewSpan creates an unstarted span.
func NewSpan(name string, contexts Contexts, opts EventOptions) (*Span, error) {
	core, err := newEventCore(opts.IDs, opts.Clock, opts.Provider, contexts)
	if err != nil {
		return nil, err
	}
	return &Span{
		eventCore: core,
		timer:     NewTimer(opts.Clock),
		name:      name,
	}, nil
}

// Name returns the span name.
func (s *Span) Name() string { return s.name }

// SetName renames the span. Renaming a registered span does not re-key it.
func (s *Span) SetName(name string) { s.name = name }

// Duration returns the span duration in milliseconds.
// It is zero until the span is stopped.
func (s *Span) Duration() float64 { return s.duration }

// Stopped reports whether the span has been stopped.
func (s *Span) Stopped() bool { return s.stopped }

// Start starts (or restarts) the span timer.
func (s *Span) Start() {
	s.timer.Start()
}

// Stop stops the span and records the measured duration.
// A span that was never started keeps a zero duration.
func (s *Span) Stop() {
	if err := s.timer.Stop(); err != nil {
		return
	}
	s.stopped = true
	if micro, err := s.timer.Duration(); err == nil {
		s.duration = toMillis(micro)
	}
}

// StopWithDuration stops the span and records d instead of the measured duration.
func (s *Span) StopWithDuration(d time.Duration) {
	_ = s.timer.Stop() //nolint:errcheck // the override does not depend on the timer
	s.stopped = true
	s.duration = round3(float64(d) / float64(time.Millisecond))
}

// spanJSON is the wire form of a span.
//
//nolint:govet // Field order matches the intake schema
type spanJSON struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Name      string         `json:"name"`
	Duration  float64        `json:"duration"`
	Type      string         `json:"type"`
	Result    string         `json:"result"`
	Context   RequestContext `json:"context"`
}

// MarshalJSON implements json.Marshaler.
func (s *Span) MarshalJSON() ([]byte, error) {
	return json.Marshal(spanJSON{
		ID:        s.id,
		Timestamp: s.timestamp,
		Name:      s.name,
		Duration:  s.duration,
		Type:      s.meta.Type,
		Result:    s.meta.Result,
		Context:   s.RequestContext(),
	})
}

// EventOptions carries the collaborators every event is built with.
type EventOptions struct {
	IDs      IDSource
	Clock    clockz.Clock
	Provider ContextProvider
	// Backtrace enables call-stack capture when a transaction stops.
	Backtrace      bool
	BacktraceLimit int
}
