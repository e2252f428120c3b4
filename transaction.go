package apmz

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Summary holds what a transaction records when it stops.
type Summary struct {
	Headers   map[string]string
	Backtrace []Frame
	// Duration is in milliseconds.
	Duration float64
}

// Transaction is a timed root operation owning zero or more named spans.
// Transactions are NOT thread-safe - do not modify from multiple goroutines.
type Transaction struct {
	eventCore
	factory       EventFactory
	timer         *Timer
	spansRegistry *Registry[*Span]
	sharedContext Contexts
	name          string
	spans         []*Span
	summary       Summary
	opts          EventOptions
	stopped       bool
}

// NewTransaction creates an unstarted transaction. Spans are created through
// factory; a nil factory builds plain spans with the same options.
func NewTransaction(name string, contexts Contexts, factory EventFactory, opts EventOptions) (*Transaction, error) {
	core, err := newEventCore(opts.IDs, opts.Clock, opts.Provider, contexts)
	if err != nil {
		return nil, err
	}
	if factory == nil {
		factory = NewDefaultFactory(opts)
	}

	shared := core.Contexts()
	shared.Response = nil

	return &Transaction{
		eventCore:     core,
		factory:       factory,
		timer:         NewTimer(opts.Clock),
		spansRegistry: NewRegistry[*Span](ErrDuplicateSpanName),
		sharedContext: shared,
		name:          name,
		summary:       Summary{Headers: map[string]string{}},
		opts:          opts,
	}, nil
}

// Name returns the transaction name.
func (t *Transaction) Name() string { return t.name }

// SetName renames the transaction. Renaming a registered transaction does not re-key it.
func (t *Transaction) SetName(name string) { t.name = name }

// Summary returns a copy of the transaction summary.
func (t *Transaction) Summary() Summary {
	s := t.summary
	s.Headers = maps.Clone(t.summary.Headers)
	if t.summary.Backtrace != nil {
		s.Backtrace = append([]Frame(nil), t.summary.Backtrace...)
	}
	return s
}

// Duration returns the transaction duration in milliseconds.
func (t *Transaction) Duration() float64 { return t.summary.Duration }

// Stopped reports whether the transaction has been stopped.
func (t *Transaction) Stopped() bool { return t.stopped }

// SetSharedContext replaces the context every new span starts from.
func (t *Transaction) SetSharedContext(shared Contexts) {
	t.sharedContext = MergeContexts(Contexts{}, shared)
}

// Start starts the transaction timer.
func (t *Transaction) Start() {
	t.timer.Start()
}

// Stop stops the transaction, recording the measured duration.
func (t *Transaction) Stop() {
	t.stop(nil)
}

// StopWithDuration stops the transaction, recording d instead of the measured duration.
func (t *Transaction) StopWithDuration(d time.Duration) {
	t.stop(&d)
}

func (t *Transaction) stop(override *time.Duration) {
	t.stopped = true
	t.spans = t.spansRegistry.Serialize()

	stopErr := t.timer.Stop()
	switch {
	case override != nil:
		t.summary.Duration = round3(float64(*override) / float64(time.Millisecond))
	case stopErr == nil:
		if micro, err := t.timer.Duration(); err == nil {
			t.summary.Duration = toMillis(micro)
		}
	}
	if stopErr != nil {
		return
	}

	if hs, ok := t.provider.(HeaderSource); ok {
		t.summary.Headers = maps.Clone(hs.DiagnosticHeaders())
		if t.summary.Headers == nil {
			t.summary.Headers = map[string]string{}
		}
	}
	if t.opts.Backtrace {
		// Skip stop and its exported caller.
		t.summary.Backtrace = captureFrames(2, t.opts.BacktraceLimit)
	}
}

// StartSpan creates, registers and starts a span.
// The transaction's shared context is merged under ctx.
// A span name may only be used once per transaction.
func (t *Transaction) StartSpan(name string, ctx Contexts) (*Span, error) {
	span, err := t.factory.NewSpan(name, MergeContexts(t.sharedContext, ctx))
	if err != nil {
		return nil, fmt.Errorf("creating span %q: %w", name, err)
	}
	if err := t.spansRegistry.Register(span); err != nil {
		return nil, err
	}
	span.Start()
	return span, nil
}

// AcquireSpan returns the span registered under name, restarting its timer,
// or starts a new one if none exists.
func (t *Transaction) AcquireSpan(name string, ctx Contexts) (*Span, error) {
	if span, ok := t.spansRegistry.Fetch(name); ok {
		span.Start()
		return span, nil
	}
	return t.StartSpan(name, ctx)
}

// StopSpan stops the named span and merges meta into it.
func (t *Transaction) StopSpan(name string, meta Meta) error {
	span, err := t.Span(name)
	if err != nil {
		return err
	}
	span.Stop()
	span.SetMeta(meta)
	return nil
}

// Span returns the span registered under name.
func (t *Transaction) Span(name string) (*Span, error) {
	span, ok := t.spansRegistry.Fetch(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSpan, name)
	}
	return span, nil
}

// Spans returns the span set that will be serialized: the snapshot taken at
// Stop (or given to SetSpans), or the registered spans while still running.
func (t *Transaction) Spans() []*Span {
	if t.spans == nil && !t.stopped {
		return t.spansRegistry.Serialize()
	}
	return append([]*Span(nil), t.spans...)
}

// SetSpans replaces the serialized span set.
func (t *Transaction) SetSpans(spans []*Span) {
	t.spans = append([]*Span(nil), spans...)
}

// Processor marks the event kind on the wire.
type Processor struct {
	Event string `json:"event"`
	Name  string `json:"name"`
}

// transactionJSON is the wire form of a transaction.
//
//nolint:govet // Field order matches the intake schema
type transactionJSON struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Name      string         `json:"name"`
	Duration  float64        `json:"duration"`
	Type      string         `json:"type"`
	Result    string         `json:"result"`
	Context   RequestContext `json:"context"`
	Spans     []*Span        `json:"spans"`
	Processor Processor      `json:"processor"`
}

// MarshalJSON implements json.Marshaler.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	spans := t.Spans()
	if spans == nil {
		spans = []*Span{}
	}
	return json.Marshal(transactionJSON{
		ID:        t.id,
		Timestamp: t.timestamp,
		Name:      t.name,
		Duration:  t.summary.Duration,
		Type:      t.meta.Type,
		Result:    t.meta.Result,
		Context:   t.RequestContext(),
		Spans:     spans,
		Processor: Processor{Event: "transaction", Name: "transaction"},
	})
}
