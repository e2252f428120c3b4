package apmz

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zoobzio/clockz"
)

// Agent identification reported to the collector.
const (
	AgentName    = "apmz"
	AgentVersion = "0.1.0"
)

// Transport delivers serialized batches to a collector.
// Implementations report failure through the return value and never panic.
type Transport interface {
	SendErrors(ctx context.Context, errs []*ErrorRecord) bool
	SendTransactions(ctx context.Context, txs []*Transaction) bool
}

// Agent records transactions and errors and flushes them through a Transport.
// One Agent per unit of work (for example one HTTP request) is the intended
// usage; the registries are locked, the events themselves are not.
//
//nolint:govet // Field order optimized for readability
type Agent struct {
	config        Config
	transport     Transport
	factory       EventFactory
	provider      ContextProvider
	clock         clockz.Clock
	logger        *slog.Logger
	sharedContext Contexts
	transactions  *Registry[*Transaction]
	errors        *Store[*ErrorRecord]
	timer         *Timer
	ids           IDSource
	sendMu        sync.Mutex
}

// Option configures an Agent.
type Option func(*Agent)

// WithSharedContext sets the user, custom and tag context every event starts from.
func WithSharedContext(shared Contexts) Option {
	return func(a *Agent) {
		a.sharedContext = Contexts{
			User:   shared.User,
			Custom: shared.Custom,
			Tags:   shared.Tags,
		}
	}
}

// WithEventFactory replaces the default event factory.
func WithEventFactory(factory EventFactory) Option {
	return func(a *Agent) { a.factory = factory }
}

// WithTransport sets the transport used by Send.
func WithTransport(transport Transport) Option {
	return func(a *Agent) { a.transport = transport }
}

// WithContextProvider sets the source of request metadata.
func WithContextProvider(provider ContextProvider) Option {
	return func(a *Agent) { a.provider = provider }
}

// WithClock sets the clock used for timers and timestamps.
// Enables clock injection for deterministic testing.
func WithClock(clock clockz.Clock) Option {
	return func(a *Agent) { a.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithIDSource sets the source of event identities.
func WithIDSource(ids IDSource) Option {
	return func(a *Agent) { a.ids = ids }
}

// New creates an agent. The config must carry an application name.
func New(cfg Config, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Agent{
		config:       cfg.withDefaults(),
		clock:        clockz.RealClock,
		logger:       slog.Default(),
		transactions: NewRegistry[*Transaction](ErrDuplicateTransactionName),
		errors:       NewStore[*ErrorRecord](),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.provider == nil {
		a.provider = NewCLIProvider()
	}
	if a.ids == nil {
		a.ids = defaultIDs()
	}
	// The configured env allow-list travels with the shared context so
	// every event filters its environment the same way.
	a.sharedContext.Env = a.config.Env
	if a.factory == nil {
		a.factory = NewDefaultFactory(EventOptions{
			IDs:            a.ids,
			Clock:          a.clock,
			Provider:       a.provider,
			Backtrace:      a.config.Backtrace,
			BacktraceLimit: a.config.BacktraceLimit,
		})
	}

	a.timer = NewTimer(a.clock)
	a.timer.Start()
	return a, nil
}

// Config returns the effective configuration.
func (a *Agent) Config() Config {
	return a.config
}

// Uptime returns the microseconds elapsed since the agent was created.
func (a *Agent) Uptime() float64 {
	elapsed, _ := a.timer.Elapsed() //nolint:errcheck // started in New
	return elapsed
}

// StartTransaction creates, registers and starts a transaction.
// The shared context is merged under ctx. A name may only be used once
// per flush cycle.
func (a *Agent) StartTransaction(name string, ctx Contexts) (*Transaction, error) {
	tx, err := a.factory.NewTransaction(name, MergeContexts(a.sharedContext, ctx))
	if err != nil {
		return nil, fmt.Errorf("creating transaction %q: %w", name, err)
	}
	if err := a.transactions.Register(tx); err != nil {
		return nil, err
	}
	tx.Start()
	return tx, nil
}

// StopTransaction stops the named transaction and merges meta into it.
func (a *Agent) StopTransaction(name string, meta Meta) error {
	tx, err := a.Transaction(name)
	if err != nil {
		return err
	}
	tx.Stop()
	tx.SetMeta(meta)
	return nil
}

// Transaction returns the transaction registered under name.
func (a *Agent) Transaction(name string) (*Transaction, error) {
	tx, ok := a.transactions.Fetch(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransaction, name)
	}
	return tx, nil
}

// CaptureError records err with the shared context merged under ctx.
// It never fails; an error that cannot be recorded is logged and dropped.
func (a *Agent) CaptureError(err error, ctx Contexts) {
	rec, ferr := a.factory.NewError(err, MergeContexts(a.sharedContext, ctx))
	if ferr != nil {
		a.logger.Error("dropping captured error", "error", err, "reason", ferr)
		return
	}
	a.errors.Register(rec)
}

// PendingErrors returns the number of buffered errors.
func (a *Agent) PendingErrors() int { return a.errors.Len() }

// PendingTransactions returns the number of buffered transactions.
func (a *Agent) PendingTransactions() int { return a.transactions.Len() }

// Send flushes buffered errors and transactions as two independent batches.
// Only the events of an accepted batch are removed; events recorded while a
// batch is in flight stay buffered for the next Send. Empty batches are
// skipped. Send returns false without touching the transport when the agent
// is inactive or has no transport. Concurrent calls are serialized.
func (a *Agent) Send(ctx context.Context) bool {
	if !a.config.Enabled() {
		a.logger.Debug("agent inactive, not sending")
		return false
	}
	if a.transport == nil {
		a.logger.Warn("no transport configured, not sending")
		return false
	}

	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	ok := true

	if !a.errors.IsEmpty() {
		batch := a.errors.Serialize()
		if a.transport.SendErrors(ctx, batch) {
			a.errors.Discard(len(batch))
			a.logger.Debug("sent batch", "batch", "errors", "count", len(batch))
		} else {
			ok = false
			a.logger.Warn("batch not accepted, keeping for retry", "batch", "errors", "count", len(batch))
		}
	}

	if !a.transactions.IsEmpty() {
		batch := a.transactions.Serialize()
		if a.transport.SendTransactions(ctx, batch) {
			a.transactions.Discard(batch)
			a.logger.Debug("sent batch", "batch", "transactions", "count", len(batch))
		} else {
			ok = false
			a.logger.Warn("batch not accepted, keeping for retry", "batch", "transactions", "count", len(batch))
		}
	}

	return ok
}
