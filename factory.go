package apmz

// EventFactory builds events. Substitute a custom factory to attach extra
// fields or instrumentation without wrapping the core types.
type EventFactory interface {
	NewError(err error, contexts Contexts) (*ErrorRecord, error)
	NewTransaction(name string, contexts Contexts) (*Transaction, error)
	NewSpan(name string, contexts Contexts) (*Span, error)
}

// DefaultFactory constructs the concrete event types.
type DefaultFactory struct {
	opts EventOptions
}

// NewDefaultFactory creates a factory that builds events with opts.
func NewDefaultFactory(opts EventOptions) *DefaultFactory {
	return &DefaultFactory{opts: opts}
}

// NewError implements EventFactory.
func (f *DefaultFactory) NewError(err error, contexts Contexts) (*ErrorRecord, error) {
	return NewErrorRecord(err, contexts, f.opts)
}

// NewTransaction implements EventFactory. Spans of the transaction are
// built by this factory too.
func (f *DefaultFactory) NewTransaction(name string, contexts Contexts) (*Transaction, error) {
	return NewTransaction(name, contexts, f, f.opts)
}

// NewSpan implements EventFactory.
func (f *DefaultFactory) NewSpan(name string, contexts Contexts) (*Span, error) {
	return NewSpan(name, contexts, f.opts)
}
