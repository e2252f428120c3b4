package apmz

import "errors"

// Timer errors.
var (
	ErrTimerNotStarted = errors.New("timer not started")
	ErrTimerNotStopped = errors.New("timer not stopped")
)

// Lookup and registration errors. The duplicate errors wrap ErrDuplicateName
// so callers can match either the general or the specific condition.
var (
	ErrUnknownTransaction = errors.New("unknown transaction")
	ErrUnknownSpan        = errors.New("unknown span")

	ErrDuplicateName            = errors.New("duplicate name")
	ErrDuplicateTransactionName = wrapDuplicate("transaction")
	ErrDuplicateSpanName        = wrapDuplicate("span")
)

// Construction errors.
var (
	ErrMissingRequiredConfiguration = errors.New("missing required configuration")
	ErrMissingAppName               = &configError{field: "app_name"}
	ErrIdentity                     = errors.New("event identity could not be generated")
)

type duplicateError struct {
	kind string
}

func wrapDuplicate(kind string) error { return &duplicateError{kind: kind} }

func (e *duplicateError) Error() string { return e.kind + " " + ErrDuplicateName.Error() }

func (*duplicateError) Unwrap() error { return ErrDuplicateName }

type configError struct {
	field string
}

func (e *configError) Error() string {
	return ErrMissingRequiredConfiguration.Error() + ": " + e.field
}

func (*configError) Unwrap() error { return ErrMissingRequiredConfiguration }
