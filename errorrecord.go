package apmz

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrorRecord is a snapshot of a captured error. It is not timed.
type ErrorRecord struct {
	eventCore
	message string
	errType string
	frames  []Frame
}

// NewErrorRecord captures err. The stack is taken from err when it
// implements StackFramer, otherwise from the caller.
func NewErrorRecord(err error, contexts Contexts, opts EventOptions) (*ErrorRecord, error) {
	core, cerr := newEventCore(opts.IDs, opts.Clock, opts.Provider, contexts)
	if cerr != nil {
		return nil, cerr
	}

	rec := &ErrorRecord{eventCore: core}
	if err == nil {
		rec.message = "<nil>"
		rec.errType = "<nil>"
		return rec, nil
	}

	rec.message = err.Error()
	rec.errType = fmt.Sprintf("%T", innermost(err))

	var sf StackFramer
	if errors.As(err, &sf) {
		rec.frames = sf.StackFrames()
	} else {
		rec.frames = trimInternal(captureFrames(0, opts.BacktraceLimit))
	}
	return rec, nil
}

// internalFrames are the capture path frames dropped from the top of an error stack.
var internalFrames = []string{
	pkgPath + ".NewErrorRecord",
	pkgPath + ".(*DefaultFactory).NewError",
	pkgPath + ".(*Agent).CaptureError",
}

const pkgPath = "github.com/zoobzio/apmz"

func trimInternal(frames []Frame) []Frame {
	for len(frames) > 0 && slices.Contains(internalFrames, frames[0].Function) {
		frames = frames[1:]
	}
	return frames
}

func innermost(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// Message returns the captured error message.
func (e *ErrorRecord) Message() string { return e.message }

// Type returns the Go type name of the innermost wrapped error.
func (e *ErrorRecord) Type() string { return e.errType }

// StackFrames returns the captured stack.
func (e *ErrorRecord) StackFrames() []Frame {
	return append([]Frame(nil), e.frames...)
}

// Culprit names the function the error was captured in.
func (e *ErrorRecord) Culprit() string {
	if len(e.frames) == 0 {
		return ""
	}
	return e.frames[0].Function
}

// Exception is the error-specific detail on the wire.
type Exception struct {
	Message    string  `json:"message"`
	Type       string  `json:"type"`
	Stacktrace []Frame `json:"stacktrace"`
}

// errorJSON is the wire form of an error record.
//
//nolint:govet // Field order matches the intake schema
type errorJSON struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Culprit   string         `json:"culprit,omitempty"`
	Context   RequestContext `json:"context"`
	Exception Exception      `json:"exception"`
	Processor Processor      `json:"processor"`
}

// MarshalJSON implements json.Marshaler.
func (e *ErrorRecord) MarshalJSON() ([]byte, error) {
	frames := e.frames
	if frames == nil {
		frames = []Frame{}
	}
	return json.Marshal(errorJSON{
		ID:        e.id,
		Timestamp: e.timestamp,
		Culprit:   e.Culprit(),
		Context:   e.RequestContext(),
		Exception: Exception{
			Message:    e.message,
			Type:       e.errType,
			Stacktrace: frames,
		},
		Processor: Processor{Event: "error", Name: "error"},
	})
}
