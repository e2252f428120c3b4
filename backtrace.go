package apmz

import (
	"path/filepath"
	"runtime"
)

// defaultFrameLimit bounds stack captures when no limit is configured.
const defaultFrameLimit = 64

// Frame is a single call-stack entry.
type Frame struct {
	Function string `json:"function"`
	Filename string `json:"filename"`
	AbsPath  string `json:"abs_path"`
	Line     int    `json:"lineno"`
}

// StackFramer is implemented by errors that carry their own stack.
type StackFramer interface {
	StackFrames() []Frame
}

// captureFrames records the caller's stack, skipping skip frames above
// captureFrames itself. A limit <= 0 uses defaultFrameLimit.
func captureFrames(skip, limit int) []Frame {
	if limit <= 0 {
		limit = defaultFrameLimit
	}
	pcs := make([]uintptr, limit)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)
	for {
		f, more := frames.Next()
		out = append(out, Frame{
			Function: f.Function,
			Filename: filepath.Base(f.File),
			AbsPath:  f.File,
			Line:     f.Line,
		})
		if !more {
			break
		}
	}
	return out
}
