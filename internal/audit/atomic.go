package audit

import (
	"context"
	"net/http"
	"sync/atomic"
)

// AtomicLogger wraps a Logger behind an atomic pointer so that a new logger
// built from reloaded configuration can replace the active one without
// pausing request handling.
type AtomicLogger struct {
	ptr atomic.Pointer[Logger]
}

// NewAtomicLogger creates an AtomicLogger holding the given logger. A nil
// logger is replaced with the no-op implementation.
func NewAtomicLogger(l Logger) *AtomicLogger {
	if l == nil {
		l = NewNopLogger()
	}
	a := &AtomicLogger{}
	a.ptr.Store(&l)
	return a
}

// Record delegates to the current logger.
func (a *AtomicLogger) Record(ctx context.Context, entry *Entry, err error, r *http.Request) {
	(*a.ptr.Load()).Record(ctx, entry, err, r)
}

// Close closes the current logger.
func (a *AtomicLogger) Close() error {
	return (*a.ptr.Load()).Close()
}

// Swap installs a new logger and returns the previous one so the caller can
// close it once in-flight writes have drained. A nil replacement installs
// the no-op logger.
func (a *AtomicLogger) Swap(l Logger) Logger {
	if l == nil {
		l = NewNopLogger()
	}
	return *a.ptr.Swap(&l)
}

// Load returns the current logger.
func (a *AtomicLogger) Load() Logger {
	return *a.ptr.Load()
}

var _ Logger = (*AtomicLogger)(nil)
