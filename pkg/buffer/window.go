package buffer

import (
	"errors"
	"fmt"
	"sync"
)

// ErrOutOfWindow is returned when a requested range is not resident.
var ErrOutOfWindow = errors.New("buffer: range outside window")

// Window is a thread-safe sliding window over an element stream with
// absolute int64 indexing.
//
// Elements appended to the window occupy consecutive absolute positions
// starting at zero. The window retains the suffix [Base(), Total()) in
// memory; positions below Base() have been released with DropBefore and can
// no longer be read. Total() is monotonically non-decreasing until Reset.
type Window[T any] struct {
	mu   sync.Mutex
	buf  []T
	base int64 // absolute position of buf[0]
}

// NewWindow creates a Window with capacity for n retained elements before
// the backing slice first grows. The capacity is a hint, not a limit.
func NewWindow[T any](n int) *Window[T] {
	return &Window[T]{
		buf: make([]T, 0, n),
	}
}

// Append adds the elements of p at the high end of the window. The first
// element of p occupies absolute position Total() prior to the call.
func (w *Window[T]) Append(p []T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
}

// AppendZero adds n zero-valued elements at the high end of the window.
func (w *Window[T]) AppendZero(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var zero T
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, zero)
	}
}

// Total returns the absolute position one past the last appended element.
// Dropping storage does not decrease it.
func (w *Window[T]) Total() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.base + int64(len(w.buf))
}

// Base returns the absolute position of the first retained element.
func (w *Window[T]) Base() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.base
}

// Len returns the number of retained elements.
func (w *Window[T]) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf)
}

// Slice returns the retained elements in the absolute range [from, to).
//
// The returned slice aliases the window's backing storage and is only valid
// until the next Append, DropBefore, or Reset. Callers that hold the result
// across window mutations must copy it first.
func (w *Window[T]) Slice(from, to int64) ([]T, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	high := w.base + int64(len(w.buf))
	if from < w.base || to > high || from > to {
		return nil, fmt.Errorf("%w: [%d,%d) of [%d,%d)", ErrOutOfWindow, from, to, w.base, high)
	}
	return w.buf[from-w.base : to-w.base], nil
}

// DropBefore releases storage for all elements below the absolute position
// abs. Positions below Base() are already gone; positions at or above
// Total() clamp to dropping everything. Total() is unaffected.
func (w *Window[T]) DropBefore(abs int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if abs <= w.base {
		return
	}
	high := w.base + int64(len(w.buf))
	if abs > high {
		abs = high
	}
	n := int(abs - w.base)
	kept := copy(w.buf, w.buf[n:])
	w.buf = w.buf[:kept]
	w.base = abs
}

// Reset discards all elements and rewinds the absolute positions to zero.
// The backing capacity is retained.
func (w *Window[T]) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = w.buf[:0]
	w.base = 0
}
