// Package handoff passes the newest processed frame from the capture
// goroutine to the presentation goroutine.
//
// A Slot holds at most one value. Submit never blocks: a value that was not
// taken yet is released and replaced. The consumer therefore always sees the
// most recent frame and never a backlog.
package handoff

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"
)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("handoff: closed")

// Releaser is implemented by values that own memory.
type Releaser interface {
	Release()
}

// Stats counts slot traffic.
type Stats struct {
	Submitted  uint64 `json:"submitted"`
	Delivered  uint64 `json:"delivered"`
	Superseded uint64 `json:"superseded"`
	Flushed    uint64 `json:"flushed"`
}

// Slot is a single-value mailbox with overwrite semantics.
type Slot[T Releaser] struct {
	mu      sync.Mutex
	pending T
	has     bool
	closed  bool

	ready chan struct{} // size 1, signaled when pending is set
	done  chan struct{}

	submitted  atomic.Uint64
	delivered  atomic.Uint64
	superseded atomic.Uint64
	flushed    atomic.Uint64
}

// New creates an empty slot.
func New[T Releaser]() *Slot[T] {
	return &Slot[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Submit stores v, releasing any value still waiting. After Close, v is
// released immediately. It returns false if v did not stay in the slot.
func (s *Slot[T]) Submit(v T) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		v.Release()
		return false
	}
	old, hadOld := s.pending, s.has
	s.pending, s.has = v, true
	s.mu.Unlock()

	s.submitted.Inc()
	if hadOld {
		s.superseded.Inc()
		old.Release()
	}

	// Non-blocking signal
	select {
	case s.ready <- struct{}{}:
	default:
	}
	return true
}

// Next waits for a value and takes ownership of it from the slot. The caller
// must Release it.
func (s *Slot[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		if v, ok, closed := s.take(); ok {
			return v, nil
		} else if closed {
			return zero, ErrClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-s.done:
		case <-s.ready:
		}
	}
}

// TryNext takes the pending value without waiting.
func (s *Slot[T]) TryNext() (T, bool) {
	v, ok, _ := s.take()
	return v, ok
}

func (s *Slot[T]) take() (v T, ok, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has {
		return v, false, s.closed
	}
	v, ok = s.pending, true
	var zero T
	s.pending, s.has = zero, false
	s.delivered.Inc()
	return v, ok, s.closed
}

// Flush releases the pending value, if any. Used when the camera switches so
// a frame from the old session is never shown.
func (s *Slot[T]) Flush() {
	s.mu.Lock()
	old, hadOld := s.pending, s.has
	var zero T
	s.pending, s.has = zero, false
	s.mu.Unlock()

	if hadOld {
		s.flushed.Inc()
		old.Release()
	}
}

// Close flushes the slot and wakes any waiting Next. Further submits are
// released immediately.
func (s *Slot[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.Flush()
	close(s.done)
}

// Stats returns traffic counters.
func (s *Slot[T]) Stats() Stats {
	return Stats{
		Submitted:  s.submitted.Load(),
		Delivered:  s.delivered.Load(),
		Superseded: s.superseded.Load(),
		Flushed:    s.flushed.Load(),
	}
}
