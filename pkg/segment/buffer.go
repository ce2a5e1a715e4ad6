package segment

import (
	"go.uber.org/atomic"
)

var (
	allocated atomic.Int64
	released  atomic.Int64
)

// Buffer is an owning handle for a model output. The memory behind Bytes may
// live outside the Go heap; it is freed by exactly one call to Release.
// Bytes must not be used after Release.
type Buffer struct {
	data    []byte
	release func()
	done    atomic.Bool
}

// NewBuffer wraps data with the function that frees it. release may be nil for
// Go-allocated memory.
func NewBuffer(data []byte, release func()) *Buffer {
	allocated.Inc()
	return &Buffer{data: data, release: release}
}

// Bytes returns the buffer contents without copying.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the buffer size in bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Release frees the buffer. Calls after the first return ErrReleased and do nothing.
func (b *Buffer) Release() error {
	if !b.done.CompareAndSwap(false, true) {
		return ErrReleased
	}
	b.data = nil
	if b.release != nil {
		b.release()
	}
	released.Inc()
	return nil
}

// Released reports whether Release has been called.
func (b *Buffer) Released() bool {
	return b.done.Load()
}

// BufferStats counts buffer handles process-wide.
type BufferStats struct {
	Allocated int64 `json:"allocated"`
	Released  int64 `json:"released"`
	Live      int64 `json:"live"`
}

// Stats returns process-wide buffer counters.
func Stats() BufferStats {
	a, r := allocated.Load(), released.Load()
	return BufferStats{Allocated: a, Released: r, Live: a - r}
}
