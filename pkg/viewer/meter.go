package viewer

import (
	"sync"
	"time"
)

// Meter tracks frame rate over a sliding window.
type Meter struct {
	mu     sync.Mutex
	window time.Duration
	stamps []time.Time
	total  uint64
	bytes  uint64
	last   Frame
}

// NewMeter creates a meter averaging over window.
func NewMeter(window time.Duration) *Meter {
	return &Meter{window: window}
}

// Add records f.
func (m *Meter) Add(f Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.bytes += uint64(f.Size)
	m.last = f
	m.stamps = append(m.stamps, f.At)
	m.trim(f.At)
}

func (m *Meter) trim(now time.Time) {
	cut := 0
	for cut < len(m.stamps) && now.Sub(m.stamps[cut]) > m.window {
		cut++
	}
	m.stamps = m.stamps[cut:]
}

// FPS returns frames per second over the window ending at now.
func (m *Meter) FPS(now time.Time) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trim(now)
	if m.window <= 0 {
		return 0
	}
	return float64(len(m.stamps)) / m.window.Seconds()
}

// Total returns frames and bytes seen.
func (m *Meter) Total() (frames, bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total, m.bytes
}

// Last returns the most recent frame.
func (m *Meter) Last() (Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.total > 0
}
