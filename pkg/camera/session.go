package camera

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/teslashibe/go-nailtint/pkg/frame"
)

// Source delivers frames from one opened camera.
type Source interface {
	// Read blocks for the next frame and calls fn with it. The frame's Data is
	// only valid until fn returns.
	Read(ctx context.Context, fn func(frame.Raw)) error

	// Close releases the device.
	Close() error
}

// OpenFunc opens the device configured for a facing.
type OpenFunc func(facing Facing, device int, cfg Config) (Source, error)

// FrameInfo identifies a delivered frame.
type FrameInfo struct {
	Session string
	Seq     uint64
	Facing  Facing
	At      time.Time
}

// FrameHandler processes one frame on the capture goroutine.
type FrameHandler func(raw frame.Raw, info FrameInfo)

// readErrorBackoff is the pause after a failed read before retrying.
const readErrorBackoff = 20 * time.Millisecond

// Session is one running capture configuration. Frames are handed to the
// handler in arrival order on the session's own goroutine.
type Session struct {
	ID     string
	Facing Facing
	Device int

	src     Source
	handler FrameHandler
	log     *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	frames     atomic.Uint64
	readErrors atomic.Uint64
}

// startSession starts the read loop for src.
func startSession(parent context.Context, facing Facing, device int, src Source, handler FrameHandler, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		ID:      uuid.NewString(),
		Facing:  facing,
		Device:  device,
		src:     src,
		handler: handler,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.log = logger.With("session", s.ID[:8], "facing", facing.String())
	go s.run(ctx)
	return s
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	s.log.Info("capture session started", "device", s.Device)

	for ctx.Err() == nil {
		err := s.src.Read(ctx, func(raw frame.Raw) {
			seq := s.frames.Inc()
			s.handler(raw, FrameInfo{Session: s.ID, Seq: seq, Facing: s.Facing, At: time.Now()})
		})
		if err == nil {
			continue
		}
		if ctx.Err() != nil || errors.Is(err, ErrSessionStopped) {
			break
		}
		if n := s.readErrors.Inc(); n == 1 || n%100 == 0 {
			s.log.Warn("capture read failed", "error", err, "count", n)
		}
		select {
		case <-ctx.Done():
		case <-time.After(readErrorBackoff):
		}
	}

	s.log.Info("capture session stopped", "frames", s.frames.Load(), "read_errors", s.readErrors.Load())
}

// Stop cancels the loop, waits for it to exit and closes the device. After
// Stop returns the handler is never called again for this session.
func (s *Session) Stop() {
	s.cancel()
	<-s.done
	if err := s.src.Close(); err != nil {
		s.log.Warn("close capture source", "error", err)
	}
}

// Done is closed when the read loop exits.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Frames returns the number of frames delivered so far.
func (s *Session) Frames() uint64 {
	return s.frames.Load()
}
