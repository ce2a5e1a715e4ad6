// Package pipeline connects the stages that turn one captured frame into one
// display image:
//
//	frame.Raw -> Normalize -> Invoke -> Compose -> Orient -> handoff.Slot
//
// With WithPreview the normalized camera picture travels with the overlay so
// displays can draw the overlay over the live feed.
//
// HandleFrame runs on the capture goroutine. A Presenter drains the slot on
// the presentation goroutine.
package pipeline

import (
	"errors"
	"log/slog"
	"time"

	"go.uber.org/atomic"

	"github.com/teslashibe/go-nailtint/pkg/camera"
	"github.com/teslashibe/go-nailtint/pkg/frame"
	"github.com/teslashibe/go-nailtint/pkg/handoff"
	"github.com/teslashibe/go-nailtint/pkg/render"
	"github.com/teslashibe/go-nailtint/pkg/segment"
	"github.com/teslashibe/go-nailtint/pkg/tint"
)

// Sentinel errors for dropped frames.
var (
	// ErrBusy is returned when a frame arrives while another is in flight.
	ErrBusy = errors.New("pipeline: busy")

	// ErrStaleSession is returned when the frame's capture session has ended.
	ErrStaleSession = errors.New("pipeline: stale session")
)

// SessionReader reports the current capture session. camera.Manager
// implements it.
type SessionReader interface {
	SessionID() string
}

// Snapshot is the shared state read once at the start of a frame.
type Snapshot struct {
	Color   tint.Encoded
	Facing  camera.Facing
	Session string
}

// Stats counts frames by outcome.
type Stats struct {
	Processed     uint64        `json:"processed"`
	DroppedBusy   uint64        `json:"dropped_busy"`
	DroppedFormat uint64        `json:"dropped_format"`
	DroppedInvoke uint64        `json:"dropped_invoke"`
	DroppedBuffer uint64        `json:"dropped_buffer"`
	DroppedStale  uint64        `json:"dropped_stale"`
	DroppedOther  uint64        `json:"dropped_other"`
	LastLatency   time.Duration `json:"last_latency_ns"`

	Handoff handoff.Stats       `json:"handoff"`
	Buffers segment.BufferStats `json:"buffers"`
}

// Pipeline processes frames. In the service each capture session calls
// HandleFrame from its own goroutine and sessions never overlap, so late
// frames are discarded by the device (capture buffer size 1), not here.
// The busy flag only matters to callers that feed Process from several
// goroutines: an overlapping call is dropped with ErrBusy.
type Pipeline struct {
	norm     *frame.Normalizer
	invoker  *segment.Invoker
	color    *tint.Selection
	out      *handoff.Slot[*render.Oriented]
	sessions SessionReader
	preview  bool
	log      *slog.Logger

	busy atomic.Bool

	processed     atomic.Uint64
	droppedBusy   atomic.Uint64
	droppedFormat atomic.Uint64
	droppedInvoke atomic.Uint64
	droppedBuffer atomic.Uint64
	droppedStale  atomic.Uint64
	droppedOther  atomic.Uint64
	lastLatency   atomic.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithSessions enables the stale-session check against r.
func WithSessions(r SessionReader) Option {
	return func(p *Pipeline) { p.sessions = r }
}

// WithPreview attaches the camera picture to every result.
func WithPreview(on bool) Option {
	return func(p *Pipeline) { p.preview = on }
}

// New creates a pipeline writing results into out.
func New(norm *frame.Normalizer, invoker *segment.Invoker, color *tint.Selection, out *handoff.Slot[*render.Oriented], opts ...Option) *Pipeline {
	p := &Pipeline{
		norm:    norm,
		invoker: invoker,
		color:   color,
		out:     out,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleFrame processes raw and submits the result. Errors are counted and
// logged at debug level; the frame is skipped. It matches camera.FrameHandler.
func (p *Pipeline) HandleFrame(raw frame.Raw, info camera.FrameInfo) {
	if err := p.Process(raw, info); err != nil {
		p.count(err)
		p.log.Debug("frame dropped", "seq", info.Seq, "error", err)
	}
}

// Process runs the full chain for one frame. On error every buffer
// allocated for the frame has been released.
func (p *Pipeline) Process(raw frame.Raw, info camera.FrameInfo) error {
	if !p.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer p.busy.Store(false)

	start := time.Now()
	snap := p.snapshot(info)
	if p.stale(snap.Session) {
		return ErrStaleSession
	}

	in, err := p.norm.Normalize(raw)
	if err != nil {
		return err
	}

	buf, err := p.invoker.Invoke(in, snap.Color)
	if err != nil {
		return err
	}

	comp, err := render.Compose(buf, p.norm.Side())
	if err != nil {
		return err
	}

	img, err := render.Orient(comp, snap.Facing)
	if err != nil {
		return err
	}
	img.Seq = info.Seq
	img.Session = snap.Session
	if p.preview {
		render.AttachPreview(img, in)
	}

	// The camera may have switched while the model ran.
	if p.stale(snap.Session) {
		img.Release()
		return ErrStaleSession
	}

	p.out.Submit(img)
	p.processed.Inc()
	p.lastLatency.Store(time.Since(start))
	return nil
}

func (p *Pipeline) snapshot(info camera.FrameInfo) Snapshot {
	return Snapshot{
		Color:   p.color.Current(),
		Facing:  info.Facing,
		Session: info.Session,
	}
}

func (p *Pipeline) stale(session string) bool {
	return p.sessions != nil && session != p.sessions.SessionID()
}

func (p *Pipeline) count(err error) {
	switch {
	case errors.Is(err, ErrBusy):
		p.droppedBusy.Inc()
	case errors.Is(err, frame.ErrFormat):
		p.droppedFormat.Inc()
	case errors.Is(err, segment.ErrBufferSize):
		p.droppedBuffer.Inc()
	case errors.Is(err, segment.ErrInvoke):
		p.droppedInvoke.Inc()
	case errors.Is(err, ErrStaleSession):
		p.droppedStale.Inc()
	default:
		p.droppedOther.Inc()
	}
}

// Stats returns frame counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Processed:     p.processed.Load(),
		DroppedBusy:   p.droppedBusy.Load(),
		DroppedFormat: p.droppedFormat.Load(),
		DroppedInvoke: p.droppedInvoke.Load(),
		DroppedBuffer: p.droppedBuffer.Load(),
		DroppedStale:  p.droppedStale.Load(),
		DroppedOther:  p.droppedOther.Load(),
		LastLatency:   p.lastLatency.Load(),
		Handoff:       p.out.Stats(),
		Buffers:       segment.Stats(),
	}
}
