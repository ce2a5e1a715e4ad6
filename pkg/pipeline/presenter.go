package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"go.uber.org/atomic"

	"github.com/teslashibe/go-nailtint/pkg/handoff"
	"github.com/teslashibe/go-nailtint/pkg/render"
)

// Display shows oriented images. Show is called from the presentation
// goroutine only; img is valid until Show returns.
type Display interface {
	Show(img *render.Oriented) error
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(img *render.Oriented) error

// Show calls f(img).
func (f DisplayFunc) Show(img *render.Oriented) error {
	return f(img)
}

// Multi shows each image on every display in order. All displays are tried;
// the first error is returned.
type Multi []Display

// Show implements Display.
func (m Multi) Show(img *render.Oriented) error {
	var first error
	for _, d := range m {
		if err := d.Show(img); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Presenter drains a slot into a display.
type Presenter struct {
	slot    *handoff.Slot[*render.Oriented]
	display Display
	log     *slog.Logger

	shown  atomic.Uint64
	failed atomic.Uint64
}

// NewPresenter creates a presenter.
func NewPresenter(slot *handoff.Slot[*render.Oriented], display Display, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{slot: slot, display: display, log: logger}
}

// Run shows frames until ctx is done or the slot is closed.
func (p *Presenter) Run(ctx context.Context) error {
	for {
		img, err := p.slot.Next(ctx)
		if err != nil {
			if errors.Is(err, handoff.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		p.present(img)
	}
}

// PresentNext shows the pending frame, if any, without waiting. It is used by
// displays that must run their own event loop on the main thread.
func (p *Presenter) PresentNext() bool {
	img, ok := p.slot.TryNext()
	if !ok {
		return false
	}
	p.present(img)
	return true
}

func (p *Presenter) present(img *render.Oriented) {
	defer img.Release()
	if err := p.display.Show(img); err != nil {
		if n := p.failed.Inc(); n == 1 || n%100 == 0 {
			p.log.Warn("display failed", "error", err, "count", n)
		}
		return
	}
	p.shown.Inc()
}

// Shown returns the number of frames displayed.
func (p *Presenter) Shown() uint64 {
	return p.shown.Load()
}

// Failed returns the number of frames the display rejected.
func (p *Presenter) Failed() uint64 {
	return p.failed.Load()
}
