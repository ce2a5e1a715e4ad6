package main

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-nailtint/pkg/pipeline"
	"github.com/teslashibe/go-nailtint/pkg/render"
)

// windowScale enlarges the model-sized overlay for viewing.
const windowScale = 2

// window shows overlays in an OpenCV window. All methods must be called from
// the main OS thread.
type window struct {
	w      *gocv.Window
	scaled gocv.Mat
	scene  *image.RGBA
}

func newWindow(title string) *window {
	return &window{w: gocv.NewWindow(title), scaled: gocv.NewMat()}
}

// Show implements pipeline.Display. The overlay is drawn over the camera
// preview when the frame carries one.
func (w *window) Show(img *render.Oriented) error {
	pic := img.Image
	if img.Preview != nil {
		w.scene = render.Flatten(img, w.scene)
		pic = w.scene
	}
	mat, err := gocv.ImageToMatRGBA(pic)
	if err != nil {
		return fmt.Errorf("window: convert: %w", err)
	}
	defer mat.Close()

	side := pic.Bounds().Dx() * windowScale
	gocv.Resize(mat, &w.scaled, image.Pt(side, side), 0, 0, gocv.InterpolationNearestNeighbor)
	w.w.IMShow(w.scaled)
	return nil
}

// Loop presents frames until ctx is done or the user presses Esc or q.
func (w *window) Loop(ctx context.Context, p *pipeline.Presenter, cancel context.CancelFunc) {
	for ctx.Err() == nil {
		p.PresentNext()
		switch w.w.WaitKey(1) {
		case 27, 'q':
			cancel()
			return
		}
	}
}

// Close closes the window.
func (w *window) Close() {
	w.scaled.Close()
	w.w.Close()
}
