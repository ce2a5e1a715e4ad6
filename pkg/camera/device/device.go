// Package device opens physical cameras through OpenCV.
package device

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-nailtint/pkg/camera"
	"github.com/teslashibe/go-nailtint/pkg/frame"
)

// Source reads BGRA frames from a V4L/AVFoundation device.
type Source struct {
	mu     sync.Mutex
	cap    *gocv.VideoCapture
	bgr    gocv.Mat // raw decoded frame, reused
	bgra   gocv.Mat // converted frame handed to callers, reused
	closed bool
}

// Open opens device and applies cfg's resolution, framerate and queue depth.
// It matches camera.OpenFunc.
func Open(facing camera.Facing, device int, cfg camera.Config) (camera.Source, error) {
	vc, err := gocv.VideoCaptureDevice(device)
	if err != nil {
		return nil, fmt.Errorf("device: open %s camera %d: %w", facing, device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("device: %s camera %d did not open", facing, device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	// Keep the driver queue short so late frames are discarded, not buffered.
	vc.Set(gocv.VideoCaptureBufferSize, float64(cfg.BufferSize))

	return &Source{
		cap:  vc,
		bgr:  gocv.NewMat(),
		bgra: gocv.NewMat(),
	}, nil
}

// Read grabs one frame, converts it to BGRA and calls fn. The frame data
// points into a Mat that is overwritten by the next Read.
func (s *Source) Read(ctx context.Context, fn func(frame.Raw)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return camera.ErrSessionStopped
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if ok := s.cap.Read(&s.bgr); !ok {
		return fmt.Errorf("device: read failed")
	}
	if s.bgr.Empty() {
		return fmt.Errorf("device: empty frame")
	}

	gocv.CvtColor(s.bgr, &s.bgra, gocv.ColorBGRToBGRA)
	data, err := s.bgra.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("device: frame data: %w", err)
	}

	fn(frame.Raw{
		Width:  s.bgra.Cols(),
		Height: s.bgra.Rows(),
		Stride: s.bgra.Step(),
		Format: frame.FormatBGRA,
		Data:   data,
	})
	return nil
}

// Close releases the device and the frame Mats.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.bgr.Close()
	s.bgra.Close()
	return s.cap.Close()
}
