package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/teslashibe/go-nailtint/pkg/camera"
	"github.com/teslashibe/go-nailtint/pkg/frame"
	"github.com/teslashibe/go-nailtint/pkg/render"
	"github.com/teslashibe/go-nailtint/pkg/tint"
)

// fakeCamera records switch requests.
type fakeCamera struct {
	facing    camera.Facing
	available map[camera.Facing]bool
	switches  []camera.Facing
	params    map[string]interface{}
}

func (f *fakeCamera) Switch(to camera.Facing) error {
	f.switches = append(f.switches, to)
	if !f.available[to] {
		return &camera.DeviceUnavailableError{Facing: to, Device: -1}
	}
	f.facing = to
	return nil
}

func (f *fakeCamera) Facing() camera.Facing { return f.facing }
func (f *fakeCamera) SessionID() string     { return "session-1" }

func (f *fakeCamera) GetConfigJSON() map[string]interface{} {
	return map[string]interface{}{"width": 1280}
}

func (f *fakeCamera) UpdateConfig(params map[string]interface{}) error {
	f.params = params
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeCamera, *tint.Selection) {
	t.Helper()
	sel, err := tint.NewSelection(tint.DefaultColor, 1)
	if err != nil {
		t.Fatalf("NewSelection: %v", err)
	}
	cam := &fakeCamera{facing: camera.Back, available: map[camera.Facing]bool{camera.Back: true}}
	s, err := NewServer(DefaultConfig(), sel, cam, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s, cam, sel
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestSetColor(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantHex    string
	}{
		{"hex with alpha override", map[string]interface{}{"color": "#00ff00", "alpha": 0.5}, 204, "#00ff0080"},
		{"hex alpha", map[string]interface{}{"color": "#0000ff40"}, 204, "#0000ff40"},
		{"bad hex", map[string]interface{}{"color": "green"}, 400, "#ff0000ff"},
		{"alpha out of range", map[string]interface{}{"color": "#00ff00", "alpha": 2}, 400, "#ff0000ff"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, _, sel := newTestServer(t)
			resp := do(t, s, http.MethodPost, "/api/color", tc.body)
			if resp.StatusCode != tc.wantStatus {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			if got := tint.Hex(sel.Current()); got != tc.wantHex {
				t.Errorf("selection: got %s, want %s", got, tc.wantHex)
			}
		})
	}
}

func TestSwitchCamera(t *testing.T) {
	s, cam, _ := newTestServer(t)

	if resp := do(t, s, http.MethodPost, "/api/camera", CameraRequest{Facing: "front"}); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unavailable camera: got %d, want 404", resp.StatusCode)
	}
	if cam.facing != camera.Back {
		t.Error("facing changed after failed switch")
	}

	cam.available[camera.Front] = true
	if resp := do(t, s, http.MethodPost, "/api/camera", CameraRequest{Facing: "front"}); resp.StatusCode != http.StatusNoContent {
		t.Errorf("switch: got %d, want 204", resp.StatusCode)
	}
	if cam.facing != camera.Front {
		t.Error("facing not switched")
	}

	if resp := do(t, s, http.MethodPost, "/api/camera", CameraRequest{Facing: "sideways"}); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad facing: got %d, want 400", resp.StatusCode)
	}
	if len(cam.switches) != 2 {
		t.Errorf("switch calls: %v", cam.switches)
	}
}

func TestStatus(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.StatsFunc = func() interface{} { return map[string]int{"processed": 3} }

	resp := do(t, s, http.MethodGet, "/api/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var st struct {
		Facing   string         `json:"facing"`
		Session  string         `json:"session"`
		Color    ColorState     `json:"color"`
		Pipeline map[string]int `json:"pipeline"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Facing != "back" || st.Session != "session-1" {
		t.Errorf("unexpected camera state: %+v", st)
	}
	if st.Color.Color != "#ff0000ff" || st.Color.Encoded != "0x0000FFFF" {
		t.Errorf("unexpected color: %+v", st.Color)
	}
	if st.Pipeline["processed"] != 3 {
		t.Errorf("pipeline stats missing: %+v", st.Pipeline)
	}
}

func TestCameraConfig(t *testing.T) {
	s, cam, _ := newTestServer(t)
	resp := do(t, s, http.MethodPost, "/api/camera/config", map[string]interface{}{"preset": "vga"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if cam.params["preset"] != "vga" {
		t.Errorf("params not forwarded: %v", cam.params)
	}
}

func TestOffer_Invalid(t *testing.T) {
	s, _, _ := newTestServer(t)
	resp := do(t, s, http.MethodPost, "/api/webrtc/offer", map[string]string{"type": "offer"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty sdp: got %d, want 400", resp.StatusCode)
	}
}

func TestFramesRequiresUpgrade(t *testing.T) {
	s, _, _ := newTestServer(t)
	resp := do(t, s, http.MethodGet, "/ws/frames", nil)
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("got %d, want 426", resp.StatusCode)
	}
}

func TestShow_SkipsWithoutViewers(t *testing.T) {
	s, _, _ := newTestServer(t)
	img := &render.Oriented{Image: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	if err := s.Show(img); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if s.shown.Load() != 0 {
		t.Error("frame encoded with no viewers")
	}
}

func TestEncoder(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+3] = 128, 128 // premultiplied half-transparent red
	}

	enc, err := NewEncoder("png", 0)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	data, err := enc.Encode(src)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, _, _, a := got.At(3, 3).RGBA()
	if r>>8 != 128 || a>>8 != 128 {
		t.Errorf("pixel: r=%d a=%d", r>>8, a>>8)
	}
	if enc.ContentType() != "image/png" {
		t.Errorf("content type: %s", enc.ContentType())
	}

	jpg, err := NewEncoder("jpg", 90)
	if err != nil {
		t.Fatalf("NewEncoder jpg: %v", err)
	}
	data, err = jpg.Encode(src)
	if err != nil {
		t.Fatalf("Encode jpg: %v", err)
	}
	if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("jpeg decode: %v", err)
	}

	if _, err := NewEncoder("jpeg", 0); err == nil {
		t.Error("expected quality error")
	}
	if _, err := NewEncoder("webp", 0); err == nil {
		t.Error("expected format error")
	}
}

func TestFrameImage_Preview(t *testing.T) {
	overlay := image.NewRGBA(image.Rect(0, 0, 2, 1))
	copy(overlay.Pix[0:4], []byte{255, 0, 0, 255}) // opaque red at (0,0); (1,0) transparent
	preview := image.NewRGBA(image.Rect(0, 0, 2, 1))
	copy(preview.Pix, []byte{0, 0, 200, 255, 0, 0, 200, 255})
	img := &render.Oriented{Image: overlay, Preview: preview}

	s, _, _ := newTestServer(t)
	got := s.frameImage(img)
	if got == overlay || got.Pix[0] != 255 || got.Pix[6] != 200 || got.Pix[7] != 255 {
		t.Errorf("expected overlay over preview, got %v", got.Pix)
	}

	s.cfg.Preview = false
	if s.frameImage(img) != overlay {
		t.Error("overlay-only mode should send the overlay unchanged")
	}
	s.cfg.Preview = true
	if s.frameImage(&render.Oriented{Image: overlay}) != overlay {
		t.Error("frame without preview should send the overlay unchanged")
	}
}

func TestSwitchCamera_AfterStopConflicts(t *testing.T) {
	sel, err := tint.NewSelection(tint.DefaultColor, 1)
	if err != nil {
		t.Fatalf("NewSelection: %v", err)
	}
	open := camera.PatternOpener([3]uint8{0, 0, 0}, [3]uint8{255, 255, 255}, camera.Back, camera.Front)
	m, err := camera.NewManager(camera.VGAConfig(), open, func(frame.Raw, camera.FrameInfo) {}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.Stop()

	s, err := NewServer(DefaultConfig(), sel, m, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if resp := do(t, s, http.MethodPost, "/api/camera", CameraRequest{Facing: "front"}); resp.StatusCode != http.StatusConflict {
		t.Errorf("switch after stop: got %d, want 409", resp.StatusCode)
	}
	if m.Running() {
		t.Error("capture restarted by the API after Stop")
	}
}
