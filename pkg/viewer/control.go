package viewer

import (
	"context"
	"net/http"
	"strings"

	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-nailtint/internal/httpc"
)

// Control calls the server's HTTP API.
type Control struct {
	base string
	http *http.Client
}

// NewControl creates a control client for base (http://host:port).
func NewControl(base string) *Control {
	return &Control{base: strings.TrimRight(base, "/"), http: httpc.Client}
}

// Status is the subset of /api/status the viewer reports.
type Status struct {
	Facing  string `json:"facing"`
	Session string `json:"session"`
	Color   struct {
		Color   string `json:"color"`
		Encoded string `json:"encoded"`
	} `json:"color"`
}

// Status fetches the server status.
func (c *Control) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := httpc.DoJSON(ctx, c.http, http.MethodGet, c.base+"/api/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SetColor selects an overlay color. alpha < 0 keeps the alpha from hex.
func (c *Control) SetColor(ctx context.Context, hex string, alpha float64) error {
	body := map[string]interface{}{"color": hex}
	if alpha >= 0 {
		body["alpha"] = alpha
	}
	return httpc.DoJSON(ctx, c.http, http.MethodPost, c.base+"/api/color", body, nil)
}

// SwitchCamera switches to "front" or "back".
func (c *Control) SwitchCamera(ctx context.Context, facing string) error {
	return httpc.DoJSON(ctx, c.http, http.MethodPost, c.base+"/api/camera", map[string]string{"facing": facing}, nil)
}

// Offer exchanges an SDP offer for the server's answer.
func (c *Control) Offer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	var answer webrtc.SessionDescription
	if err := httpc.DoJSON(ctx, c.http, http.MethodPost, c.base+"/api/webrtc/offer", offer, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// FramesURL returns the websocket URL for the frame stream.
func (c *Control) FramesURL() string {
	switch {
	case strings.HasPrefix(c.base, "https://"):
		return "wss://" + strings.TrimPrefix(c.base, "https://") + "/ws/frames"
	case strings.HasPrefix(c.base, "http://"):
		return "ws://" + strings.TrimPrefix(c.base, "http://") + "/ws/frames"
	default:
		return "ws://" + c.base + "/ws/frames"
	}
}
