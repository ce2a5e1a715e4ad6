// Package viewer receives rendered overlay frames from a nailtint server and
// drives its control API.
package viewer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
)

// Frame is one decoded overlay.
type Frame struct {
	Image image.Image
	Size  int // encoded bytes
	At    time.Time
}

// FrameFunc receives decoded frames.
type FrameFunc func(Frame)

// Client reads frames from /ws/frames.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger
}

// Dial connects to the frame websocket at url (ws://host:port/ws/frames).
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("viewer: dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("viewer: dial %s: %w", url, err)
	}
	return &Client{conn: conn, log: logger}, nil
}

// Run reads frames until ctx is done or the connection closes. Frames that
// fail to decode are logged and skipped.
func (c *Client) Run(ctx context.Context, fn FrameFunc) error {
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("viewer: read: %w", err)
		}
		if typ != websocket.BinaryMessage {
			continue
		}

		f, err := decode(data)
		if err != nil {
			c.log.Warn("skipping undecodable frame", "error", err, "bytes", len(data))
			continue
		}
		fn(f)
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

func decode(data []byte) (Frame, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, err
	}
	return Frame{Image: img, Size: len(data), At: time.Now()}, nil
}
