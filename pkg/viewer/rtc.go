package viewer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v3"
)

// RTC receives frames over a WebRTC data channel negotiated through the
// server's /api/webrtc/offer endpoint.
type RTC struct {
	pc     *webrtc.PeerConnection
	dc     *webrtc.DataChannel
	log    *slog.Logger
	closed chan struct{}
}

// DialRTC creates an offer with a "frames" data channel, sends it through
// ctl and applies the answer. fn is called on pion's callback goroutine.
func DialRTC(ctx context.Context, ctl *Control, fn FrameFunc, logger *slog.Logger) (*RTC, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("viewer: new peer connection: %w", err)
	}

	ordered := false
	retransmits := uint16(0)
	dc, err := pc.CreateDataChannel("frames", &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &retransmits,
	})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("viewer: create data channel: %w", err)
	}

	r := &RTC{pc: pc, dc: dc, log: logger, closed: make(chan struct{})}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if msg.IsString {
			return
		}
		f, err := decode(msg.Data)
		if err != nil {
			r.log.Warn("skipping undecodable frame", "error", err, "bytes", len(msg.Data))
			return
		}
		fn(f)
	})
	dc.OnClose(func() {
		select {
		case <-r.closed:
		default:
			close(r.closed)
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("viewer: create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("viewer: set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		pc.Close()
		return nil, ctx.Err()
	}

	answer, err := ctl.Offer(ctx, *pc.LocalDescription())
	if err != nil {
		pc.Close()
		return nil, err
	}
	if err := pc.SetRemoteDescription(*answer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("viewer: set remote description: %w", err)
	}
	return r, nil
}

// Done is closed when the data channel closes.
func (r *RTC) Done() <-chan struct{} {
	return r.closed
}

// Close closes the peer connection.
func (r *RTC) Close() error {
	return r.pc.Close()
}
