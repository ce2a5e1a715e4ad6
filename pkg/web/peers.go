package web

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v3"
	"go.uber.org/atomic"
)

const (
	// FramesLabel is the data channel label a browser opens to receive frames.
	FramesLabel = "frames"

	// maxBuffered is the send backlog above which a peer skips frames.
	maxBuffered = 1 << 20

	// maxMessage is the largest frame sent on a data channel.
	maxMessage = 64 * 1024
)

// Peers holds WebRTC connections that receive frames over a data channel.
type Peers struct {
	config webrtc.Configuration
	log    *slog.Logger

	mu    sync.Mutex
	conns map[*webrtc.PeerConnection]*webrtc.DataChannel

	sent    atomic.Uint64
	skipped atomic.Uint64
}

// PeerStats counts data channel traffic.
type PeerStats struct {
	Peers   int    `json:"peers"`
	Sent    uint64 `json:"sent"`
	Skipped uint64 `json:"skipped"`
}

// NewPeers creates an empty peer set. iceServers are STUN/TURN URLs.
func NewPeers(iceServers []string, logger *slog.Logger) *Peers {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return &Peers{
		config: cfg,
		log:    logger.With("component", "webrtc"),
		conns:  make(map[*webrtc.PeerConnection]*webrtc.DataChannel),
	}
}

// Answer accepts an SDP offer and returns the answer with all ICE
// candidates included. The offer must open a data channel named "frames".
func (p *Peers) Answer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	pc, err := webrtc.NewPeerConnection(p.config)
	if err != nil {
		return nil, fmt.Errorf("web: new peer connection: %w", err)
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != FramesLabel {
			p.log.Debug("ignoring data channel", "label", dc.Label())
			return
		}
		dc.OnOpen(func() {
			p.mu.Lock()
			p.conns[pc] = dc
			n := len(p.conns)
			p.mu.Unlock()
			p.log.Info("frames channel open", "peers", n)
		})
		dc.OnClose(func() { p.remove(pc) })
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.log.Debug("connection state", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			p.remove(pc)
			pc.Close()
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("web: set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("web: create answer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("web: set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		pc.Close()
		return nil, ctx.Err()
	}

	return pc.LocalDescription(), nil
}

// Send writes data to every open frames channel. Peers with a full send
// buffer skip the frame.
func (p *Peers) Send(data []byte) {
	if len(data) > maxMessage {
		p.skipped.Inc()
		return
	}

	p.mu.Lock()
	channels := make([]*webrtc.DataChannel, 0, len(p.conns))
	for _, dc := range p.conns {
		channels = append(channels, dc)
	}
	p.mu.Unlock()

	for _, dc := range channels {
		if dc.BufferedAmount() > maxBuffered {
			p.skipped.Inc()
			continue
		}
		if err := dc.Send(data); err != nil {
			p.skipped.Inc()
			continue
		}
		p.sent.Inc()
	}
}

// Count returns the number of peers with an open frames channel.
func (p *Peers) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Stats returns traffic counters.
func (p *Peers) Stats() PeerStats {
	return PeerStats{Peers: p.Count(), Sent: p.sent.Load(), Skipped: p.skipped.Load()}
}

// Close closes every peer connection.
func (p *Peers) Close() {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[*webrtc.PeerConnection]*webrtc.DataChannel)
	p.mu.Unlock()

	for pc := range conns {
		pc.Close()
	}
}

func (p *Peers) remove(pc *webrtc.PeerConnection) {
	p.mu.Lock()
	_, ok := p.conns[pc]
	delete(p.conns, pc)
	n := len(p.conns)
	p.mu.Unlock()
	if ok {
		p.log.Info("frames channel closed", "peers", n)
	}
}
