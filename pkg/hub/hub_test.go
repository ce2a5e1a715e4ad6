package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
)

type written struct {
	typ  int
	data []byte
}

type fakeConn struct {
	mu     sync.Mutex
	writes []written
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(typ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, written{typ, data})
	return nil
}

func (f *fakeConn) SetReadLimit(int64) {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) Close() error { f.once.Do(func() { close(f.closed) }); return nil }
func (f *fakeConn) count() int { f.mu.Lock(); defer f.mu.Unlock(); return len(f.writes) }
func (f *fakeConn) last() written { f.mu.Lock(); defer f.mu.Unlock(); return f.writes[len(f.writes)-1] }

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	conns := []*fakeConn{newFakeConn(), newFakeConn()}
	for _, c := range conns {
		go NewClient(h, c).Run()
	}
	eventually(t, func() bool { return h.ClientCount() == 2 })

	if err := h.BroadcastJSON(map[string]string{"facing": "back"}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}
	h.BroadcastFrame([]byte{0xff, 0xd8})

	for _, c := range conns {
		eventually(t, func() bool { return c.count() == 2 })
		if w := c.last(); w.typ != websocket.BinaryMessage || len(w.data) != 2 {
			t.Errorf("last write: %+v", w)
		}
	}

	conns[0].Close()
	eventually(t, func() bool { return h.ClientCount() == 1 })
}

func TestHub_SlowClient(t *testing.T) {
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	// Never runs its pumps, so its queue fills up.
	NewClient(h, newFakeConn())
	eventually(t, func() bool { return h.ClientCount() == 1 })

	for i := 0; i < sendQueue+3; i++ {
		h.BroadcastFrame([]byte{byte(i)})
	}
	eventually(t, func() bool { return h.Stats().Sent+h.Stats().Skipped == sendQueue+3 })
	if st := h.Stats(); st.Sent != sendQueue || st.Skipped != 3 || st.Clients != 1 {
		t.Errorf("lossy frames should be skipped, not evict: %+v", st)
	}

	h.BroadcastJSON("status")
	eventually(t, func() bool { return h.Stats().Evicted == 1 })
	if h.ClientCount() != 0 {
		t.Error("slow client not removed")
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		NewClient(h, conn).Run()
		close(done)
	}()
	eventually(t, func() bool { return h.ClientCount() == 1 })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not exit after hub stopped")
	}
	if h.IsRunning() {
		t.Error("hub still running")
	}
	if w := conn.last(); w.typ != websocket.CloseMessage {
		t.Errorf("expected close frame, got %+v", w)
	}
}
