package game

import (
	"net"
	"testing"
	"time"

	"github.com/LemmyAI/tileserver/internal/protocol"
	"github.com/LemmyAI/tileserver/internal/transport"
	"github.com/LemmyAI/tileserver/internal/world"
)

// testPeer is a registered connection plus the client end of its pipe, with
// inbound frames collected on a channel.
type testPeer struct {
	conn   *transport.Connection
	client net.Conn
	frames chan protocol.Message
}

func newTestPeer(t *testing.T, reg *transport.Registry) *testPeer {
	t.Helper()
	cfg := transport.DefaultConfig()
	cfg.CloseLinger = 20 * time.Millisecond

	server, client := net.Pipe()
	c := transport.NewConnection(reg.NewClientID(), server, cfg)
	if err := reg.Add(c); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	p := &testPeer{conn: c, client: client, frames: make(chan protocol.Message, 64)}
	go func() {
		defer close(p.frames)
		for {
			msg, _, err := protocol.ReadMessage(client, 0)
			if err != nil {
				return
			}
			p.frames <- msg
		}
	}()
	t.Cleanup(func() {
		client.Close()
		c.Close()
	})
	return p
}

// expect returns the next frame and checks its type.
func (p *testPeer) expect(t *testing.T, typ protocol.MessageType) protocol.Message {
	t.Helper()
	select {
	case msg, ok := <-p.frames:
		if !ok {
			t.Fatalf("client %d: connection closed while waiting for %s", p.conn.ID, typ)
		}
		if msg.Type != typ {
			t.Fatalf("client %d: expected %s, got %s", p.conn.ID, typ, msg.Type)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatalf("client %d: timed out waiting for %s", p.conn.ID, typ)
	}
	return protocol.Message{}
}

// expectNone checks that no frame arrives for a short while.
func (p *testPeer) expectNone(t *testing.T) {
	t.Helper()
	select {
	case msg, ok := <-p.frames:
		if ok {
			t.Fatalf("client %d: expected no message, got %s", p.conn.ID, msg.Type)
		}
	case <-time.After(30 * time.Millisecond):
	}
}

func newTestWorld() *world.Sandbox {
	return world.NewSandbox(world.Config{Name: "test", Width: 32, Height: 32, Seed: 3, SurfaceLevel: 16, DayLength: 100, NightLength: 50})
}

func activate(p *testPeer, name string, x, y float32) {
	p.conn.UpdateState(func(s *transport.ClientState) {
		s.Approved = true
		s.Active = true
		s.Name = name
		s.X, s.Y = x, y
	})
}
