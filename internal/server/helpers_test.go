package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/LemmyAI/tileserver/internal/protocol"
	"github.com/LemmyAI/tileserver/internal/transport"
	"github.com/LemmyAI/tileserver/internal/world"
)

type dispatched struct {
	msg    protocol.Message
	client int
}

// mockDispatcher records dispatched messages.
type mockDispatcher struct {
	calls chan dispatched

	mu      sync.Mutex
	err     error
	panicOn protocol.MessageType
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{calls: make(chan dispatched, 64)}
}

func (m *mockDispatcher) Dispatch(msg protocol.Message, c *transport.Connection) error {
	m.mu.Lock()
	err, panicOn := m.err, m.panicOn
	m.mu.Unlock()

	m.calls <- dispatched{msg: msg, client: c.ID}
	if panicOn != 0 && msg.Type == panicOn {
		panic("handler bug")
	}
	return err
}

func (m *mockDispatcher) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func testServerConfig() Config {
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1"
	cfg.Port = 0
	cfg.Transport.CloseLinger = 20 * time.Millisecond
	cfg.Transport.PollTimeout = 10 * time.Millisecond
	cfg.Transport.ReadTimeout = time.Second
	return cfg
}

func testWorld() *world.Sandbox {
	return world.NewSandbox(world.Config{Name: "test", Width: 32, Height: 32, Seed: 3, SurfaceLevel: 16, DayLength: 1000, NightLength: 500})
}

// startServer runs a server on a loopback ephemeral port until the test ends.
func startServer(t *testing.T, cfg Config, w world.World, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	s := New(cfg, w, opts...)
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run failed: %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Error("server did not stop")
		}
	})
	return s
}

// testClient is a raw TCP client collecting inbound frames.
type testClient struct {
	conn   net.Conn
	frames chan protocol.Message
}

func dial(t *testing.T, s *Server) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	c := &testClient{conn: conn, frames: make(chan protocol.Message, 64)}
	go func() {
		defer close(c.frames)
		for {
			msg, _, err := protocol.ReadMessage(conn, 0)
			if err != nil {
				return
			}
			c.frames <- msg
		}
	}()
	t.Cleanup(func() { conn.Close() })
	return c
}

// dialRegistered dials and waits until the server has registered the client.
func dialRegistered(t *testing.T, s *Server) (*testClient, *transport.Connection) {
	t.Helper()
	before := s.registry.Len()
	c := dial(t, s)
	waitFor(t, func() bool { return s.registry.Len() == before+1 })
	snap := s.registry.Snapshot()
	return c, snap[len(snap)-1]
}

func (c *testClient) send(t *testing.T, p protocol.Payload) {
	t.Helper()
	if err := protocol.WriteMessage(c.conn, protocol.New(p)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
}

func (c *testClient) expect(t *testing.T, typ protocol.MessageType) protocol.Message {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-c.frames:
			if !ok {
				t.Fatalf("connection closed while waiting for %s", typ)
			}
			if msg.Type == typ {
				return msg
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

// countType drains frames for d and counts those of type typ.
func (c *testClient) countType(typ protocol.MessageType, d time.Duration) int {
	n := 0
	timeout := time.After(d)
	for {
		select {
		case msg, ok := <-c.frames:
			if !ok {
				return n
			}
			if msg.Type == typ {
				n++
			}
		case <-timeout:
			return n
		}
	}
}

// expectClosed waits for the server to close the connection.
func (c *testClient) expectClosed(t *testing.T) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.frames:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("expected the server to close the connection")
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
