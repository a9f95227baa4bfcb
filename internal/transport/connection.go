package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/LemmyAI/tileserver/internal/protocol"
)

// ClientState is the protocol state of one client.
type ClientState struct {
	Approved         bool // Handshake completed
	AwaitingPassword bool
	Name             string
	Active           bool // Player is in the world
	X, Y             float32
	VX, VY           float32
}

// Connection is one accepted client socket.
//
// Reads happen on a single goroutine (the readiness pump). Writes go through
// a bounded queue drained by a per-connection writer goroutine, so Send never
// blocks the caller.
type Connection struct {
	ID          int
	Session     uuid.UUID
	Conn        net.Conn
	RemoteAddr  net.Addr
	ConnectedAt time.Time

	// Data is the payload of the last frame read.
	Data []byte

	cfg     Config
	limiter *rate.Limiter

	stateMu sync.RWMutex
	state   ClientState

	send        chan []byte
	done        chan struct{}
	writerDone  chan struct{}
	lingerUntil time.Time
	closeOnce   sync.Once
	closeErr    error

	doomed *atomic.Bool
}

// NewConnection wraps conn and starts its writer goroutine.
func NewConnection(id int, conn net.Conn, cfg Config) *Connection {
	queue := cfg.SendQueueSize
	if queue <= 0 {
		queue = 1
	}

	c := &Connection{
		ID:          id,
		Session:     uuid.New(),
		Conn:        conn,
		RemoteAddr:  conn.RemoteAddr(),
		ConnectedAt: time.Now(),
		cfg:         cfg,
		send:        make(chan []byte, queue),
		done:        make(chan struct{}),
		writerDone:  make(chan struct{}),
		doomed:      atomic.NewBool(false),
	}
	if cfg.FramesPerSecond > 0 {
		burst := cfg.FrameBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.FramesPerSecond), burst)
	}

	go c.writeLoop()
	return c
}

func (c *Connection) String() string {
	return fmt.Sprintf("client#%d(%s)", c.ID, c.RemoteAddr)
}

// ReadMessage reads one frame. It is only called when the socket is readable,
// and the read deadline bounds a peer that stalls mid-frame.
func (c *Connection) ReadMessage() (protocol.Message, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		return protocol.Message{}, ErrFloodLimit
	}
	if c.cfg.ReadTimeout > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		defer c.Conn.SetReadDeadline(time.Time{})
	}

	msg, payload, err := protocol.ReadMessage(c.Conn, c.cfg.MaxFrameSize)
	if err != nil {
		return protocol.Message{}, err
	}
	c.Data = payload
	return msg, nil
}

// Send queues an encoded frame. It fails when the connection is closed,
// flagged, or its queue is full.
func (c *Connection) Send(frame []byte) error {
	if c.doomed.Load() {
		return ErrConnectionClosed
	}
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// SendMessage encodes and queues msg.
func (c *Connection) SendMessage(msg protocol.Message) error {
	return c.Send(protocol.Encode(msg))
}

// MarkForRemoval flags the connection so the reader drops it on its next pass.
func (c *Connection) MarkForRemoval() {
	c.doomed.Store(true)
}

// MarkedForRemoval reports whether the connection was flagged.
func (c *Connection) MarkedForRemoval() bool {
	return c.doomed.Load()
}

// State returns a copy of the client state.
func (c *Connection) State() ClientState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// UpdateState mutates the client state under lock.
func (c *Connection) UpdateState(fn func(*ClientState)) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	fn(&c.state)
}

// Close stops the writer, flushing queued frames for at most CloseLinger,
// and closes the socket. Safe to call more than once.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.lingerUntil = time.Now().Add(c.cfg.CloseLinger)
		close(c.done)

		wait := time.NewTimer(c.cfg.CloseLinger)
		select {
		case <-c.writerDone:
		case <-wait.C:
		}
		wait.Stop()

		c.closeErr = c.Conn.Close()
	})
	return c.closeErr
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Connection) writeLoop() {
	defer close(c.writerDone)

	for {
		select {
		case frame := <-c.send:
			var deadline time.Time
			if c.cfg.WriteTimeout > 0 {
				deadline = time.Now().Add(c.cfg.WriteTimeout)
			}
			if err := c.write(frame, deadline); err != nil {
				c.MarkForRemoval()
				return
			}
		case <-c.done:
			for {
				select {
				case frame := <-c.send:
					if err := c.write(frame, c.lingerUntil); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *Connection) write(frame []byte, deadline time.Time) error {
	_ = c.Conn.SetWriteDeadline(deadline)
	_, err := c.Conn.Write(frame)
	return err
}
