package webbridge

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/LemmyAI/tileserver/internal/protocol"
)

// session pairs one browser socket with one upstream game connection.
type session struct {
	id       uuid.UUID
	bridge   *Bridge
	ws       *websocket.Conn
	upstream net.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(b *Bridge, ws *websocket.Conn, upstream net.Conn) *session {
	return &session{
		id:       uuid.New(),
		bridge:   b,
		ws:       ws,
		upstream: upstream,
		send:     make(chan []byte, b.cfg.SendQueueSize),
		done:     make(chan struct{}),
	}
}

// close tears down both sides once.
func (s *session) close(reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		s.bridge.sessions.Delete(s.id)

		deadline := time.Now().Add(time.Second)
		_ = s.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason), deadline)
		s.ws.Close()
		s.upstream.Close()
		s.bridge.log.Info("bridge session closed", zap.Stringer("session", s.id), zap.String("reason", reason))
	})
}

// readPump forwards browser frames to the game server.
func (s *session) readPump() {
	cfg := s.bridge.cfg
	if cfg.MaxFrameSize > 0 {
		s.ws.SetReadLimit(int64(cfg.MaxFrameSize + protocol.HeaderSize))
	}
	s.ws.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	})

	for {
		kind, data, err := s.ws.ReadMessage()
		if err != nil {
			s.close("browser disconnected")
			return
		}
		if kind != websocket.BinaryMessage {
			s.close("text messages are not supported")
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			s.bridge.log.Warn("malformed frame from browser", zap.Stringer("session", s.id), zap.Error(err))
			s.close("malformed frame")
			return
		}
		if cfg.WriteTimeout > 0 {
			s.upstream.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
		}
		if err := protocol.WriteMessage(s.upstream, msg); err != nil {
			s.close("game server write failed")
			return
		}
	}
}

// upstreamPump queues game server frames for the browser.
func (s *session) upstreamPump() {
	for {
		msg, _, err := protocol.ReadMessage(s.upstream, s.bridge.cfg.MaxFrameSize)
		if err != nil {
			s.close("game server closed the connection")
			return
		}
		select {
		case s.send <- protocol.Encode(msg):
		case <-s.done:
			return
		default:
			s.bridge.log.Warn("browser too slow, dropping session", zap.Stringer("session", s.id))
			s.close("send queue full")
			return
		}
	}
}

// writePump owns every write to the browser socket except the final close.
func (s *session) writePump() {
	cfg := s.bridge.cfg
	ping := time.NewTicker(cfg.pingInterval())
	defer ping.Stop()

	for {
		select {
		case frame := <-s.send:
			s.ws.SetWriteDeadline(writeDeadline(cfg.WriteTimeout))
			if err := s.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				s.close("browser write failed")
				return
			}
		case <-ping.C:
			if err := s.ws.WriteControl(websocket.PingMessage, nil, writeDeadline(cfg.WriteTimeout)); err != nil {
				s.close("ping failed")
				return
			}
		case <-s.done:
			return
		}
	}
}

func writeDeadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
