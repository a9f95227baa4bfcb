package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LemmyAI/tileserver/internal/protocol"
	"github.com/LemmyAI/tileserver/internal/transport"
)

// Result is the outcome of processing one ready connection.
type Result int

const (
	ResultContinue   Result = iota
	ResultDisconnect        // Peer went away mid-frame
	ResultFatal             // Peer broke the protocol
)

func (r Result) String() string {
	switch r {
	case ResultContinue:
		return "continue"
	case ResultDisconnect:
		return "disconnect"
	case ResultFatal:
		return "fatal"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// readLoop polls the registered sockets and processes the ready ones while
// the server is Running.
func (s *Server) readLoop(ctx context.Context) error {
	log := s.log.Named("pump")
	timeout := s.cfg.Transport.PollTimeout
	if timeout <= 0 {
		timeout = transport.DefaultConfig().PollTimeout
	}

	for s.running() && ctx.Err() == nil {
		s.reapFlagged(log)

		readable, failed, err := s.poller.Poll(s.registry.Snapshot(), timeout)
		if err != nil {
			if errors.Is(err, transport.ErrPollUnsupported) {
				return fmt.Errorf("%w: %w", ErrPoll, err)
			}
			log.Warn("poll failed", zap.Error(err))
			time.Sleep(timeout)
			continue
		}

		for _, c := range failed {
			log.Info("socket error, dropping client", zap.Int("client", c.ID))
			s.metrics.SocketError()
			s.dropConnection(c, false)
		}

		for _, c := range readable {
			res, err := s.processConnection(c)
			switch res {
			case ResultContinue:
			case ResultDisconnect:
				log.Info("client disconnected", zap.Int("client", c.ID), zap.Stringer("session", c.Session))
				log.Debug("disconnect cause", zap.Int("client", c.ID), zap.Error(err))
				s.dropConnection(c, true)
			case ResultFatal:
				log.Error("protocol error, dropping client",
					zap.Int("client", c.ID),
					zap.Stringer("remote", c.RemoteAddr),
					zap.Error(err))
				s.metrics.ProtocolError()
				s.dropConnection(c, true)
			}
		}
	}
	return nil
}

// processConnection reads and dispatches one frame from c.
func (s *Server) processConnection(c *transport.Connection) (res Result, err error) {
	msg, err := c.ReadMessage()
	if err != nil {
		if protocol.IsDisconnect(err) {
			return ResultDisconnect, err
		}
		return ResultFatal, err
	}
	s.metrics.FrameIn(len(c.Data))

	defer func() {
		if r := recover(); r != nil {
			res, err = ResultFatal, fmt.Errorf("%w on %s: %v", ErrHandlerPanic, msg.Type, r)
		}
	}()
	if err := s.dispatcher.Dispatch(msg, c); err != nil {
		return ResultFatal, fmt.Errorf("dispatch %s: %w", msg.Type, err)
	}
	return ResultContinue, nil
}

// dropConnection removes c. The disconnect is announced only by the call
// that actually removed it.
func (s *Server) dropConnection(c *transport.Connection, announce bool) {
	if !s.registry.Remove(c) || !announce {
		return
	}
	s.metrics.Disconnected()
	s.sender.SendPlayerDisconnectedToOtherClients(c)
}

// reapFlagged drops connections the broadcaster failed to write to.
func (s *Server) reapFlagged(log *zap.Logger) {
	for _, c := range s.registry.Snapshot() {
		if c.MarkedForRemoval() {
			log.Info("dropping client after failed send", zap.Int("client", c.ID))
			s.dropConnection(c, true)
		}
	}
}
