package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/LemmyAI/tileserver/internal/protocol"
	"github.com/LemmyAI/tileserver/internal/transport"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second

	reasonServerFull = "Server is full."
)

// acceptLoop admits new sockets while the server is Running. Transient
// accept errors back off and retry; any other error is fatal.
func (s *Server) acceptLoop(ctx context.Context) error {
	log := s.log.Named("accept")
	var delay time.Duration

	for s.running() {
		sock, err := s.listener.Accept()
		if err != nil {
			if !s.running() || ctx.Err() != nil {
				return nil
			}
			if !temporary(err) {
				log.Error("accept failed", zap.Error(err))
				return fmt.Errorf("%w: %w", ErrAccept, err)
			}

			delay = min(max(2*delay, minAcceptDelay), maxAcceptDelay)
			log.Warn("accept error, retrying", zap.Duration("delay", delay), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		delay = 0
		s.admit(sock, log)
	}
	return nil
}

func (s *Server) admit(sock net.Conn, log *zap.Logger) {
	c := transport.NewConnection(s.registry.NewClientID(), sock, s.cfg.Transport)
	if err := s.registry.Add(c); err != nil {
		log.Warn("rejecting connection",
			zap.Stringer("remote", c.RemoteAddr),
			zap.Int("open", s.registry.Len()),
			zap.Error(err))
		if errors.Is(err, transport.ErrRegistryFull) {
			c.SendMessage(protocol.New(protocol.Disconnect{Reason: reasonServerFull}))
		}
		c.Close()
		s.metrics.Rejected()
		return
	}

	s.metrics.Accepted()
	log.Info("client connected",
		zap.Int("client", c.ID),
		zap.Stringer("remote", c.RemoteAddr),
		zap.Stringer("session", c.Session))
}

// temporary reports whether an accept error is worth retrying.
func temporary(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.EINTR)
}
