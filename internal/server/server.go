// Package server ties the listener, the readiness pump and the simulation
// loop together.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LemmyAI/tileserver/internal/game"
	"github.com/LemmyAI/tileserver/internal/metrics"
	"github.com/LemmyAI/tileserver/internal/protocol"
	"github.com/LemmyAI/tileserver/internal/transport"
	"github.com/LemmyAI/tileserver/internal/world"
)

// Config holds server configuration.
type Config struct {
	Address    string           `yaml:"address"` // Empty binds all interfaces
	Port       int              `yaml:"port"`
	Backlog    int              `yaml:"backlog"`
	StatusAddr string           `yaml:"status_addr"` // HTTP status endpoint, empty disables
	Transport  transport.Config `yaml:"transport"`
	Game       game.Config      `yaml:"game"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:      7777,
		Backlog:   5,
		Transport: transport.DefaultConfig(),
		Game:      game.DefaultConfig(),
	}
}

// Dispatcher handles one decoded message from a connection. An error drops
// the connection.
type Dispatcher interface {
	Dispatch(msg protocol.Message, c *transport.Connection) error
}

// Server accepts clients, reads their frames and runs the simulation.
type Server struct {
	cfg   Config
	state *atomic.Int32

	registry   *transport.Registry
	poller     transport.Poller
	world      world.World
	sender     *game.Sender
	dispatcher Dispatcher
	engine     *game.Engine
	clock      clock.Clock
	metrics    *metrics.Metrics
	log        *zap.Logger

	listener net.Listener
	subs     []*world.Subscription

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithPoller replaces the platform readiness poller.
func WithPoller(p transport.Poller) Option {
	return func(s *Server) { s.poller = p }
}

// WithDispatcher replaces the protocol handlers.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Server) { s.dispatcher = d }
}

// WithClock sets the clock driving the simulation.
func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a server for w and subscribes to its events.
func New(cfg Config, w world.World, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		state:    atomic.NewInt32(int32(Closed)),
		registry: transport.NewRegistry(cfg.Transport.MaxConnections),
		world:    w,
		clock:    clock.New(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.poller == nil {
		s.poller = transport.NewPoller()
	}

	s.sender = game.NewSender(s.registry, w, s.metrics, s.log.Named("sender"))
	if s.dispatcher == nil {
		s.dispatcher = game.NewHandlerService(cfg.Game, s.sender, w, s.log.Named("handler"))
	}
	s.engine = game.NewEngine(cfg.Game, w, s.sender,
		game.WithClock(s.clock),
		game.WithLogger(s.log.Named("engine")),
		game.WithMetrics(s.metrics))

	s.subscribeWorld()
	return s
}

// State returns the current network state.
func (s *Server) State() NetworkState {
	return NetworkState(s.state.Load())
}

func (s *Server) running() bool {
	return s.State() == Running
}

// Metrics returns the server counters.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Addr returns the listening address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	if !s.state.CompareAndSwap(int32(Closed), int32(Starting)) {
		return fmt.Errorf("%w: listen in state %s", ErrNotRunning, s.State())
	}

	ln, err := transport.Listen(s.cfg.Address, s.cfg.Port, s.cfg.Backlog)
	if err != nil {
		s.state.Store(int32(Error))
		s.log.Error("bind failed",
			zap.String("address", s.cfg.Address),
			zap.Int("port", s.cfg.Port),
			zap.Error(err))
		return fmt.Errorf("%w: %w", ErrBind, err)
	}

	s.listener = ln
	s.state.Store(int32(Running))
	s.log.Info("listening", zap.Stringer("addr", ln.Addr()), zap.Int("backlog", s.cfg.Backlog))
	return nil
}

// Run serves until ctx is done or a loop fails, then closes the server.
// The simulation runs on the calling goroutine.
func (s *Server) Run(ctx context.Context) error {
	if s.State() == Closed {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	if !s.running() {
		return fmt.Errorf("%w: %s", ErrNotRunning, s.State())
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.acceptLoop(gctx) })
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		s.stopAccepting()
		return nil
	})
	if s.cfg.StatusAddr != "" {
		g.Go(func() error { return s.serveStatus(gctx) })
	}

	simErr := s.engine.Run(gctx)
	if simErr != nil {
		s.log.Error("simulation failed", zap.Error(simErr))
	}
	cancel()

	if err := g.Wait(); err != nil && simErr == nil {
		return err
	}
	return simErr
}

// stopAccepting leaves Running and unblocks Accept.
func (s *Server) stopAccepting() {
	s.state.CompareAndSwap(int32(Running), int32(Closing))
	if s.listener != nil {
		s.listener.Close()
	}
}

// Close releases the world subscriptions, closes the listener and drops every
// connection. Safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		if s.State() != Error {
			s.state.Store(int32(Closing))
		}
		for _, sub := range s.subs {
			sub.Unsubscribe()
		}
		if s.listener != nil {
			if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.closeErr = err
			}
		}
		n := s.registry.CloseAll()
		if s.State() != Error {
			s.state.Store(int32(Closed))
		}
		s.log.Info("server closed", zap.Int("dropped", n))
	})
	return s.closeErr
}
