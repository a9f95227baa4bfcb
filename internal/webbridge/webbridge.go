// Package webbridge lets browser clients reach the game port. Each binary
// WebSocket message carries exactly one protocol frame, length prefix
// included, and is relayed over a dedicated TCP connection to the server.
package webbridge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/LemmyAI/tileserver/internal/protocol"
)

// Config holds bridge configuration.
type Config struct {
	Listen         string        `yaml:"listen"` // Empty disables the bridge
	Path           string        `yaml:"path"`
	Upstream       string        `yaml:"upstream"` // Game server host:port
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxFrameSize   int           `yaml:"max_frame_size"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PongTimeout    time.Duration `yaml:"pong_timeout"`
	SendQueueSize  int           `yaml:"send_queue_size"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Path:          "/ws",
		Upstream:      "127.0.0.1:7777",
		MaxFrameSize:  protocol.DefaultMaxFrameSize,
		DialTimeout:   3 * time.Second,
		WriteTimeout:  5 * time.Second,
		PongTimeout:   60 * time.Second,
		SendQueueSize: 64,
	}
}

// pingInterval must stay below the pong timeout.
func (c Config) pingInterval() time.Duration {
	return c.PongTimeout * 9 / 10
}

// Bridge upgrades HTTP requests and relays frames to the game server.
type Bridge struct {
	cfg      Config
	log      *zap.Logger
	upgrader websocket.Upgrader
	dialer   net.Dialer
	sessions *xsync.MapOf[uuid.UUID, *session]
}

// New creates a bridge.
func New(cfg Config, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}

	b := &Bridge{
		cfg:      cfg,
		log:      log,
		dialer:   net.Dialer{Timeout: cfg.DialTimeout},
		sessions: xsync.NewMapOf[uuid.UUID, *session](),
	}
	b.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     b.checkOrigin,
	}
	return b
}

func (b *Bridge) checkOrigin(r *http.Request) bool {
	if len(b.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(b.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

// Sessions returns the number of open bridge sessions.
func (b *Bridge) Sessions() int {
	return b.sessions.Size()
}

// Handler returns the HTTP handler serving the bridge path.
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(b.cfg.Path, b)
	return mux
}

// ServeHTTP dials the game server and upgrades the request.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upstream, err := b.dialer.DialContext(r.Context(), "tcp", b.cfg.Upstream)
	if err != nil {
		b.log.Warn("upstream unavailable", zap.String("upstream", b.cfg.Upstream), zap.Error(err))
		http.Error(w, "game server unavailable", http.StatusBadGateway)
		return
	}

	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		upstream.Close()
		b.log.Debug("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	s := newSession(b, ws, upstream)
	b.sessions.Store(s.id, s)
	b.log.Info("bridge session opened",
		zap.Stringer("session", s.id),
		zap.String("remote", r.RemoteAddr),
		zap.Stringer("upstream", upstream.LocalAddr()))

	go s.writePump()
	go s.upstreamPump()
	go s.readPump()
}

// ListenAndServe serves the bridge until ctx is done, then closes every
// session.
func (b *Bridge) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              b.cfg.Listen,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	b.log.Info("bridge listening",
		zap.String("addr", b.cfg.Listen),
		zap.String("path", b.cfg.Path),
		zap.String("upstream", b.cfg.Upstream))
	err := srv.ListenAndServe()
	b.CloseAll()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// CloseAll closes every open session.
func (b *Bridge) CloseAll() {
	b.sessions.Range(func(_ uuid.UUID, s *session) bool {
		s.close("bridge shutting down")
		return true
	})
}
