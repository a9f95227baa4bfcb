package game

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/LemmyAI/tileserver/internal/metrics"
	"github.com/LemmyAI/tileserver/internal/timer"
)

// Updater advances the simulation.
type Updater interface {
	Update(delta float64)
}

// Syncer sends the periodic broadcasts driven by the engine.
type Syncer interface {
	SendWorldUpdateToAllClients()
	SyncPlayers()
	SendPlayerDeltas()
}

// Engine runs the fixed-rate simulation loop.
//
// Each frame advances the world by one tick, sends a full sync when the sync
// timer passes FullSyncInterval, and sleeps out the rest of the frame budget.
// Frames that overrun the budget are not made up.
type Engine struct {
	config    Config
	world     Updater
	syncer    Syncer
	clock     clock.Clock
	syncTimer *timer.Timer
	budget    time.Duration
	tick      *atomic.Int64
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for pacing and the sync timer.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a new game engine.
func NewEngine(config Config, w Updater, s Syncer, opts ...Option) *Engine {
	if config.FPS <= 0 {
		config.FPS = DefaultConfig().FPS
	}
	e := &Engine{
		config: config,
		world:  w,
		syncer: s,
		clock:  clock.New(),
		budget: time.Duration(float64(time.Second) / config.FPS),
		tick:   atomic.NewInt64(0),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.syncTimer = timer.New(e.clock)
	return e
}

// FrameBudget returns the target duration of one frame.
func (e *Engine) FrameBudget() time.Duration {
	return e.budget
}

// CurrentTick returns the number of frames simulated.
func (e *Engine) CurrentTick() int64 {
	return e.tick.Load()
}

// SyncElapsed returns the time since the last full sync.
func (e *Engine) SyncElapsed() time.Duration {
	return e.syncTimer.Elapsed()
}

// Run simulates until ctx is done. It returns a non-nil error only when a
// frame fails, which leaves the world in an unknown state.
func (e *Engine) Run(ctx context.Context) error {
	e.syncTimer.Start()
	e.log.Info("engine started",
		zap.Float64("fps", e.config.FPS),
		zap.Duration("frame", e.budget),
		zap.Float64("full_sync_ms", e.config.FullSyncInterval))
	defer func() {
		e.log.Info("engine stopped", zap.Int64("ticks", e.CurrentTick()))
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		start := e.clock.Now()
		if err := e.safeStep(); err != nil {
			return err
		}
		elapsed := e.clock.Since(start)

		sleep := e.remaining(elapsed)
		e.metrics.Tick(elapsed, sleep == 0)
		if sleep == 0 {
			e.log.Debug("frame overrun", zap.Duration("elapsed", elapsed))
			continue
		}

		t := e.clock.Timer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// Step simulates one frame and reports whether it sent a full sync.
func (e *Engine) Step() (fullSync bool) {
	n := e.tick.Inc()
	if !e.syncTimer.Started() {
		e.syncTimer.Start()
	}

	e.world.Update(e.config.TickDelta)

	if e.syncTimer.Ticks() > e.config.FullSyncInterval {
		e.syncer.SendWorldUpdateToAllClients()
		e.syncer.SyncPlayers()
		e.syncTimer.Start()
		e.metrics.FullSync()
		return true
	}
	if e.config.DeltaInterval > 0 && n%int64(e.config.DeltaInterval) == 0 {
		e.syncer.SendPlayerDeltas()
	}
	return false
}

func (e *Engine) safeStep() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w at tick %d: %v", ErrTickPanic, e.CurrentTick(), r)
		}
	}()
	e.Step()
	return nil
}

// remaining returns how long to sleep after a frame that took elapsed.
func (e *Engine) remaining(elapsed time.Duration) time.Duration {
	if elapsed >= e.budget {
		return 0
	}
	return e.budget - elapsed
}
