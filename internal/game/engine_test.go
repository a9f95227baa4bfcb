package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"

	"github.com/LemmyAI/tileserver/internal/metrics"
)

// recordingSyncer counts the broadcasts the engine triggers.
type recordingSyncer struct {
	mu           sync.Mutex
	worldUpdates int
	playerSyncs  int
	deltas       int
}

func (r *recordingSyncer) SendWorldUpdateToAllClients() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.worldUpdates++
}

func (r *recordingSyncer) SyncPlayers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playerSyncs++
}

func (r *recordingSyncer) SendPlayerDeltas() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deltas++
}

func (r *recordingSyncer) counts() (int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.worldUpdates, r.playerSyncs, r.deltas
}

// funcWorld runs fn on every update.
type funcWorld struct {
	mu      sync.Mutex
	updates int
	deltas  []float64
	fn      func(n int)
}

func (w *funcWorld) Update(delta float64) {
	w.mu.Lock()
	w.updates++
	n := w.updates
	w.deltas = append(w.deltas, delta)
	w.mu.Unlock()
	if w.fn != nil {
		w.fn(n)
	}
}

func (w *funcWorld) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.updates
}

func testEngineConfig() Config {
	config := DefaultConfig()
	config.DeltaInterval = 0
	return config
}

func TestEngineFrameBudget(t *testing.T) {
	e := NewEngine(DefaultConfig(), &funcWorld{}, &recordingSyncer{})

	if got, want := e.FrameBudget(), time.Second/60; got != want {
		t.Errorf("expected %v, got %v", want, got)
	}

	config := DefaultConfig()
	config.FPS = 0
	if got := NewEngine(config, &funcWorld{}, &recordingSyncer{}).FrameBudget(); got != time.Second/60 {
		t.Errorf("expected fps 0 to fall back to 60, got %v", got)
	}
}

func TestEngineRemaining(t *testing.T) {
	e := NewEngine(DefaultConfig(), &funcWorld{}, &recordingSyncer{})
	budget := e.FrameBudget()

	tests := []struct {
		name    string
		elapsed time.Duration
		want    time.Duration
	}{
		{"idle", 0, budget},
		{"partial", 5 * time.Millisecond, budget - 5*time.Millisecond},
		{"exact", budget, 0},
		{"overrun", 3 * budget, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.remaining(tt.elapsed); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEngineFullSyncOnce(t *testing.T) {
	mock := clock.NewMock()
	syncer := &recordingSyncer{}
	w := &funcWorld{}
	e := NewEngine(testEngineConfig(), w, syncer, WithClock(mock))

	// 222 frames of 1/60s is just over 3.7s: one threshold crossing.
	var fullSyncs int
	for i := 0; i < 222; i++ {
		if e.Step() {
			fullSyncs++
		}
		mock.Add(e.FrameBudget())
	}

	worldUpdates, playerSyncs, _ := syncer.counts()
	if fullSyncs != 1 || worldUpdates != 1 || playerSyncs != 1 {
		t.Errorf("expected exactly one full sync, got steps=%d world=%d players=%d", fullSyncs, worldUpdates, playerSyncs)
	}
	if e.SyncElapsed() >= 3600*time.Millisecond {
		t.Errorf("expected the sync timer to restart, elapsed %v", e.SyncElapsed())
	}
	if w.count() != 222 || e.CurrentTick() != 222 {
		t.Errorf("expected 222 updates, got world=%d tick=%d", w.count(), e.CurrentTick())
	}
	for _, d := range w.deltas {
		if d != 1.0 {
			t.Fatalf("expected tick delta 1.0, got %v", d)
		}
	}
}

func TestEngineThresholdIsExclusive(t *testing.T) {
	mock := clock.NewMock()
	syncer := &recordingSyncer{}
	e := NewEngine(testEngineConfig(), &funcWorld{}, syncer, WithClock(mock))

	e.Step()
	mock.Add(3600 * time.Millisecond)
	if e.Step() {
		t.Error("expected no full sync at exactly the threshold")
	}
	mock.Add(time.Millisecond)
	if !e.Step() {
		t.Error("expected a full sync past the threshold")
	}
}

func TestEnginePlayerDeltas(t *testing.T) {
	config := testEngineConfig()
	config.DeltaInterval = 3
	syncer := &recordingSyncer{}
	e := NewEngine(config, &funcWorld{}, syncer, WithClock(clock.NewMock()))

	for i := 0; i < 7; i++ {
		e.Step()
	}

	if _, _, deltas := syncer.counts(); deltas != 2 {
		t.Errorf("expected 2 delta broadcasts, got %d", deltas)
	}
}

func TestEngineRunOverrunSkipsSleep(t *testing.T) {
	mock := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	var e *Engine
	w := &funcWorld{fn: func(n int) {
		// Every frame takes twice its budget.
		mock.Add(2 * e.FrameBudget())
		if n == 5 {
			cancel()
		}
	}}
	e = NewEngine(testEngineConfig(), w, &recordingSyncer{}, WithClock(mock), WithMetrics(m))

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected overrunning frames not to sleep")
	}
	if w.count() != 5 {
		t.Errorf("expected 5 frames, got %d", w.count())
	}
	if m.TickOverruns.Load() != 5 {
		t.Errorf("expected 5 overruns, got %d", m.TickOverruns.Load())
	}
}

func TestEngineRunSleepsOutBudget(t *testing.T) {
	mock := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &funcWorld{}
	e := NewEngine(testEngineConfig(), w, &recordingSyncer{}, WithClock(mock))

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	waitFor(t, func() bool { return w.count() == 1 })

	// Without the clock moving, the engine stays asleep.
	time.Sleep(20 * time.Millisecond)
	if w.count() != 1 {
		t.Fatalf("expected the engine to wait out the frame, got %d frames", w.count())
	}

	waitFor(t, func() bool {
		mock.Add(e.FrameBudget())
		return w.count() >= 2
	})

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run failed: %v", err)
	}
}

func TestEngineRunRealClockPeriod(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	config := testEngineConfig()
	config.FPS = 100
	w := &funcWorld{}
	e := NewEngine(config, w, &recordingSyncer{}, WithLogger(zaptest.NewLogger(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 10ms frames over 300ms.
	if n := w.count(); n < 15 || n > 32 {
		t.Errorf("expected about 30 frames, got %d", n)
	}
}

func TestEngineRunPanicIsFatal(t *testing.T) {
	w := &funcWorld{fn: func(n int) {
		if n == 3 {
			panic("tile index out of range")
		}
	}}
	mock := clock.NewMock()
	e := NewEngine(testEngineConfig(), w, &recordingSyncer{}, WithClock(mock))
	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	var err error
	waitFor(t, func() bool {
		select {
		case err = <-done:
			return true
		default:
			mock.Add(e.FrameBudget())
			return false
		}
	})
	if !errors.Is(err, ErrTickPanic) {
		t.Errorf("expected ErrTickPanic, got %v", err)
	}
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &funcWorld{}
	e := NewEngine(testEngineConfig(), w, &recordingSyncer{})
	if err := e.Run(ctx); err != nil {
		t.Errorf("Run failed: %v", err)
	}
	if w.count() != 0 {
		t.Errorf("expected no frames after cancel, got %d", w.count())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func BenchmarkEngineStep(b *testing.B) {
	e := NewEngine(DefaultConfig(), newTestWorld(), &recordingSyncer{}, WithClock(clock.NewMock()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Step()
	}
}
