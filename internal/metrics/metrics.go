// Package metrics keeps process-wide server counters.
package metrics

import (
	"time"

	"go.uber.org/atomic"
)

// Metrics records server activity. A nil *Metrics discards everything.
type Metrics struct {
	ConnectionsAccepted *atomic.Int64
	ConnectionsRejected *atomic.Int64
	Disconnects         *atomic.Int64 // Announced disconnects
	SocketErrors        *atomic.Int64 // Connections dropped by the poller
	ProtocolErrors      *atomic.Int64

	FramesIn   *atomic.Int64
	BytesIn    *atomic.Int64
	FramesOut  *atomic.Int64
	BytesOut   *atomic.Int64
	SendFailed *atomic.Int64

	Ticks        *atomic.Int64
	TickOverruns *atomic.Int64
	FullSyncs    *atomic.Int64
	TotalTickNs  *atomic.Int64

	started time.Time
}

// New creates zeroed counters.
func New() *Metrics {
	return &Metrics{
		ConnectionsAccepted: atomic.NewInt64(0),
		ConnectionsRejected: atomic.NewInt64(0),
		Disconnects:         atomic.NewInt64(0),
		SocketErrors:        atomic.NewInt64(0),
		ProtocolErrors:      atomic.NewInt64(0),
		FramesIn:            atomic.NewInt64(0),
		BytesIn:             atomic.NewInt64(0),
		FramesOut:           atomic.NewInt64(0),
		BytesOut:            atomic.NewInt64(0),
		SendFailed:          atomic.NewInt64(0),
		Ticks:               atomic.NewInt64(0),
		TickOverruns:        atomic.NewInt64(0),
		FullSyncs:           atomic.NewInt64(0),
		TotalTickNs:         atomic.NewInt64(0),
		started:             time.Now(),
	}
}

func (m *Metrics) Accepted() {
	if m != nil {
		m.ConnectionsAccepted.Inc()
	}
}

func (m *Metrics) Rejected() {
	if m != nil {
		m.ConnectionsRejected.Inc()
	}
}

func (m *Metrics) Disconnected() {
	if m != nil {
		m.Disconnects.Inc()
	}
}

func (m *Metrics) SocketError() {
	if m != nil {
		m.SocketErrors.Inc()
	}
}

func (m *Metrics) ProtocolError() {
	if m != nil {
		m.ProtocolErrors.Inc()
	}
}

// FrameIn counts one inbound frame of n payload bytes.
func (m *Metrics) FrameIn(n int) {
	if m != nil {
		m.FramesIn.Inc()
		m.BytesIn.Add(int64(n))
	}
}

// FrameOut counts one queued outbound frame of n bytes.
func (m *Metrics) FrameOut(n int) {
	if m != nil {
		m.FramesOut.Inc()
		m.BytesOut.Add(int64(n))
	}
}

func (m *Metrics) SendFailure() {
	if m != nil {
		m.SendFailed.Inc()
	}
}

// Tick records one simulation step and how long it took.
func (m *Metrics) Tick(d time.Duration, overrun bool) {
	if m == nil {
		return
	}
	m.Ticks.Inc()
	m.TotalTickNs.Add(d.Nanoseconds())
	if overrun {
		m.TickOverruns.Inc()
	}
}

func (m *Metrics) FullSync() {
	if m != nil {
		m.FullSyncs.Inc()
	}
}

// Snapshot returns a read-only copy for JSON output.
func (m *Metrics) Snapshot() map[string]any {
	if m == nil {
		return map[string]any{}
	}
	ticks := m.Ticks.Load()
	var avgMs float64
	if ticks > 0 {
		avgMs = float64(m.TotalTickNs.Load()) / float64(ticks) / 1e6
	}
	return map[string]any{
		"uptime_s":             time.Since(m.started).Seconds(),
		"connections_accepted": m.ConnectionsAccepted.Load(),
		"connections_rejected": m.ConnectionsRejected.Load(),
		"disconnects":          m.Disconnects.Load(),
		"socket_errors":        m.SocketErrors.Load(),
		"protocol_errors":      m.ProtocolErrors.Load(),
		"frames_in":            m.FramesIn.Load(),
		"bytes_in":             m.BytesIn.Load(),
		"frames_out":           m.FramesOut.Load(),
		"bytes_out":            m.BytesOut.Load(),
		"send_failed":          m.SendFailed.Load(),
		"ticks":                ticks,
		"tick_overruns":        m.TickOverruns.Load(),
		"full_syncs":           m.FullSyncs.Load(),
		"avg_tick_ms":          avgMs,
	}
}
