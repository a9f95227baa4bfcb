// Package transport owns client sockets: the connection registry, per-connection
// send queues, readiness polling and the listening socket.
package transport

import (
	"time"

	"github.com/LemmyAI/tileserver/internal/protocol"
)

// Config holds transport configuration.
type Config struct {
	MaxConnections  int           `yaml:"max_connections"`
	MaxFrameSize    int           `yaml:"max_frame_size"`
	SendQueueSize   int           `yaml:"send_queue_size"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`  // Bounds reading one frame once the socket is readable
	WriteTimeout    time.Duration `yaml:"write_timeout"` // Bounds writing one queued frame
	CloseLinger     time.Duration `yaml:"close_linger"`  // How long Close keeps flushing queued frames
	PollTimeout     time.Duration `yaml:"poll_timeout"`
	FramesPerSecond float64       `yaml:"frames_per_second"` // 0 disables the flood limit
	FrameBurst      int           `yaml:"frame_burst"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConnections:  255,
		MaxFrameSize:    protocol.DefaultMaxFrameSize,
		SendQueueSize:   256,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    2 * time.Second,
		CloseLinger:     250 * time.Millisecond,
		PollTimeout:     100 * time.Millisecond,
		FramesPerSecond: 200,
		FrameBurst:      400,
	}
}
