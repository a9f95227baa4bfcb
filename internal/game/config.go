// Package game implements the simulation clock, the broadcaster and the
// protocol message handlers.
package game

// Config holds game configuration.
type Config struct {
	FPS              float64 `yaml:"fps"`                // Target simulation frames per second (default: 60)
	TickDelta        float64 `yaml:"tick_delta"`         // World time advanced per frame (default: 1)
	FullSyncInterval float64 `yaml:"full_sync_interval"` // Milliseconds between full syncs (default: 3600)
	DeltaInterval    int     `yaml:"delta_interval"`     // Frames between player delta broadcasts, 0 disables (default: 3)
	SectionSize      int     `yaml:"section_size"`       // Edge of the square sent for RequestTileSection
	Password         string  `yaml:"password"`
	MOTD             string  `yaml:"motd"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FPS:              60,
		TickDelta:        1.0,
		FullSyncInterval: 3600,
		DeltaInterval:    3,
		SectionSize:      16,
		MOTD:             "Welcome to the jungle! We got fun and games!",
	}
}
