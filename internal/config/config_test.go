package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tileserver.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("expected port 7777, got %d", cfg.Server.Port)
	}
	if cfg.Server.Transport.ReadTimeout != 5*time.Second {
		t.Errorf("expected 5s read timeout, got %v", cfg.Server.Transport.ReadTimeout)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
server:
  port: 7878
  transport:
    read_timeout: 2s
  game:
    password: hunter2
world:
  name: Forest
  seed: 42
logging:
  level: debug
bridge:
  listen: ":8080"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7878 {
		t.Errorf("expected port 7878, got %d", cfg.Server.Port)
	}
	if cfg.Server.Transport.ReadTimeout != 2*time.Second {
		t.Errorf("expected 2s, got %v", cfg.Server.Transport.ReadTimeout)
	}
	if cfg.Server.Game.Password != "hunter2" {
		t.Errorf("expected password, got %q", cfg.Server.Game.Password)
	}
	// Unset keys keep their defaults.
	if cfg.Server.Game.FPS != 60 {
		t.Errorf("expected default fps, got %g", cfg.Server.Game.FPS)
	}
	if cfg.World.Name != "Forest" || cfg.World.Seed != 42 || cfg.World.Width != 400 {
		t.Errorf("unexpected world %+v", cfg.World)
	}
	if cfg.Logging.Level != "debug" || cfg.Bridge.Listen != ":8080" {
		t.Errorf("unexpected logging %+v or bridge %+v", cfg.Logging, cfg.Bridge)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	if _, err := Load(writeFile(t, "server: [")); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("TILESERVER_PORT", "9999")
	t.Setenv("TILESERVER_PASSWORD", "swordfish")
	t.Setenv("TILESERVER_READ_TIMEOUT", "750ms")

	cfg, err := Load(writeFile(t, "server:\n  port: 7878\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected env port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.Game.Password != "swordfish" {
		t.Errorf("expected env password, got %q", cfg.Server.Game.Password)
	}
	if cfg.Server.Transport.ReadTimeout != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", cfg.Server.Transport.ReadTimeout)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TILESERVER_FPS":             "30",
		"TILESERVER_WORLD_SEED":      "18446744073709551615",
		"TILESERVER_MAX_CONNECTIONS": "8",
		"TILESERVER_BRIDGE_UPSTREAM": "game:7777",
		"UNRELATED":                  "ignored",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := applyEnv(&cfg, lookup); err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}
	if cfg.Server.Game.FPS != 30 {
		t.Errorf("expected 30 fps, got %g", cfg.Server.Game.FPS)
	}
	if cfg.World.Seed != 18446744073709551615 {
		t.Errorf("unexpected seed %d", cfg.World.Seed)
	}
	if cfg.Server.Transport.MaxConnections != 8 {
		t.Errorf("expected 8, got %d", cfg.Server.Transport.MaxConnections)
	}
	if cfg.Bridge.Upstream != "game:7777" {
		t.Errorf("unexpected upstream %q", cfg.Bridge.Upstream)
	}
}

func TestApplyEnvErrors(t *testing.T) {
	env := map[string]string{
		"TILESERVER_PORT":         "seventy",
		"TILESERVER_POLL_TIMEOUT": "soon",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	err := applyEnv(&cfg, lookup)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, name := range []string{"TILESERVER_PORT", "TILESERVER_POLL_TIMEOUT"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("expected %s in %v", name, err)
		}
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("expected port to keep its default, got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"fps", func(c *Config) { c.Server.Game.FPS = 0 }, "fps"},
		{"frame size", func(c *Config) { c.Server.Transport.MaxFrameSize = 0 }, "max_frame_size"},
		{"world", func(c *Config) { c.World.Height = 0 }, "world size"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
