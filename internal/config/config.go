// Package config loads the process configuration from a YAML file, a .env
// file and TILESERVER_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/LemmyAI/tileserver/internal/logging"
	"github.com/LemmyAI/tileserver/internal/server"
	"github.com/LemmyAI/tileserver/internal/webbridge"
	"github.com/LemmyAI/tileserver/internal/world"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TILESERVER_"

// Config is the complete process configuration.
type Config struct {
	Server  server.Config    `yaml:"server"`
	World   world.Config     `yaml:"world"`
	Logging logging.Config   `yaml:"logging"`
	Bridge  webbridge.Config `yaml:"bridge"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Server:  server.DefaultConfig(),
		World:   world.DefaultConfig(),
		Logging: logging.DefaultConfig(),
		Bridge:  webbridge.DefaultConfig(),
	}
}

// Load reads path over the defaults, then applies the environment. An empty
// path skips the file. A missing .env file is not an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.Game.FPS <= 0 {
		errs = append(errs, fmt.Errorf("server.game.fps must be positive, got %g", c.Server.Game.FPS))
	}
	if c.Server.Transport.MaxFrameSize <= 0 {
		errs = append(errs, errors.New("server.transport.max_frame_size must be positive"))
	}
	if c.World.Width <= 0 || c.World.Height <= 0 {
		errs = append(errs, fmt.Errorf("world size %dx%d is invalid", c.World.Width, c.World.Height))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type lookupFunc func(string) (string, bool)

// applyEnv overrides cfg from TILESERVER_* variables.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := lookup(EnvPrefix + name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("ADDRESS", &cfg.Server.Address)
	num("PORT", &cfg.Server.Port)
	num("BACKLOG", &cfg.Server.Backlog)
	str("STATUS_ADDR", &cfg.Server.StatusAddr)
	num("MAX_CONNECTIONS", &cfg.Server.Transport.MaxConnections)
	dur("READ_TIMEOUT", &cfg.Server.Transport.ReadTimeout)
	dur("POLL_TIMEOUT", &cfg.Server.Transport.PollTimeout)
	float("FPS", &cfg.Server.Game.FPS)
	str("PASSWORD", &cfg.Server.Game.Password)
	str("MOTD", &cfg.Server.Game.MOTD)

	str("WORLD_NAME", &cfg.World.Name)
	if v, ok := lookup(EnvPrefix + "WORLD_SEED"); ok {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sWORLD_SEED: %w", EnvPrefix, err))
		} else {
			cfg.World.Seed = seed
		}
	}

	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FILE", &cfg.Logging.File)

	str("BRIDGE_LISTEN", &cfg.Bridge.Listen)
	str("BRIDGE_UPSTREAM", &cfg.Bridge.Upstream)

	return errors.Join(errs...)
}
