// Command webbridge relays browser WebSocket clients to a running game server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/LemmyAI/tileserver/internal/config"
	"github.com/LemmyAI/tileserver/internal/logging"
	"github.com/LemmyAI/tileserver/internal/webbridge"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	listen := flag.String("listen", ":8080", "HTTP listen address")
	upstream := flag.String("upstream", "", "game server address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if cfg.Bridge.Listen == "" {
		cfg.Bridge.Listen = *listen
	}
	if *upstream != "" {
		cfg.Bridge.Upstream = *upstream
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := webbridge.New(cfg.Bridge, log)
	if err := b.ListenAndServe(ctx); err != nil {
		log.Fatal("bridge stopped", zap.Error(err))
	}
	log.Info("bye")
}
