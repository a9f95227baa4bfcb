// Command server runs the tile world game server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LemmyAI/tileserver/internal/config"
	"github.com/LemmyAI/tileserver/internal/logging"
	"github.com/LemmyAI/tileserver/internal/server"
	"github.com/LemmyAI/tileserver/internal/webbridge"
	"github.com/LemmyAI/tileserver/internal/world"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	port := flag.Int("port", 0, "listen port (overrides config)")
	password := flag.String("password", "", "server password (overrides config)")
	bridge := flag.String("bridge", "", "also serve the WebSocket bridge on this address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Server.Address = *addr
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *password != "" {
		cfg.Server.Game.Password = *password
	}
	if *bridge != "" {
		cfg.Bridge.Listen = *bridge
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
	log.Info("bye")
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := world.NewSandbox(cfg.World)
	info := w.Info()
	log.Info("world generated",
		zap.String("name", info.Name),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
		zap.Uint64("seed", cfg.World.Seed))

	srv := server.New(cfg.Server, w, server.WithLogger(log))
	if err := srv.Listen(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if cfg.Bridge.Listen != "" {
		if cfg.Bridge.Upstream == "" {
			cfg.Bridge.Upstream = srv.Addr().String()
		}
		b := webbridge.New(cfg.Bridge, log.Named("bridge"))
		g.Go(func() error { return b.ListenAndServe(gctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
