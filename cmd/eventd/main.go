// Command eventd is the event-dispatching daemon described in spec.md:
// it loads a configuration tree, wires the router/dispatcher/control
// channel/relay/notification compositor together, and serves client
// connections until asked to stop. Bootstrap shape grounded on
// cmd/thane/main.go's flag parsing, config load, and signal-driven
// graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nugget/eventd-go/internal/buildinfo"
	"github.com/nugget/eventd-go/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.String())
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := run(logger, *configPath); err != nil {
		logger.Error("eventd exiting", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath string) error {
	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", cfgPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", cfgPath, err)
	}

	logger.Info("eventd starting", "version", buildinfo.Version, "config", cfgPath)

	d := newDaemon(logger)
	if err := d.wire(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.StartAll(ctx); err != nil {
		return err
	}
	defer d.StopAll(context.Background())

	d.watchConfigReload(ctx, cfgPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig)
	case <-d.quit:
		logger.Info("stop requested via control channel")
	case <-ctx.Done():
	}

	return nil
}
