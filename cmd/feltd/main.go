package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/feltserver/felt/internal/server"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Config  string           `short:"c" default:"felt.hcl" help:"Path to the HCL configuration file"`
	Debug   bool             `help:"Enable debug logging"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("feltd"),
		kong.Description("Real-time multiplayer poker server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	ctx.FatalIfErrorf(run(&cli))
}

func run(cli *CLI) error {
	cfg, err := server.LoadConfig(cli.Config)
	if err != nil {
		return err
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	switch {
	case cli.Debug:
		logger.SetLevel(log.DebugLevel)
	default:
		if lvl, err := log.ParseLevel(cfg.Server.LogLevel); err == nil {
			logger.SetLevel(lvl)
		}
	}

	store, err := server.NewSQLiteStore(cfg.Persistence.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)

	// The gateway and the manager reference each other: the manager
	// broadcasts through the gateway's rooms, the gateway routes client
	// messages to the manager.
	var gateway *server.Gateway
	manager, err := server.NewManager(cfg, store, server.SinkFunc(func(room, event string, payload any) error {
		return gateway.Send(room, event, payload)
	}), nil, logger)
	if err != nil {
		return err
	}
	gateway = server.NewGateway(addr, manager, logger)

	logger.Info("starting felt server", "addr", addr, "tables", len(cfg.Tables), "db", cfg.Persistence.Path)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var group errgroup.Group
	group.Go(gateway.Start)
	group.Go(func() error {
		<-sigCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gateway.Stop(); err != nil {
			logger.Warn("gateway stop failed", "err", err)
		}
		return manager.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
