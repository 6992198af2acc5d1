package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/chatrelay/internal/config"
	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/Tyrowin/chatrelay/internal/router"
	"github.com/Tyrowin/chatrelay/internal/server"
	"github.com/Tyrowin/chatrelay/internal/session"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	envFile  string
	port     int
	logLevel string
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat relay server",
		Long: `Start the chat relay server.

Settings are read from the environment (PORT, HOST, ALLOWED_ORIGINS,
MAX_MESSAGE_SIZE, SEND_BUFFER_SIZE, SHUTDOWN_TIMEOUT, LOG_LEVEL), seeded from
a .env file when present. Flags override the environment.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = opts.port
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = opts.logLevel
			}
			return run(cmd.Context(), config.Sanitize(cfg))
		},
	}

	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "path to a .env file (default: ./.env if present)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 4000, "port to listen on")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

// run wires the relay, serves until a signal arrives or the hub fails, then
// shuts everything down in order.
func run(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promRegistry, "chatrelay")

	registry := session.NewRegistry()
	hub := server.NewHub(log, router.New(log, registry, router.WithMetrics(m)), m)
	go hub.Run()
	log.Info("Hub started and ready to manage WebSocket connections")

	handlers := server.NewHandlers(log, hub, cfg)
	httpServer := server.CreateServer(cfg.Addr(), server.SetupRoutes(handlers, promRegistry))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.StartServer(log, httpServer)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case <-hub.Done():
		runErr = hub.Err()
		log.Error("Hub stopped", "error", runErr)
	case err := <-errChan:
		if err != nil {
			runErr = fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownErr := errors.Join(
		server.ShutdownServer(log, httpServer, cfg.ShutdownTimeout),
		hub.Shutdown(cfg.ShutdownTimeout),
	)
	if runErr != nil {
		return runErr
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}

	log.Info("Program stopped cleanly")
	return nil
}
