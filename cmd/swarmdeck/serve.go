package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentvillage/swarmdeck"
	"github.com/agentvillage/swarmdeck/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// serveCmd starts the swarmdeck dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the swarmdeck dashboard server.

The server will:
  - Load configuration from the specified YAML file
  - Start polling the configured backend feeds
  - Serve the dashboard UI on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  swarmdeck serve -c config.yaml
  swarmdeck serve --config /etc/swarmdeck/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

// loadConfigOptions loads the config file and converts it into SDK
// options, without attaching a logger. Shared by serve and watch.
func loadConfigOptions(configFile string) ([]swarmdeck.Option, *config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build options: %w", err)
	}
	return opts, cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	opts, cfg, err := loadConfigOptions(configFile)
	if err != nil {
		return err
	}

	board, err := swarmdeck.New(append(opts, swarmdeck.WithLogger(logger))...)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	logger.Info("config loaded",
		"feeds", len(board.Feeds()),
		"agents", len(cfg.Agents),
	)
	logger.Info("starting server", "port", cfg.Port)

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- board.Start(ctx)
	}()

	// wait for server to finish
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
