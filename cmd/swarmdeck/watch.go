package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentvillage/swarmdeck"
	"github.com/agentvillage/swarmdeck/internal/tui"
)

// watchCmd runs the terminal dashboard.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the swarm in the terminal",
	Long: `Watch the swarm in a terminal dashboard instead of the browser.

The board starts exactly as with "serve" (the web UI stays available on
the configured port) and every snapshot rebuild is rendered in the
terminal. Stream viewports cannot be embedded in a terminal; agent
panels show status and progress only.

Example:
  swarmdeck watch -c config.yaml`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = watchCmd.MarkFlagRequired("config")
}

func runWatch(cmd *cobra.Command, args []string) error {
	// the terminal owns the screen; board logs would corrupt the TUI
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	configFile, _ := cmd.Flags().GetString("config")
	cfgOpts, _, err := loadConfigOptions(configFile)
	if err != nil {
		return err
	}

	snapshots := make(chan *swarmdeck.DashboardSnapshot, 16)
	opts := append(cfgOpts, swarmdeck.WithLogger(logger),
		swarmdeck.WithSnapshotCallback(func(snap *swarmdeck.DashboardSnapshot) {
			select {
			case snapshots <- snap:
			default:
				// renderer is behind; the next snapshot supersedes this one
			}
		}),
	)

	board, err := swarmdeck.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	boardDone := make(chan error, 1)
	go func() {
		err := board.Start(ctx)
		close(snapshots) // ends the TUI when the board stops
		boardDone <- err
	}()

	if err := tui.Run(board.Title(), snapshots); err != nil {
		stop()
		<-boardDone
		return fmt.Errorf("terminal ui error: %w", err)
	}

	stop()
	if err := <-boardDone; err != nil {
		return fmt.Errorf("board error: %w", err)
	}
	return nil
}
