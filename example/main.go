package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentvillage/swarmdeck"
)

func main() {
	// start mock swarm backend (see mock_server.go)
	go StartMockSwarmServer(":9999", 3)
	time.Sleep(100 * time.Millisecond)

	board, err := swarmdeck.New(
		swarmdeck.WithAPIBase("http://localhost:9999"),
		swarmdeck.WithTitle("Swarmdeck Demo"),
		swarmdeck.WithPort(8080),
		swarmdeck.WithSnapshotCallback(func(snap *swarmdeck.DashboardSnapshot) {
			// snapshots are immutable; holding them across callbacks is safe
			if snap.Version%10 == 0 {
				slog.Info("snapshot rebuilt",
					"version", snap.Version,
					"agents", len(snap.Agents),
					"avg_score", snap.AverageScorePercent,
				)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create board", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Swarmdeck Demo                                      ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   A mock swarm of 3 agents is working through tasks;  ║")
	fmt.Println("  ║   the evaluator scores each one as it completes.      ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := board.Start(ctx); err != nil {
		slog.Error("swarmdeck error", "error", err)
		os.Exit(1)
	}
}
