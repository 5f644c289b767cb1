// Package swarmdeck provides an embeddable operator dashboard for a swarm
// of autonomous agents.
//
// Swarmdeck is designed as an SDK-first library, allowing developers to
// programmatically configure and deploy a swarm dashboard as part of their
// applications. The board polls a swarm API on independent cadences, folds
// the results into immutable snapshots, and serves a live web dashboard
// with embedded viewports onto each agent's remote desktop stream.
//
// # Quick Start
//
// Point the board at a swarm API and start it with graceful shutdown:
//
//	board, _ := swarmdeck.New(swarmdeck.WithAPIBase("http://swarm.local:8000"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	board.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// Swarmdeck uses the functional options pattern for configuration:
//
//	board, err := swarmdeck.New(
//	    swarmdeck.WithAPIBase("http://swarm.local:8000"),
//	    swarmdeck.WithTitle("Night Shift"),
//	    swarmdeck.WithPort(9090),
//	    swarmdeck.WithHeaders(map[string]string{"Authorization": "Bearer token"}),
//	)
//
// When no feeds are supplied, the three built-ins are installed: the live
// agent roster ([LiveFeed]), the agent chat stream ([ChatFeed]), and the
// evaluator report ([EvaluatorFeed]). Feeds can be tuned or replaced:
//
//	live, err := swarmdeck.LiveFeed(swarmdeck.WithInterval(2 * time.Second))
//	board, err := swarmdeck.New(
//	    swarmdeck.WithAPIBase("http://swarm.local:8000"),
//	    swarmdeck.WithFeed(live),
//	)
//
// Each feed is polled on its own cadence. A tick that lands while the
// previous request is still in flight is skipped rather than queued, and
// responses that arrive out of order are discarded so the board never
// regresses to older data.
//
// # Snapshots
//
// Every accepted feed result produces a brand-new [DashboardSnapshot]:
// an immutable composite of the agent roster, the evaluator report, and
// the chat log. Snapshots can be observed with [WithSnapshotCallback] and
// are safe to retain indefinitely.
//
// # Architecture
//
// Swarmdeck consists of several internal packages (under internal/):
//
//   - internal/poller: per-feed polling loops with overlap suppression
//   - internal/store: snapshot aggregation with pub/sub for real-time updates
//   - internal/stream: viewport session state machines for agent streams
//   - internal/server: HTTP server with REST API, SSE, and a stream proxy
//   - dashboard: embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice. The library is designed for single-binary deployment
// using Go's embed directive for static assets.
package swarmdeck
