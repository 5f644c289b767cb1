package swarmdeck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/agentvillage/swarmdeck/dashboard"
	"github.com/agentvillage/swarmdeck/internal/poller"
	"github.com/agentvillage/swarmdeck/internal/server"
	"github.com/agentvillage/swarmdeck/internal/store"
	"github.com/agentvillage/swarmdeck/internal/stream"
)

const (
	defaultPort  = 8080
	defaultTitle = "Swarmdeck"
)

// Board is the main orchestrator: it polls the backend feeds, composes
// their latest values into immutable [DashboardSnapshot] values, manages
// the per-agent stream viewports, and serves the operator dashboard over
// HTTP.
//
// A Board is created with [New] using functional options and started with
// [Board.Start]. The typical lifecycle is:
//
//	board, err := swarmdeck.New(
//	    swarmdeck.WithAPIBase("https://swarm.example.com/api"),
//	)
//	if err != nil {
//	    slog.Error("failed to create board", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	board.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context
// to trigger graceful shutdown.
type Board struct {
	title             string
	apiBase           string
	feeds             []Feed
	viewports         []viewportSeed
	port              int
	headers           map[string]string
	logger            *slog.Logger
	snapshotCallbacks []func(*DashboardSnapshot)
}

// New creates a new [Board] with the given options.
//
// [WithAPIBase] is required. If [WithFeed] and [WithFeeds] were never
// used, the three built-ins ([LiveFeed], [ChatFeed], [EvaluatorFeed])
// are installed at their default intervals; an explicitly empty feed set
// (WithFeeds with no arguments) stays empty. Other options have sensible
// defaults:
//   - Port: 8080
//   - Title: "Swarmdeck"
//
// Returns an error if the API base is missing, feed keys collide, or any
// option is invalid.
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		port:  defaultPort,
		title: defaultTitle,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.apiBase == "" {
		return nil, errors.New("api base is required (use WithAPIBase)")
	}

	// only an untouched feed configuration gets the built-ins; an
	// explicitly empty set means "poll nothing, serve viewports only"
	if len(cfg.feeds) == 0 && !cfg.feedsSet {
		feeds, err := defaultFeeds()
		if err != nil {
			return nil, err
		}
		cfg.feeds = feeds
	}

	// feed keys must be unique (required for per-feed status tracking)
	seen := make(map[string]bool, len(cfg.feeds))
	for _, f := range cfg.feeds {
		if seen[f.Key()] {
			return nil, fmt.Errorf("duplicate feed key: %q", f.Key())
		}
		seen[f.Key()] = true
	}

	seenAgents := make(map[string]bool, len(cfg.viewports))
	for _, vp := range cfg.viewports {
		if seenAgents[vp.agentID] {
			return nil, fmt.Errorf("duplicate viewport for agent: %q", vp.agentID)
		}
		seenAgents[vp.agentID] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Board{
		title:             cfg.title,
		apiBase:           cfg.apiBase,
		feeds:             cfg.feeds,
		viewports:         cfg.viewports,
		port:              cfg.port,
		headers:           cfg.headers,
		logger:            logger,
		snapshotCallbacks: cfg.snapshotCallbacks,
	}, nil
}

// defaultFeeds builds the built-in feed set.
func defaultFeeds() ([]Feed, error) {
	live, err := LiveFeed()
	if err != nil {
		return nil, err
	}
	chat, err := ChatFeed()
	if err != nil {
		return nil, err
	}
	evaluator, err := EvaluatorFeed()
	if err != nil {
		return nil, err
	}
	return []Feed{live, chat, evaluator}, nil
}

// Start begins polling the feeds and serving the dashboard.
//
// Start is a blocking call that runs until the provided context is
// cancelled. During execution:
//
//   - Every feed is fetched immediately, then on its own interval
//   - Pre-registered viewports enter Loading; agents reported by the
//     live feed get viewports automatically
//   - The HTTP server starts on the configured port
//   - The dashboard is available at http://localhost:<port>
//
// Returns nil on graceful shutdown. Returns an error if a feed fails to
// start or the HTTP server fails to bind.
func (b *Board) Start(ctx context.Context) error {
	b.logger.Info("swarmdeck starting",
		"feed_count", len(b.feeds),
		"viewport_count", len(b.viewports),
	)
	b.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", b.port))

	if ctx.Err() != nil {
		return nil
	}

	aggregator := store.New()
	hub := stream.NewHub(b.logger)
	controller := poller.NewController(b.logger)

	cleanup := func() {
		controller.StopAll()
		hub.Close()
	}

	for _, vp := range b.viewports {
		if err := hub.Add(vp.agentID, vp.streamURL); err != nil {
			cleanup()
			return fmt.Errorf("failed to register viewport: %w", err)
		}
	}

	for _, feed := range b.feeds {
		if err := b.startFeed(ctx, controller, aggregator, hub, feed); err != nil {
			cleanup()
			return fmt.Errorf("failed to start feed %q: %w", feed.Key(), err)
		}
	}

	// snapshot consumer: one goroutine delivers every rebuild to the
	// registered callbacks, in order
	var wg sync.WaitGroup
	if len(b.snapshotCallbacks) > 0 {
		snapshots := aggregator.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for snap := range snapshots {
				public := snapshotFromStore(snap)
				for _, cb := range b.snapshotCallbacks {
					invokeCallbackSafe(cb, public, b.logger)
				}
			}
		}()
		defer func() {
			aggregator.Unsubscribe(snapshots)
			wg.Wait()
		}()
	}
	defer cleanup()

	httpServer := server.NewServer(server.Config{
		Port:       b.port,
		Title:      b.title,
		Assets:     dashboard.Assets,
		Aggregator: aggregator,
		Hub:        hub,
		FeedStatus: controller.Status,
		Logger:     b.logger,
	})
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	b.logger.Info("swarmdeck stopped")
	return nil
}

// startFeed wires one feed into the polling controller: its results are
// decoded and applied to the aggregator, and live-feed results also
// upsert stream viewports.
func (b *Board) startFeed(ctx context.Context, controller *poller.Controller, aggregator *store.Aggregator, hub *stream.Hub, feed Feed) error {
	sub := poller.Subscription{
		Key:      feed.Key(),
		URL:      b.apiBase + feed.Path(),
		Interval: feed.Interval(),
		Timeout:  feed.Timeout(),
		Headers:  b.headers,
	}

	decoder := feed.Decoder()
	onResult := func(result poller.Result) {
		update, err := decodeSafe(decoder, result, b.logger)
		if err != nil {
			// decode failures follow the fetch-failure policy: logged,
			// swallowed, next tick retries
			b.logger.Warn("feed decode failed",
				"feed", result.Key,
				"error", err.Error(),
			)
			return
		}
		b.applyUpdate(aggregator, hub, update)
	}

	// failures are already counted and logged by the controller
	return controller.Start(ctx, sub, onResult, nil)
}

// applyUpdate routes a decoded update into the aggregator and, for agent
// updates, reconciles the stream viewports with the reported URLs.
func (b *Board) applyUpdate(aggregator *store.Aggregator, hub *stream.Hub, update Update) {
	switch u := update.(type) {
	case AgentsUpdate:
		agents := make([]store.Agent, len(u.Agents))
		for i, a := range u.Agents {
			agents[i] = agentToStore(a)
			if a.StreamURL != "" {
				if err := hub.SetURL(a.AgentID, a.StreamURL); err != nil {
					b.logger.Warn("viewport update failed",
						"agent", a.AgentID,
						"error", err.Error(),
					)
				}
			}
		}
		aggregator.SetAgents(agents)

	case EvaluatorUpdate:
		aggregator.SetEvaluator(evaluatorToStore(u.Report))

	case ChatUpdate:
		aggregator.SetChat(chatToStore(u.Messages))

	default:
		b.logger.Warn("unknown update type discarded", "type", fmt.Sprintf("%T", update))
	}
}

// Feeds returns a copy of the configured feeds.
//
// The returned slice is a copy; modifying it does not affect the Board.
// Each [Feed] in the slice is immutable.
func (b *Board) Feeds() []Feed {
	cp := make([]Feed, len(b.feeds))
	copy(cp, b.feeds)
	return cp
}

// Port returns the configured HTTP port for the dashboard server.
func (b *Board) Port() int {
	return b.port
}

// Title returns the configured dashboard title.
func (b *Board) Title() string {
	return b.title
}

// APIBase returns the configured backend API base URL.
func (b *Board) APIBase() string {
	return b.apiBase
}

// decodeSafe runs a feed decoder with panic recovery. A panicking decoder
// is reported as a decode error with a correlation id for log grepping.
func decodeSafe(decoder UpdateDecoder, result poller.Result, logger *slog.Logger) (update Update, err error) {
	defer func() {
		if r := recover(); r != nil {
			id := uuid.NewString()
			logger.Error("feed decoder panicked",
				"feed", result.Key,
				"panic", r,
				"correlation_id", id,
			)
			err = fmt.Errorf("decoder panic (correlation id %s)", id)
		}
	}()
	update, err = decoder(result.Body, result.StatusCode)
	return update, err
}

// invokeCallbackSafe calls a snapshot callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(*DashboardSnapshot), snap *DashboardSnapshot, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("snapshot callback panicked",
				"panic", r,
				"correlation_id", uuid.NewString(),
				"snapshot_version", snap.Version,
			)
		}
	}()
	cb(snap)
}
