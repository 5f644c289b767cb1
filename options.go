package swarmdeck

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// viewportSeed is a viewport configured up-front, before the live feed
// reports any stream URLs.
type viewportSeed struct {
	agentID   string
	streamURL string
}

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
	title             string
	apiBase           string
	feeds             []Feed
	feedsSet          bool
	viewports         []viewportSeed
	port              int
	headers           map[string]string
	logger            *slog.Logger
	snapshotCallbacks []func(*DashboardSnapshot)
}

// Option is a function that configures a [Board] instance during
// construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithAPIBase], [WithFeed], [WithFeeds],
// [WithAgentViewport], [WithPort], [WithTitle], [WithHeaders],
// [WithLogger], [WithSnapshotCallback].
type Option func(*boardConfig) error

// WithAPIBase sets the backend API base URL all feed paths are joined to.
//
// Required. A trailing slash is stripped so feed paths (which start with
// "/") join cleanly.
//
// Example:
//
//	board, err := swarmdeck.New(
//	    swarmdeck.WithAPIBase("https://swarm.example.com/api"),
//	)
func WithAPIBase(base string) Option {
	return func(cfg *boardConfig) error {
		base = strings.TrimRight(base, "/")
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			return errors.New("api base must start with http:// or https://")
		}
		cfg.apiBase = base
		return nil
	}
}

// WithFeed adds a single [Feed] to the board.
//
// Can be called multiple times. If no feeds are configured, [New]
// installs the three built-ins ([LiveFeed], [ChatFeed], [EvaluatorFeed])
// at their default intervals.
//
// Example:
//
//	feed, _ := swarmdeck.ChatFeed(swarmdeck.WithInterval(2 * time.Second))
//	board, err := swarmdeck.New(
//	    swarmdeck.WithAPIBase(base),
//	    swarmdeck.WithFeed(feed),
//	)
func WithFeed(f Feed) Option {
	return func(cfg *boardConfig) error {
		cfg.feedsSet = true
		cfg.feeds = append(cfg.feeds, f)
		return nil
	}
}

// WithFeeds adds multiple [Feed] values to the board.
//
// Equivalent to calling [WithFeed] multiple times, with one distinction:
// calling WithFeeds with no arguments configures an explicitly empty feed
// set. The board then polls nothing and only serves pre-registered
// viewports; the built-ins are not installed.
func WithFeeds(feeds ...Feed) Option {
	return func(cfg *boardConfig) error {
		cfg.feedsSet = true
		cfg.feeds = append(cfg.feeds, feeds...)
		return nil
	}
}

// WithAgentViewport pre-registers a live-stream viewport for an agent.
//
// The viewport enters Loading as soon as the board starts, before the
// first live fetch completes. Agents reported by the live feed get
// viewports automatically; this option exists for fixed fleets where the
// stream URLs are known up-front (or the live feed is disabled).
//
// Example:
//
//	board, err := swarmdeck.New(
//	    swarmdeck.WithAPIBase(base),
//	    swarmdeck.WithAgentViewport("agent-1", "https://streams.example.com/agent-1/vnc.html?autoconnect=true"),
//	)
func WithAgentViewport(agentID, streamURL string) Option {
	return func(cfg *boardConfig) error {
		if agentID == "" {
			return errors.New("viewport agent id cannot be empty")
		}
		if streamURL == "" {
			return fmt.Errorf("viewport for agent %q: stream url cannot be empty", agentID)
		}
		cfg.viewports = append(cfg.viewports, viewportSeed{agentID: agentID, streamURL: streamURL})
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// The dashboard UI and API will be available at http://localhost:<port>.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and
// header.
//
// If not specified, defaults to "Swarmdeck".
func WithTitle(title string) Option {
	return func(cfg *boardConfig) error {
		cfg.title = title
		return nil
	}
}

// WithHeaders sets custom HTTP headers sent with every feed fetch, such
// as an Authorization token for the backend API.
//
// The map is copied; later mutation by the caller has no effect.
func WithHeaders(headers map[string]string) Option {
	return func(cfg *boardConfig) error {
		if len(headers) == 0 {
			return nil
		}
		if cfg.headers == nil {
			cfg.headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			cfg.headers[k] = v
		}
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the board.
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	board, err := swarmdeck.New(
//	    swarmdeck.WithAPIBase(base),
//	    swarmdeck.WithLogger(logger),
//	)
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithSnapshotCallback registers a function called with every rebuilt
// [DashboardSnapshot].
//
// Each constituent change (agents, evaluator, chat) produces one brand-new
// snapshot, so the callback may keep the pointer and compare identities
// to detect change.
//
// Multiple callbacks may be registered by calling WithSnapshotCallback
// multiple times; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. Long-running operations
// should dispatch work to a separate goroutine. Blocking callbacks will
// delay subsequent snapshot delivery.
//
// Callbacks are invoked synchronously from a single goroutine. Panics
// within callbacks are recovered and logged with a correlation id; they
// do not crash the board.
//
// Nil callbacks are silently ignored.
func WithSnapshotCallback(cb func(*DashboardSnapshot)) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.snapshotCallbacks = append(cfg.snapshotCallbacks, cb)
		return nil
	}
}
