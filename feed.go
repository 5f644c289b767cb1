package swarmdeck

import (
	"errors"
	"strings"
	"time"
)

const (
	defaultFeedTimeout = 10 * time.Second

	// Per-feed default refresh intervals. Chat refreshes fastest so
	// operator conversations feel live; the evaluator aggregates slowly
	// and tolerates a longer cadence. Each is independently tunable via
	// [WithInterval].
	DefaultLiveInterval      = 5 * time.Second
	DefaultChatInterval      = 3 * time.Second
	DefaultEvaluatorInterval = 10 * time.Second
)

// Built-in feed keys.
const (
	// FeedLive is the rolling agent-activity feed.
	FeedLive = "live"

	// FeedChat is the agent-responses chat feed.
	FeedChat = "chat"

	// FeedEvaluator is the evaluation-metrics feed.
	FeedEvaluator = "evaluator"
)

// Feed represents one named, intervaled recurring data fetch against the
// backend API.
//
// Feed is immutable after creation via [NewFeed] (or the built-in
// constructors [LiveFeed], [ChatFeed], and [EvaluatorFeed]). Each feed
// owns its own refresh interval; feeds never share a schedule.
type Feed struct {
	key      string
	path     string
	interval time.Duration
	timeout  time.Duration
	decoder  UpdateDecoder
}

// Key returns the feed's unique identifier within a board.
func (f Feed) Key() string {
	return f.key
}

// Path returns the feed's URL path, relative to the board's API base.
func (f Feed) Path() string {
	return f.path
}

// Interval returns the feed's refresh interval.
func (f Feed) Interval() time.Duration {
	return f.interval
}

// Timeout returns the feed's per-request timeout.
// Defaults to 10 seconds if not explicitly set via [WithTimeout].
func (f Feed) Timeout() time.Duration {
	return f.timeout
}

// Decoder returns the feed's [UpdateDecoder].
func (f Feed) Decoder() UpdateDecoder {
	return f.decoder
}

// NewFeed creates a [Feed] with the given key, path, and decoder.
//
// The key uniquely identifies the feed on its board. The path is joined
// to the board's API base and must start with "/". The decoder turns each
// response body into a dashboard [Update]; a decode error is treated the
// same as a fetch failure (swallowed, retried on the next tick).
//
// Example:
//
//	feed, err := swarmdeck.NewFeed("tasks", "/tasks?limit=20", decodeTasks,
//	    swarmdeck.WithInterval(15 * time.Second),
//	)
func NewFeed(key, path string, decoder UpdateDecoder, opts ...FeedOption) (Feed, error) {
	if key == "" {
		return Feed{}, errors.New("feed key cannot be empty")
	}
	if !strings.HasPrefix(path, "/") {
		return Feed{}, errors.New("feed path must start with /")
	}
	if decoder == nil {
		return Feed{}, errors.New("feed decoder cannot be nil")
	}

	cfg := &feedConfig{
		interval: DefaultLiveInterval,
		timeout:  defaultFeedTimeout,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Feed{}, err
		}
	}

	return Feed{
		key:      key,
		path:     path,
		interval: cfg.interval,
		timeout:  cfg.timeout,
		decoder:  decoder,
	}, nil
}

// LiveFeed returns the built-in agent-activity feed
// (GET {API_BASE}/agents/live, 5s default interval).
func LiveFeed(opts ...FeedOption) (Feed, error) {
	return NewFeed(FeedLive, "/agents/live", DecodeLiveFeed,
		append([]FeedOption{WithInterval(DefaultLiveInterval)}, opts...)...)
}

// ChatFeed returns the built-in agent-responses feed
// (GET {API_BASE}/chat/agent-responses, 3s default interval).
func ChatFeed(opts ...FeedOption) (Feed, error) {
	return NewFeed(FeedChat, "/chat/agent-responses?limit=50", DecodeChatMessages,
		append([]FeedOption{WithInterval(DefaultChatInterval)}, opts...)...)
}

// EvaluatorFeed returns the built-in evaluation-metrics feed
// (GET {API_BASE}/evaluator/status, 10s default interval).
func EvaluatorFeed(opts ...FeedOption) (Feed, error) {
	return NewFeed(FeedEvaluator, "/evaluator/status", DecodeEvaluatorStatus,
		append([]FeedOption{WithInterval(DefaultEvaluatorInterval)}, opts...)...)
}
