package swarmdeck

import (
	"errors"
	"time"
)

// feedConfig holds mutable state during feed construction.
type feedConfig struct {
	interval time.Duration
	timeout  time.Duration
}

// FeedOption is a function that configures a [Feed] during construction.
//
// FeedOption implements the functional options pattern, allowing optional
// configuration to be passed to [NewFeed] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithInterval], [WithTimeout].
type FeedOption func(*feedConfig) error

// WithInterval sets the feed's refresh interval.
//
// Each feed owns its own interval; the chat, live, and evaluator feeds
// are independently tunable and never share a schedule. The interval
// must be at least 1 second and at most 1 hour.
//
// Note: a tick that lands while the previous request is still in flight
// is skipped, so for a slow backend the effective interval stretches to
// the round-trip time rather than queueing requests.
//
// Example:
//
//	feed, err := swarmdeck.ChatFeed(swarmdeck.WithInterval(2 * time.Second))
func WithInterval(d time.Duration) FeedOption {
	return func(cfg *feedConfig) error {
		if d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		if d > time.Hour {
			return errors.New("interval must not exceed 1 hour")
		}
		cfg.interval = d
		return nil
	}
}

// WithTimeout sets the per-request timeout for this feed.
//
// If the backend does not respond within this duration, the fetch counts
// as a transient failure and the next scheduled tick retries. Defaults
// to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) FeedOption {
	return func(cfg *feedConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}
