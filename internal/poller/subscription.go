package poller

import "time"

// Subscription describes one recurring data source: a backend URL fetched
// on a fixed interval.
//
// Subscription is the immutable configuration half of a feed; all runtime
// state (in-flight flag, sequence counters, failure accounting) is owned
// exclusively by the [Controller] the subscription is started on.
type Subscription struct {
	// Key uniquely identifies the subscription within a controller
	// (e.g. "evaluator", "live", "chat").
	Key string

	// URL is the absolute target URL to fetch.
	URL string

	// Interval is the time between scheduled fetches. Required.
	Interval time.Duration

	// Timeout is the per-request timeout. Defaults to 10 seconds.
	Timeout time.Duration

	// Headers contains custom HTTP headers sent with every fetch.
	Headers map[string]string
}

// Status is an observability snapshot of one running subscription.
//
// Failures are deliberately swallowed by the scheduling loop (a transient
// backend outage must not freeze the dashboard), so the counters here are
// the only place they surface.
type Status struct {
	// Key is the subscription key.
	Key string `json:"key"`

	// URL is the subscription target.
	URL string `json:"url"`

	// Interval is the configured fetch interval.
	Interval time.Duration `json:"interval"`

	// InFlight reports whether a request is currently outstanding.
	InFlight bool `json:"in_flight"`

	// LastFetchedAt is when the most recent completion (success or
	// failure) was applied. Zero if nothing has completed yet.
	LastFetchedAt time.Time `json:"last_fetched_at"`

	// LastError is the most recent failure message. Empty after a
	// success: each success fully clears the error, never accumulates.
	LastError string `json:"last_error,omitempty"`

	// LastErrorAt is when LastError was recorded.
	LastErrorAt time.Time `json:"last_error_at"`

	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int64 `json:"consecutive_failures"`

	// TotalFailures counts all failures since Start.
	TotalFailures int64 `json:"total_failures"`

	// TotalFetches counts all applied completions since Start.
	TotalFetches int64 `json:"total_fetches"`

	// SkippedTicks counts ticks dropped because a request was still
	// in flight. A growing value indicates a backend slower than the
	// configured interval.
	SkippedTicks int64 `json:"skipped_ticks"`
}
