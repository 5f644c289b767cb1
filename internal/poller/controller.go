package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const defaultTimeout = 10 * time.Second

// Result holds one successful fetch for a subscription.
//
// A Result wholly replaces the subscription's previous value; the
// controller never merges a response with an earlier one.
type Result struct {
	// Key is the subscription the result belongs to.
	Key string

	// URL is the target URL that was fetched.
	URL string

	// Body is the response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code (always 2xx for a Result).
	StatusCode int

	// Latency is the time taken to complete the request.
	Latency time.Duration

	// FetchedAt is when the completion was applied.
	FetchedAt time.Time

	// Sequence is the request's issue-order number within its
	// subscription. Strictly increasing across applied results.
	Sequence uint64
}

// FetchError describes one failed fetch for a subscription.
//
// Failures never stop the schedule; the next tick fires normally.
type FetchError struct {
	// Key is the subscription the failure belongs to.
	Key string

	// URL is the target URL that was fetched.
	URL string

	// StatusCode is the HTTP status code, or zero if the request
	// failed before a response arrived.
	StatusCode int

	// Sequence is the request's issue-order number.
	Sequence uint64

	// OccurredAt is when the failure was applied.
	OccurredAt time.Time

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// fetchFunc issues one request for a subscription. It exists as a seam so
// tests can substitute controlled responses for the HTTP client.
type fetchFunc func(ctx context.Context, sub Subscription) Response

// Controller drives a set of [Subscription] values, issuing
// non-overlapping, silently fault-tolerant requests on their schedules.
//
// Each subscription runs on its own loop goroutine, which is the sole
// owner of the subscription's mutable state. Completions are applied in
// issue order: each request carries a monotonically increasing sequence
// number and a completion with a sequence at or below the last applied
// one is discarded. Per tick, if the previous request is still
// outstanding the tick is skipped, never queued.
//
// All lifecycle methods are safe for concurrent use.
type Controller struct {
	client *Client
	logger *slog.Logger
	fetch  fetchFunc

	mu      sync.Mutex
	runners map[string]*runner
}

// runner is the running state of one subscription.
type runner struct {
	sub       Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	onResult  func(Result)
	onFailure func(*FetchError)

	// state below is written only by the loop goroutine; the mutex
	// exists so Status can read it from other goroutines.
	mu            sync.Mutex
	inFlight      bool
	seq           uint64
	lastApplied   uint64
	lastFetchedAt time.Time
	lastError     string
	lastErrorAt   time.Time
	consecFails   int64
	totalFails    int64
	totalFetches  int64
	skippedTicks  int64
}

// outcome pairs a raw response with the sequence number stamped when the
// request was issued.
type outcome struct {
	seq  uint64
	resp Response
}

// NewController creates a polling [Controller].
//
// Subscriptions are added with [Controller.Start] and removed with
// [Controller.Stop]. If logger is nil, [slog.Default] is used.
func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		client:  NewClient(),
		logger:  logger,
		runners: make(map[string]*runner),
	}
	c.fetch = func(ctx context.Context, sub Subscription) Response {
		timeout := sub.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		return c.client.Fetch(ctx, sub.URL, sub.Headers, timeout)
	}
	return c
}

// Start begins polling a subscription.
//
// The subscription is fetched immediately, then on every interval tick.
// onResult receives each applied success; onFailure (optional) receives
// each applied failure. Both are invoked from the subscription's loop
// goroutine, so for a given subscription they never run concurrently and
// always observe completions in issue order.
//
// Returns an error if the subscription is invalid or its key is already
// started on this controller.
func (c *Controller) Start(ctx context.Context, sub Subscription, onResult func(Result), onFailure func(*FetchError)) error {
	if sub.Key == "" {
		return fmt.Errorf("subscription key cannot be empty")
	}
	if sub.URL == "" {
		return fmt.Errorf("subscription %q: url cannot be empty", sub.Key)
	}
	if sub.Interval <= 0 {
		return fmt.Errorf("subscription %q: interval must be positive", sub.Key)
	}
	if onResult == nil {
		return fmt.Errorf("subscription %q: onResult callback is required", sub.Key)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &runner{
		sub:       sub,
		ctx:       runCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
		onResult:  onResult,
		onFailure: onFailure,
	}

	c.mu.Lock()
	if _, exists := c.runners[sub.Key]; exists {
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("subscription %q already started", sub.Key)
	}
	c.runners[sub.Key] = r
	c.mu.Unlock()

	go c.run(r)
	return nil
}

// Stop cancels a subscription's schedule and suppresses any in-flight
// completion: once Stop returns, neither callback will fire again and the
// eventual response is dropped on arrival.
//
// Stop blocks until the subscription's loop has exited. Stopping an
// unknown key is a no-op.
func (c *Controller) Stop(key string) {
	c.mu.Lock()
	r, ok := c.runners[key]
	if ok {
		delete(c.runners, key)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	r.cancel()
	<-r.done
}

// StopAll stops every running subscription and waits for their loops to
// exit. The underlying HTTP client's idle connections are released.
func (c *Controller) StopAll() {
	c.mu.Lock()
	running := make([]*runner, 0, len(c.runners))
	for key, r := range c.runners {
		running = append(running, r)
		delete(c.runners, key)
	}
	c.mu.Unlock()

	for _, r := range running {
		r.cancel()
		<-r.done
	}
	c.client.Close()
}

// Status returns an observability snapshot of every running subscription,
// sorted by key.
func (c *Controller) Status() []Status {
	c.mu.Lock()
	running := make([]*runner, 0, len(c.runners))
	for _, r := range c.runners {
		running = append(running, r)
	}
	c.mu.Unlock()

	statuses := make([]Status, 0, len(running))
	for _, r := range running {
		statuses = append(statuses, r.status())
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Key < statuses[j].Key })
	return statuses
}

// run is the loop goroutine for one subscription. It is the only writer
// of the runner's mutable state, which makes completion application a
// single-owner operation: no other goroutine ever mutates the record.
func (c *Controller) run(r *runner) {
	defer close(r.done)

	// capacity 1: at most one request is outstanding at a time, so a
	// completion can always be parked without blocking the fetch
	// goroutine after teardown.
	completions := make(chan outcome, 1)

	c.beginFetch(r, completions)

	ticker := time.NewTicker(r.sub.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.mu.Lock()
			busy := r.inFlight
			if busy {
				r.skippedTicks++
			}
			r.mu.Unlock()

			if busy {
				c.logger.Debug("tick skipped, request still in flight",
					"subscription", r.sub.Key,
					"interval", r.sub.Interval.String(),
				)
				continue
			}
			c.beginFetch(r, completions)

		case out := <-completions:
			// the select may race a cancelled context with a parked
			// completion; stale results after teardown must be
			// dropped, not delivered
			if r.ctx.Err() != nil {
				return
			}
			c.apply(r, out)
		}
	}
}

// beginFetch marks the subscription in flight, stamps the next sequence
// number, and issues the request on its own goroutine so the loop keeps
// consuming ticks while the request is outstanding.
func (c *Controller) beginFetch(r *runner, completions chan<- outcome) {
	r.mu.Lock()
	r.inFlight = true
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	go func() {
		resp := c.fetch(r.ctx, r.sub)
		completions <- outcome{seq: seq, resp: resp}
	}()
}

// apply delivers one completion. Responses carrying a sequence number at
// or below the last applied one are discarded so completions land in
// issue order even across a restart race.
func (c *Controller) apply(r *runner, out outcome) {
	now := time.Now()

	r.mu.Lock()
	if out.seq <= r.lastApplied {
		r.mu.Unlock()
		c.logger.Debug("stale response discarded",
			"subscription", r.sub.Key,
			"sequence", out.seq,
		)
		return
	}
	r.lastApplied = out.seq
	r.inFlight = false
	r.lastFetchedAt = now
	r.totalFetches++

	err := out.resp.Error
	if err == nil && (out.resp.StatusCode < 200 || out.resp.StatusCode >= 300) {
		err = fmt.Errorf("unexpected status %d", out.resp.StatusCode)
	}

	if err != nil {
		r.consecFails++
		r.totalFails++
		r.lastError = err.Error()
		r.lastErrorAt = now
	} else {
		r.consecFails = 0
		r.lastError = ""
		r.lastErrorAt = time.Time{}
	}
	r.mu.Unlock()

	if err != nil {
		// swallowed by policy: the next tick fires normally
		c.logger.Warn("fetch failed",
			"subscription", r.sub.Key,
			"url", r.sub.URL,
			"status_code", out.resp.StatusCode,
			"latency_ms", out.resp.Latency.Milliseconds(),
			"error", err.Error(),
		)
		if r.onFailure != nil {
			r.onFailure(&FetchError{
				Key:        r.sub.Key,
				URL:        r.sub.URL,
				StatusCode: out.resp.StatusCode,
				Sequence:   out.seq,
				OccurredAt: now,
				Err:        err,
			})
		}
		return
	}

	c.logger.Debug("fetch completed",
		"subscription", r.sub.Key,
		"status_code", out.resp.StatusCode,
		"latency_ms", out.resp.Latency.Milliseconds(),
	)
	r.onResult(Result{
		Key:        r.sub.Key,
		URL:        r.sub.URL,
		Body:       out.resp.Body,
		StatusCode: out.resp.StatusCode,
		Latency:    out.resp.Latency,
		FetchedAt:  now,
		Sequence:   out.seq,
	})
}

// status builds an observability snapshot of the runner.
func (r *runner) status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Key:                 r.sub.Key,
		URL:                 r.sub.URL,
		Interval:            r.sub.Interval,
		InFlight:            r.inFlight,
		LastFetchedAt:       r.lastFetchedAt,
		LastError:           r.lastError,
		LastErrorAt:         r.lastErrorAt,
		ConsecutiveFailures: r.consecFails,
		TotalFailures:       r.totalFails,
		TotalFetches:        r.totalFetches,
		SkippedTicks:        r.skippedTicks,
	}
}
