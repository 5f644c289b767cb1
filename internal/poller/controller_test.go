package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestController_ImmediateFetchOnStart verifies that a subscription is
// fetched immediately on Start, not only after the first interval elapses.
func TestController_ImmediateFetchOnStart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	c := NewController(testLogger())
	defer c.StopAll()

	results := make(chan Result, 1)
	sub := Subscription{Key: "evaluator", URL: server.URL, Interval: time.Hour, Timeout: time.Second}
	if err := c.Start(context.Background(), sub, func(res Result) { results <- res }, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case res := <-results:
		if res.Key != "evaluator" {
			t.Errorf("Key = %q, want %q", res.Key, "evaluator")
		}
		if res.Sequence != 1 {
			t.Errorf("Sequence = %d, want 1", res.Sequence)
		}
		if string(res.Body) != `{"status":"ok"}` {
			t.Errorf("Body = %q, want evaluator payload", res.Body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for immediate fetch result")
	}
}

// TestController_NoOverlappingRequests verifies the core invariant: ticks
// that land while a request is still outstanding are skipped, so at most
// one request is in flight per subscription at any instant.
func TestController_NoOverlappingRequests(t *testing.T) {
	var inFlight, maxInFlight, total atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		total.Add(1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		// round trip much slower than the interval
		time.Sleep(150 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewController(testLogger())

	sub := Subscription{Key: "live", URL: server.URL, Interval: 20 * time.Millisecond, Timeout: 2 * time.Second}
	if err := c.Start(context.Background(), sub, func(Result) {}, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// many ticks fire during this window; all but the due ones must be skipped
	time.Sleep(400 * time.Millisecond)
	c.StopAll()

	if got := maxInFlight.Load(); got > 1 {
		t.Errorf("max concurrent requests = %d, want at most 1", got)
	}
	if got := total.Load(); got > 4 {
		t.Errorf("total requests = %d, want a small number bounded by round-trip time", got)
	}

	statuses := c.Status()
	if len(statuses) != 0 {
		t.Errorf("Status() after StopAll returned %d entries, want 0", len(statuses))
	}
}

// TestController_SkippedTicksCounted verifies that overlap skips surface
// in the subscription's observability counters rather than vanishing.
func TestController_SkippedTicksCounted(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewController(testLogger())
	defer c.StopAll()

	sub := Subscription{Key: "chat", URL: server.URL, Interval: 15 * time.Millisecond, Timeout: 5 * time.Second}
	if err := c.Start(context.Background(), sub, func(Result) {}, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// hold the first request open across several ticks
	time.Sleep(120 * time.Millisecond)

	statuses := c.Status()
	if len(statuses) != 1 {
		t.Fatalf("Status() returned %d entries, want 1", len(statuses))
	}
	if !statuses[0].InFlight {
		t.Error("InFlight = false, want true while request is held open")
	}
	if statuses[0].SkippedTicks < 2 {
		t.Errorf("SkippedTicks = %d, want at least 2", statuses[0].SkippedTicks)
	}
	close(release)
}

// TestController_FailureThenSuccesses verifies that a failure followed by
// successes leaves only the most recent success reflected, with no
// accumulated failure state.
func TestController_FailureThenSuccesses(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			_, _ = w.Write([]byte("A"))
		default:
			_, _ = w.Write([]byte("B"))
		}
	}))
	defer server.Close()

	c := NewController(testLogger())
	defer c.StopAll()

	var mu sync.Mutex
	var lastBody string
	failures := make(chan *FetchError, 4)
	done := make(chan struct{})

	sub := Subscription{Key: "evaluator", URL: server.URL, Interval: 20 * time.Millisecond, Timeout: time.Second}
	err := c.Start(context.Background(), sub,
		func(res Result) {
			mu.Lock()
			lastBody = string(res.Body)
			if lastBody == "B" {
				select {
				case <-done:
				default:
					close(done)
				}
			}
			mu.Unlock()
		},
		func(fe *FetchError) { failures <- fe },
	)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for sequence fail, A, B")
	}

	// the failure was reported once, then swallowed by the schedule
	select {
	case fe := <-failures:
		if fe.StatusCode != http.StatusInternalServerError {
			t.Errorf("FetchError.StatusCode = %d, want 500", fe.StatusCode)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for failure callback")
	}

	mu.Lock()
	got := lastBody
	mu.Unlock()
	if got != "B" {
		t.Errorf("last applied value = %q, want %q", got, "B")
	}

	statuses := c.Status()
	if len(statuses) != 1 {
		t.Fatalf("Status() returned %d entries, want 1", len(statuses))
	}
	st := statuses[0]
	if st.LastError != "" {
		t.Errorf("LastError = %q, want empty after a success", st.LastError)
	}
	if st.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0 after a success", st.ConsecutiveFailures)
	}
	if st.TotalFailures != 1 {
		t.Errorf("TotalFailures = %d, want 1", st.TotalFailures)
	}
}

// TestController_StaleResponseDiscarded verifies the issue-order rule: a
// completion with a sequence number at or below the last applied one is
// dropped, so an older response can never overwrite a newer one.
func TestController_StaleResponseDiscarded(t *testing.T) {
	c := NewController(testLogger())

	var applied []string
	r := &runner{
		sub:      Subscription{Key: "evaluator", URL: "http://backend/evaluator/status", Interval: time.Second},
		onResult: func(res Result) { applied = append(applied, string(res.Body)) },
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	defer r.cancel()
	r.done = make(chan struct{})

	// request 1 and request 2 issued, request 2 resolves first
	r.seq = 2
	c.apply(r, outcome{seq: 2, resp: Response{Body: []byte("second"), StatusCode: 200}})
	c.apply(r, outcome{seq: 1, resp: Response{Body: []byte("first"), StatusCode: 200}})

	if len(applied) != 1 {
		t.Fatalf("applied %d results, want 1 (stale response must be discarded)", len(applied))
	}
	if applied[0] != "second" {
		t.Errorf("applied value = %q, want %q", applied[0], "second")
	}

	st := r.status()
	if st.TotalFetches != 1 {
		t.Errorf("TotalFetches = %d, want 1", st.TotalFetches)
	}
}

// TestController_StopSuppressesInFlightCompletion verifies teardown: after
// Stop returns, a queued response is dropped and neither callback fires.
func TestController_StopSuppressesInFlightCompletion(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte("late"))
	}))
	defer server.Close()

	c := NewController(testLogger())

	var delivered atomic.Int64
	sub := Subscription{Key: "live", URL: server.URL, Interval: time.Hour, Timeout: 10 * time.Second}
	err := c.Start(context.Background(), sub,
		func(Result) { delivered.Add(1) },
		func(*FetchError) { delivered.Add(1) },
	)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// let the immediate fetch reach the server, then tear down with the
	// request still outstanding
	time.Sleep(50 * time.Millisecond)
	c.Stop("live")
	close(release)

	// the response arrives after Stop; it must be dropped, not delivered
	time.Sleep(100 * time.Millisecond)
	if got := delivered.Load(); got != 0 {
		t.Errorf("callbacks after Stop = %d, want 0", got)
	}
}

// TestController_StopUnknownKey verifies that stopping a key that was
// never started is a safe no-op.
func TestController_StopUnknownKey(t *testing.T) {
	c := NewController(testLogger())
	c.Stop("nope")
	c.StopAll()
}

// TestController_DuplicateKeyRejected verifies that starting the same
// subscription key twice is rejected rather than double-scheduled.
func TestController_DuplicateKeyRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewController(testLogger())
	defer c.StopAll()

	sub := Subscription{Key: "evaluator", URL: server.URL, Interval: time.Hour, Timeout: time.Second}
	if err := c.Start(context.Background(), sub, func(Result) {}, nil); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	if err := c.Start(context.Background(), sub, func(Result) {}, nil); err == nil {
		t.Error("second Start() with same key succeeded, want error")
	}
}

// TestController_StartValidation verifies rejection of invalid subscriptions.
func TestController_StartValidation(t *testing.T) {
	c := NewController(testLogger())
	defer c.StopAll()

	tests := []struct {
		name string
		sub  Subscription
		cb   func(Result)
	}{
		{"empty key", Subscription{URL: "http://x", Interval: time.Second}, func(Result) {}},
		{"empty url", Subscription{Key: "k", Interval: time.Second}, func(Result) {}},
		{"zero interval", Subscription{Key: "k", URL: "http://x"}, func(Result) {}},
		{"nil callback", Subscription{Key: "k", URL: "http://x", Interval: time.Second}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Start(context.Background(), tt.sub, tt.cb, nil); err == nil {
				t.Error("Start() succeeded, want error")
			}
		})
	}
}

// TestController_ContextCancellationStopsSchedule verifies that cancelling
// the parent context halts polling without an explicit Stop.
func TestController_ContextCancellationStopsSchedule(t *testing.T) {
	var total atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		total.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewController(testLogger())
	defer c.StopAll()

	sub := Subscription{Key: "chat", URL: server.URL, Interval: 20 * time.Millisecond, Timeout: time.Second}
	if err := c.Start(ctx, sub, func(Result) {}, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	before := total.Load()
	time.Sleep(100 * time.Millisecond)
	if after := total.Load(); after != before {
		t.Errorf("requests continued after context cancellation: %d -> %d", before, after)
	}
}

// TestController_TransportFailureSwallowed verifies that an unreachable
// backend produces failure accounting but keeps the schedule alive.
func TestController_TransportFailureSwallowed(t *testing.T) {
	c := NewController(testLogger())
	defer c.StopAll()

	failures := make(chan *FetchError, 8)
	sub := Subscription{
		Key:      "evaluator",
		URL:      "http://127.0.0.1:1", // nothing listens here
		Interval: 25 * time.Millisecond,
		Timeout:  200 * time.Millisecond,
	}
	if err := c.Start(context.Background(), sub, func(Result) {}, func(fe *FetchError) { failures <- fe }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// at least two scheduled attempts must fire despite the failures
	for i := 0; i < 2; i++ {
		select {
		case fe := <-failures:
			var ferr *FetchError
			if !errors.As(error(fe), &ferr) {
				t.Error("failure callback did not deliver a *FetchError")
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timeout waiting for failure %d; schedule stopped on failure", i+1)
		}
	}

	statuses := c.Status()
	if len(statuses) != 1 {
		t.Fatalf("Status() returned %d entries, want 1", len(statuses))
	}
	if statuses[0].ConsecutiveFailures < 2 {
		t.Errorf("ConsecutiveFailures = %d, want at least 2", statuses[0].ConsecutiveFailures)
	}
	if statuses[0].LastError == "" {
		t.Error("LastError is empty, want transport error message")
	}
}
