package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/agentvillage/swarmdeck/internal/poller"
	"github.com/agentvillage/swarmdeck/internal/store"
	"github.com/agentvillage/swarmdeck/internal/stream"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testStreamURL = "https://viewer.example.com/vnc.html?autoconnect=true"

// newTestServer wires a server against real aggregator and hub instances
// and returns them for direct manipulation.
func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *store.Aggregator, *stream.Hub) {
	t.Helper()

	if cfg.Aggregator == nil {
		cfg.Aggregator = store.New()
	}
	if cfg.Hub == nil {
		cfg.Hub = stream.NewHub(testLogger())
	}
	cfg.Logger = testLogger()

	s := NewServer(cfg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		cfg.Hub.Close()
	})
	return ts, cfg.Aggregator, cfg.Hub
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

// TestServer_Snapshot verifies the snapshot endpoint reflects aggregator
// state.
func TestServer_Snapshot(t *testing.T) {
	ts, agg, _ := newTestServer(t, Config{})

	agg.SetAgents([]store.Agent{{ID: "agent-1", Status: "running"}})

	var snap store.Snapshot
	resp := getJSON(t, ts.URL+"/api/snapshot", &snap)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(snap.Agents) != 1 || snap.Agents[0].ID != "agent-1" {
		t.Errorf("snapshot agents = %+v, want agent-1", snap.Agents)
	}
	if snap.Version != 1 {
		t.Errorf("Version = %d, want 1", snap.Version)
	}
}

// TestServer_Feeds verifies the polling counters endpoint.
func TestServer_Feeds(t *testing.T) {
	ts, _, _ := newTestServer(t, Config{
		FeedStatus: func() []poller.Status {
			return []poller.Status{{Key: "live", TotalFetches: 7, SkippedTicks: 2}}
		},
	})

	var statuses []poller.Status
	getJSON(t, ts.URL+"/api/feeds", &statuses)
	if len(statuses) != 1 || statuses[0].Key != "live" {
		t.Fatalf("statuses = %+v, want one entry for live", statuses)
	}
	if statuses[0].SkippedTicks != 2 {
		t.Errorf("SkippedTicks = %d, want 2", statuses[0].SkippedTicks)
	}
}

// TestServer_Viewports verifies the session listing.
func TestServer_Viewports(t *testing.T) {
	ts, _, hub := newTestServer(t, Config{})
	if err := hub.Add("agent-1", testStreamURL); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	var sessions []stream.Session
	getJSON(t, ts.URL+"/api/viewports", &sessions)
	if len(sessions) != 1 {
		t.Fatalf("len(sessions) = %d, want 1", len(sessions))
	}
	if sessions[0].State != stream.StateLoading {
		t.Errorf("State = %q, want %q", sessions[0].State, stream.StateLoading)
	}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// TestServer_ViewportSignalAndRetry walks the load-failure-retry cycle
// through the HTTP surface.
func TestServer_ViewportSignalAndRetry(t *testing.T) {
	ts, _, hub := newTestServer(t, Config{})
	if err := hub.Add("agent-1", testStreamURL); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// retry before any failure is a conflict
	resp := postJSON(t, ts.URL+"/api/viewports/agent-1/retry", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("retry while loading: status = %d, want 409", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/viewports/agent-1/signal", `{"event":"error"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("error signal: status = %d, want 200", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/viewports/agent-1/retry", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("retry: status = %d, want 200", resp.StatusCode)
	}
	var session stream.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decode retry response: %v", err)
	}
	if session.RetryCount != 1 || session.State != stream.StateLoading {
		t.Errorf("session after retry = %+v, want Loading with RetryCount 1", session)
	}
	if !strings.Contains(session.URL, "retry=") {
		t.Errorf("URL = %q, want cache-busting retry token", session.URL)
	}

	// load signal completes the cycle
	resp = postJSON(t, ts.URL+"/api/viewports/agent-1/signal", `{"event":"load"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load signal: status = %d, want 200", resp.StatusCode)
	}
	if got := hub.Get("agent-1").Session().State; got != stream.StateConnected {
		t.Errorf("State = %q, want %q", got, stream.StateConnected)
	}
}

// TestServer_ViewportErrors covers the 404 and 400 paths.
func TestServer_ViewportErrors(t *testing.T) {
	ts, _, hub := newTestServer(t, Config{})
	if err := hub.Add("agent-1", testStreamURL); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	resp := postJSON(t, ts.URL+"/api/viewports/agent-9/retry", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown agent: status = %d, want 404", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/viewports/agent-1/signal", `{"event":"reboot"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown event: status = %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/viewports/agent-1/signal", `not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad body: status = %d, want 400", resp.StatusCode)
	}
}

// TestServer_ViewportExternal verifies the external window descriptor.
func TestServer_ViewportExternal(t *testing.T) {
	ts, _, hub := newTestServer(t, Config{})
	if err := hub.Add("agent-1", testStreamURL); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	var win stream.ExternalWindow
	getJSON(t, ts.URL+"/api/viewports/agent-1/external", &win)
	if win.Name != "swarmdeck-viewport-agent-1" {
		t.Errorf("Name = %q, want stable per-agent name", win.Name)
	}
	if win.Width != 1280 || win.Height != 800 {
		t.Errorf("geometry = %dx%d, want 1280x800", win.Width, win.Height)
	}
	// asking for the descriptor is not a state transition
	if got := hub.Get("agent-1").Session().State; got != stream.StateLoading {
		t.Errorf("State = %q, want unchanged Loading", got)
	}
}

// TestServer_Dashboard verifies asset serving and title substitution.
func TestServer_Dashboard(t *testing.T) {
	assets := fstest.MapFS{
		"assets/index.html": &fstest.MapFile{
			Data: []byte("<title>{{.Title}}</title>"),
		},
	}
	ts, _, _ := newTestServer(t, Config{Assets: assets, Title: "Swarm <Ops>"})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Swarm &lt;Ops&gt;") {
		t.Errorf("body = %q, want escaped title substituted", body)
	}
}

// TestServer_SSE verifies snapshot and viewport events are delivered with
// their event names.
func TestServer_SSE(t *testing.T) {
	ts, agg, hub := newTestServer(t, Config{})
	if err := hub.Add("agent-1", testStreamURL); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/sse", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/sse: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	events := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "event: ") {
				events <- strings.TrimPrefix(line, "event: ")
			}
		}
	}()

	waitEvent := func(name string) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case ev := <-events:
				if ev == name {
					return
				}
			case <-deadline:
				t.Fatalf("timeout waiting for %q event", name)
			}
		}
	}

	// initial state: one snapshot and one viewport event
	waitEvent("snapshot")
	waitEvent("viewport")

	agg.SetAgents([]store.Agent{{ID: "agent-1", Status: "running"}})
	waitEvent("snapshot")

	hub.Get("agent-1").HandleLoad()
	waitEvent("viewport")
}

// TestServer_ViewerProxy verifies the embed proxy forwards to the stream
// backend and strips frame-blocking headers.
func TestServer_ViewerProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("X-Upstream-Path", r.URL.Path)
		w.Header().Set("X-Upstream-Query", r.URL.RawQuery)
		io.WriteString(w, "stream page")
	}))
	defer upstream.Close()

	ts, _, hub := newTestServer(t, Config{})
	if err := hub.Add("agent-1", upstream.URL+"/vnc.html?autoconnect=true"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	resp, err := http.Get(ts.URL + "/viewer/agent-1/vnc.html?password=secret")
	if err != nil {
		t.Fatalf("GET proxy: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if string(body) != "stream page" {
		t.Errorf("body = %q, want upstream body", body)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "" {
		t.Errorf("X-Frame-Options = %q, want stripped", got)
	}
	if got := resp.Header.Get("Content-Security-Policy"); got != "" {
		t.Errorf("Content-Security-Policy = %q, want stripped", got)
	}
	if got := resp.Header.Get("X-Upstream-Path"); got != "/vnc.html" {
		t.Errorf("upstream path = %q, want /vnc.html", got)
	}
	if got := resp.Header.Get("X-Upstream-Query"); got != "password=secret" {
		t.Errorf("upstream query = %q, want password=secret", got)
	}

	resp2, err := http.Get(ts.URL + "/viewer/agent-9/vnc.html")
	if err != nil {
		t.Fatalf("GET proxy unknown agent: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("unknown agent: status = %d, want 404", resp2.StatusCode)
	}
}
