package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/agentvillage/swarmdeck/internal/poller"
	"github.com/agentvillage/swarmdeck/internal/store"
	"github.com/agentvillage/swarmdeck/internal/stream"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "Swarmdeck"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Config collects the dependencies of a [Server].
type Config struct {
	// Port is the TCP port to listen on.
	Port int

	// Title is the dashboard title (defaults to "Swarmdeck" if empty).
	Title string

	// Assets is the embedded filesystem containing dashboard assets
	// (may be nil; the dashboard route is then disabled).
	Assets fs.FS

	// Aggregator provides the composed dashboard snapshot.
	Aggregator *store.Aggregator

	// Hub provides the stream viewport sessions.
	Hub *stream.Hub

	// FeedStatus reports the polling observability counters.
	FeedStatus func() []poller.Status

	// Logger receives server events.
	Logger *slog.Logger
}

// Server handles HTTP requests for the swarmdeck dashboard and API.
//
// Routes:
//   - GET  /                                   embedded dashboard HTML
//   - GET  /api/snapshot                       current dashboard snapshot
//   - GET  /api/feeds                          per-feed polling counters
//   - GET  /api/viewports                      all stream viewport sessions
//   - POST /api/viewports/{agent}/signal       load/error signal from the viewport
//   - POST /api/viewports/{agent}/retry        retry a failed viewport
//   - GET  /api/viewports/{agent}/external     external window descriptor
//   - GET  /api/sse                            Server-Sent Events stream
//   - GET  /viewer/{agent}/{path...}           embed-safe stream proxy
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	cfg        Config
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// The server is not started until [Server.Start] is called.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, logger: logger}
}

// Handler builds the route table. Exposed for tests; production use goes
// through [Server.Start].
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/feeds", s.handleFeeds)
	mux.HandleFunc("GET /api/viewports", s.handleViewports)
	mux.HandleFunc("POST /api/viewports/{agent}/signal", s.handleViewportSignal)
	mux.HandleFunc("POST /api/viewports/{agent}/retry", s.handleViewportRetry)
	mux.HandleFunc("GET /api/viewports/{agent}/external", s.handleViewportExternal)
	mux.HandleFunc("GET /api/sse", s.handleSSE)
	mux.HandleFunc("/viewer/{agent}/{path...}", s.handleViewerProxy)

	if s.cfg.Assets != nil {
		mux.HandleFunc("GET /{$}", s.handleDashboard)
	}

	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.cfg.Port, err)
	}

	s.httpServer = &http.Server{
		Handler: s.Handler(),
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	content, err := fs.ReadFile(s.cfg.Assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.cfg.Title
	if title == "" {
		title = defaultTitle
	}
	safeTitle := html.EscapeString(title)
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, safeTitle)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleSnapshot returns the current dashboard snapshot as JSON.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.cfg.Aggregator.Snapshot())
}

// handleFeeds returns the polling observability counters as JSON.
func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	var statuses []poller.Status
	if s.cfg.FeedStatus != nil {
		statuses = s.cfg.FeedStatus()
	}
	s.writeJSON(w, statuses)
}

// handleViewports returns every stream viewport session as JSON.
func (s *Server) handleViewports(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.cfg.Hub.Sessions())
}

// viewportSignal is the body of a POST /api/viewports/{agent}/signal
// request, reported by the embedding page.
type viewportSignal struct {
	Event string `json:"event"` // "load" or "error"
}

// handleViewportSignal applies a load or failure signal from the
// embedding page to the agent's viewport session.
func (s *Server) handleViewportSignal(w http.ResponseWriter, r *http.Request) {
	c := s.viewportController(w, r)
	if c == nil {
		return
	}

	var sig viewportSignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		http.Error(w, "invalid signal body", http.StatusBadRequest)
		return
	}

	switch sig.Event {
	case "load":
		c.HandleLoad()
	case "error":
		c.HandleFailure()
	default:
		http.Error(w, fmt.Sprintf("unknown event %q", sig.Event), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, c.Session())
}

// handleViewportRetry retries a failed viewport and returns the new
// session. A retry outside the error state is rejected with 409.
func (s *Server) handleViewportRetry(w http.ResponseWriter, r *http.Request) {
	c := s.viewportController(w, r)
	if c == nil {
		return
	}

	if !c.Retry() {
		http.Error(w, "viewport is not in error state", http.StatusConflict)
		return
	}
	s.writeJSON(w, c.Session())
}

// handleViewportExternal returns the external window descriptor for an
// agent's stream. No session transition occurs.
func (s *Server) handleViewportExternal(w http.ResponseWriter, r *http.Request) {
	c := s.viewportController(w, r)
	if c == nil {
		return
	}
	s.writeJSON(w, c.OpenExternally())
}

// viewportController resolves the {agent} path value to its controller,
// writing a 404 if the agent has no viewport.
func (s *Server) viewportController(w http.ResponseWriter, r *http.Request) *stream.Controller {
	agentID := r.PathValue("agent")
	c := s.cfg.Hub.Get(agentID)
	if c == nil {
		http.Error(w, fmt.Sprintf("no viewport for agent %q", agentID), http.StatusNotFound)
	}
	return c
}

// writeJSON writes v as a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sseEvent is one named Server-Sent Event.
type sseEvent struct {
	name string
	data []byte
}

// handleSSE streams snapshot rebuilds and viewport session changes via
// Server-Sent Events. Snapshots arrive as "snapshot" events, viewport
// changes as "viewport" events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// ResponseController provides deadline-aware write and flush operations.
	// This is the Go 1.20+ idiomatic way to handle write timeouts.
	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	// writeEvent writes one SSE event with a deadline to prevent blocking
	// forever. If the client is slow or disconnected, the write will timeout
	// rather than blocking indefinitely, allowing the handler to detect
	// shutdown signals.
	writeEvent := func(ev sseEvent) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	// set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	snapshots := s.cfg.Aggregator.Subscribe()
	defer s.cfg.Aggregator.Unsubscribe(snapshots)
	sessions := s.cfg.Hub.Subscribe()
	defer s.cfg.Hub.Unsubscribe(sessions)

	// initial state: the current snapshot and every viewport session,
	// so a late-joining client renders immediately
	if data, err := json.Marshal(s.cfg.Aggregator.Snapshot()); err == nil {
		if err := writeEvent(sseEvent{name: "snapshot", data: data}); err != nil {
			return
		}
	}
	for _, session := range s.cfg.Hub.Sessions() {
		data, err := json.Marshal(session)
		if err != nil {
			continue
		}
		if err := writeEvent(sseEvent{name: "viewport", data: data}); err != nil {
			return
		}
	}

	// stream updates
	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			if err := writeEvent(sseEvent{name: "snapshot", data: data}); err != nil {
				return
			}

		case session, ok := <-sessions:
			if !ok {
				return
			}
			data, err := json.Marshal(session)
			if err != nil {
				continue
			}
			if err := writeEvent(sseEvent{name: "viewport", data: data}); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
