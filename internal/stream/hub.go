package stream

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// subscriberBuffer matches the store's fan-out sizing: bursts of session
// changes are buffered per subscriber, beyond that intermediates drop.
const subscriberBuffer = 16

// Hub owns the set of viewport controllers for a board and fans their
// session changes out to subscribers.
//
// Controllers are created through the hub so their change callbacks are
// wired before the first Loading notification fires. The hub mirrors the
// aggregator's pub/sub shape: buffered channels, non-blocking sends, a
// slow subscriber skips intermediate sessions rather than stalling a
// controller.
type Hub struct {
	logger *slog.Logger

	mu          sync.RWMutex
	controllers map[string]*Controller
	closed      bool

	subMu       sync.RWMutex
	subscribers map[chan Session]struct{}
}

// NewHub creates an empty Hub. If logger is nil, [slog.Default] is used.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:      logger,
		controllers: make(map[string]*Controller),
		subscribers: make(map[chan Session]struct{}),
	}
}

// Add creates a viewport controller for the agent and registers it.
//
// The controller's change callback broadcasts through the hub, so the
// initial Loading session is already delivered to subscribers. Adding an
// agent that already has a viewport is an error.
func (h *Hub) Add(agentID, streamURL string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("hub is closed")
	}
	if _, exists := h.controllers[agentID]; exists {
		return fmt.Errorf("viewport for agent %q already exists", agentID)
	}

	c, err := NewController(agentID, streamURL, h.broadcast, h.logger)
	if err != nil {
		return err
	}
	h.controllers[agentID] = c
	return nil
}

// Get returns the controller for the agent, or nil if none exists.
func (h *Hub) Get(agentID string) *Controller {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.controllers[agentID]
}

// Sessions returns a copy of every current session, sorted by agent id.
func (h *Hub) Sessions() []Session {
	h.mu.RLock()
	out := make([]Session, 0, len(h.controllers))
	for _, c := range h.controllers {
		out = append(out, c.Session())
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// SetURL retargets an agent's viewport, creating the viewport if the
// agent does not have one yet. Used when a live fetch reports a new or
// changed stream URL for an agent.
func (h *Hub) SetURL(agentID, streamURL string) error {
	h.mu.RLock()
	c := h.controllers[agentID]
	closed := h.closed
	h.mu.RUnlock()

	if closed {
		return fmt.Errorf("hub is closed")
	}
	if c == nil {
		return h.Add(agentID, streamURL)
	}
	return c.SetURL(streamURL)
}

// Subscribe creates a subscription and returns a channel of session
// changes across all viewports.
//
// Caller must call [Hub.Unsubscribe] when done to prevent resource leaks.
func (h *Hub) Subscribe() <-chan Session {
	ch := make(chan Session, subscriberBuffer)

	h.subMu.Lock()
	h.subscribers[ch] = struct{}{}
	h.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (h *Hub) Unsubscribe(ch <-chan Session) {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	for subCh := range h.subscribers {
		if subCh == ch {
			delete(h.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// Close tears down every controller and closes all subscription channels.
// After Close, Add and SetURL fail and no further sessions are delivered.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	controllers := h.controllers
	h.controllers = make(map[string]*Controller)
	h.mu.Unlock()

	for _, c := range controllers {
		c.Close()
	}

	h.subMu.Lock()
	for ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = make(map[chan Session]struct{})
	h.subMu.Unlock()
}

// broadcast delivers a session change to all subscribers without
// blocking.
func (h *Hub) broadcast(s Session) {
	h.subMu.RLock()
	defer h.subMu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- s:
		default:
			// subscriber is slow; it will see the next change
		}
	}
}
