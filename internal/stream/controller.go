package stream

import (
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultConfirmWindow is how long a new Loading session waits for a load
// or failure signal before its spinner is dropped as a soft success.
//
// This is a local presentation timer, not a network timeout: it never
// aborts the underlying load.
const DefaultConfirmWindow = 5 * time.Second

// retryTokenParam is the query parameter carrying the cache-busting retry
// token. It is replaced on each retry, never accumulated.
const retryTokenParam = "retry"

// resizeParam forces fit-to-container scaling on the embedded viewer.
const (
	resizeParam = "resize"
	resizeValue = "scale"
)

// Controller owns one agent viewport's [Session] and enforces its
// connect/fail/retry/fallback state machine.
//
// Exactly one Controller owns each session; all mutation goes through the
// controller's methods and pending timers are generation-guarded so a
// timer armed for a discarded session can never touch its successor.
// After [Controller.Close], every signal and timer is a no-op.
type Controller struct {
	agentID  string
	onChange func(Session)
	logger   *slog.Logger

	mu            sync.Mutex
	session       Session
	baseURL       string // normalized, without retry token
	confirmWindow time.Duration
	gen           uint64
	timer         *time.Timer
	closed        bool
}

// NewController creates a viewport controller for one agent and enters
// Loading immediately.
//
// rawURL is the stream backend's embed URL; it is accepted as-is apart
// from query normalization (fit-to-container scaling is forced on).
// onChange, if non-nil, receives a copy of the session after every
// change, including the initial Loading session. If logger is nil,
// [slog.Default] is used.
func NewController(agentID, rawURL string, onChange func(Session), logger *slog.Logger) (*Controller, error) {
	return newController(agentID, rawURL, DefaultConfirmWindow, onChange, logger)
}

// newController exists so tests can shrink the confirmation window.
func newController(agentID, rawURL string, confirmWindow time.Duration, onChange func(Session), logger *slog.Logger) (*Controller, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent id cannot be empty")
	}
	base, err := normalizeEmbedURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", agentID, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		agentID:       agentID,
		onChange:      onChange,
		logger:        logger,
		baseURL:       base,
		confirmWindow: confirmWindow,
	}

	c.mu.Lock()
	c.resetLocked()
	s := c.session
	c.mu.Unlock()

	c.notify(s)
	return c, nil
}

// AgentID returns the agent this controller's viewport belongs to.
func (c *Controller) AgentID() string {
	return c.agentID
}

// Session returns a copy of the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// HandleLoad records a successful load signal from the viewport.
//
// Only a Loading session transitions to Connected; a late load signal
// from a superseded attempt is ignored.
func (c *Controller) HandleLoad() {
	c.mu.Lock()
	if c.closed || c.session.State != StateLoading {
		c.mu.Unlock()
		return
	}
	c.invalidateTimerLocked()
	c.session.State = StateConnected
	c.session.Unconfirmed = false
	c.session.TransitionedAt = time.Now()
	s := c.session
	c.mu.Unlock()

	c.logger.Debug("stream connected", "agent", c.agentID)
	c.notify(s)
}

// HandleFailure records an explicit load-failure signal from the viewport.
//
// Both Loading and Connected sessions transition to Error; the error is
// surfaced rather than swallowed, since a blank viewport with no feedback
// is a dead end for the operator.
func (c *Controller) HandleFailure() {
	c.mu.Lock()
	if c.closed || c.session.State == StateError {
		c.mu.Unlock()
		return
	}
	c.invalidateTimerLocked()
	c.session.State = StateError
	c.session.Unconfirmed = false
	c.session.TransitionedAt = time.Now()
	s := c.session
	c.mu.Unlock()

	c.logger.Warn("stream load failed", "agent", c.agentID, "retry_count", s.RetryCount)
	c.notify(s)
}

// Retry re-enters Loading from Error.
//
// The retry count is incremented and the embed URL is regenerated with a
// fresh uniqueness token, forcing the viewport to re-request the stream
// instead of serving a cached failure. Retry in any other state is a
// no-op and returns false.
func (c *Controller) Retry() bool {
	c.mu.Lock()
	if c.closed || c.session.State != StateError {
		c.mu.Unlock()
		return false
	}
	c.session.RetryCount++
	c.session.URL = withRetryToken(c.baseURL, uuid.NewString())
	c.session.State = StateLoading
	c.session.Unconfirmed = false
	c.session.TransitionedAt = time.Now()
	c.armConfirmTimerLocked()
	s := c.session
	c.mu.Unlock()

	c.logger.Info("stream retry", "agent", c.agentID, "retry_count", s.RetryCount)
	c.notify(s)
	return true
}

// SetURL points the viewport at a different target.
//
// If the normalized URL differs from the current target, the session is
// discarded and a new one is created in Loading with a zero retry count.
// A URL identical to the current target is a no-op.
func (c *Controller) SetURL(rawURL string) error {
	base, err := normalizeEmbedURL(rawURL)
	if err != nil {
		return fmt.Errorf("agent %q: %w", c.agentID, err)
	}

	c.mu.Lock()
	if c.closed || base == c.baseURL {
		c.mu.Unlock()
		return nil
	}
	c.baseURL = base
	c.resetLocked()
	s := c.session
	c.mu.Unlock()

	c.logger.Debug("stream target changed", "agent", c.agentID)
	c.notify(s)
	return nil
}

// OpenExternally returns the descriptor for viewing the stream on a
// separate fixed-size surface keyed by the agent id.
//
// This is an escape hatch, not a transition: it may be invoked from any
// state and leaves the session untouched.
func (c *Controller) OpenExternally() ExternalWindow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ExternalWindow{
		Name:   "swarmdeck-viewport-" + c.agentID,
		URL:    c.session.URL,
		Width:  externalWindowWidth,
		Height: externalWindowHeight,
	}
}

// Close tears the controller down: the pending confirmation timer is
// cancelled synchronously and every later signal, retry, or timer fire is
// a no-op. Safe to call multiple times.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.invalidateTimerLocked()
}

// resetLocked replaces the session with a fresh Loading one for the
// current base URL and arms the confirmation timer. Caller holds mu.
func (c *Controller) resetLocked() {
	c.session = Session{
		AgentID:        c.agentID,
		URL:            c.baseURL,
		State:          StateLoading,
		TransitionedAt: time.Now(),
	}
	c.armConfirmTimerLocked()
}

// armConfirmTimerLocked starts the soft-confirmation countdown for the
// current session generation. Caller holds mu.
func (c *Controller) armConfirmTimerLocked() {
	c.invalidateTimerLocked()
	gen := c.gen
	c.timer = time.AfterFunc(c.confirmWindow, func() {
		c.softConfirm(gen)
	})
}

// invalidateTimerLocked bumps the generation so any pending timer becomes
// a no-op, and stops it if it has not fired yet. Caller holds mu.
func (c *Controller) invalidateTimerLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// softConfirm fires when the confirmation window elapses with no signal.
// No error is recorded: an explicit Error requires a positive failure
// signal, and a silent cross-origin embed is most often healthy. The
// session stays in Loading; only the spinner presentation changes.
func (c *Controller) softConfirm(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.session.State != StateLoading || c.session.Unconfirmed {
		c.mu.Unlock()
		return
	}
	c.session.Unconfirmed = true
	c.session.TransitionedAt = time.Now()
	s := c.session
	c.mu.Unlock()

	c.logger.Debug("stream unconfirmed after quiet window", "agent", c.agentID)
	c.notify(s)
}

// notify delivers a session copy to the change callback. Called without
// holding mu so a callback may read the controller freely.
func (c *Controller) notify(s Session) {
	if c.onChange != nil {
		c.onChange(s)
	}
}

// normalizeEmbedURL validates the stream URL and forces fit-to-container
// scaling. Any retry token present in the input is stripped; tokens are
// attached per attempt, never inherited.
func normalizeEmbedURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("stream url cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid stream url: %w", err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("stream url must have a scheme (http:// or https://)")
	}

	q := u.Query()
	q.Set(resizeParam, resizeValue)
	q.Del(retryTokenParam)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// withRetryToken returns the base URL with the uniqueness token attached.
func withRetryToken(baseURL, token string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		// baseURL already round-tripped through normalizeEmbedURL
		return baseURL
	}
	q := u.Query()
	q.Set(retryTokenParam, token)
	u.RawQuery = q.Encode()
	return u.String()
}
