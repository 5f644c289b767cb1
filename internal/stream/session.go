package stream

import "time"

// State is the lifecycle state of one embedded live-stream connection
// attempt.
//
// State is a tagged value with exactly three members; the illegal
// combinations a bag of booleans would allow (loading and error at once)
// are unrepresentable.
type State string

const (
	// StateLoading indicates the viewport has requested the stream and
	// no load or failure signal has arrived yet.
	StateLoading State = "loading"

	// StateConnected indicates the viewport reported a successful load.
	StateConnected State = "connected"

	// StateError indicates the viewport reported an explicit load
	// failure. Absence of a signal is never sufficient to enter this
	// state.
	StateError State = "error"
)

// String returns the string representation of the state.
// This implements the fmt.Stringer interface.
func (s State) String() string {
	return string(s)
}

// Session is the observable state of one agent's stream viewport.
//
// A Session is a value: the controller hands out copies and no other
// component may mutate the live record. A session is discarded and
// recreated whenever the target URL changes.
type Session struct {
	// AgentID identifies the agent whose desktop the stream shows.
	AgentID string `json:"agent_id"`

	// URL is the current embed URL, including the fit-to-container
	// parameter and, after a retry, a fresh cache-busting token.
	URL string `json:"url"`

	// State is the connection lifecycle state.
	State State `json:"state"`

	// RetryCount is the number of explicit retries since the session
	// was created. Reset to zero when the target URL changes.
	RetryCount int `json:"retry_count"`

	// Unconfirmed is set when the confirmation window elapsed with no
	// load or failure signal. Cross-origin embedded content cannot be
	// introspected for real connection health, so this is treated as a
	// soft success: the loading indicator stops without claiming the
	// stream connected. Only meaningful while State is StateLoading.
	Unconfirmed bool `json:"unconfirmed"`

	// TransitionedAt is when the session last changed.
	TransitionedAt time.Time `json:"transitioned_at"`
}

// ShowSpinner reports whether a loading indicator should be displayed:
// the session is Loading and the confirmation window has not elapsed.
func (s Session) ShowSpinner() bool {
	return s.State == StateLoading && !s.Unconfirmed
}

// external window geometry, fixed by contract
const (
	externalWindowWidth  = 1280
	externalWindowHeight = 800
)

// ExternalWindow describes a separate, independently-addressed viewing
// surface for a stream.
//
// The name is stable per agent so repeated opens for the same agent reuse
// the same surface instead of proliferating windows. Opening it is a side
// effect for the consumer; it is not a session state transition.
type ExternalWindow struct {
	// Name keys the window; one surface per agent.
	Name string `json:"name"`

	// URL is the stream URL to open.
	URL string `json:"url"`

	// Width is the fixed surface width in pixels.
	Width int `json:"width"`

	// Height is the fixed surface height in pixels.
	Height int `json:"height"`
}
