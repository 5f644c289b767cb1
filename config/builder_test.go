package config

import (
	"testing"
	"time"

	"github.com/agentvillage/swarmdeck"
)

// buildBoard runs the full config-to-SDK path and returns the board.
func buildBoard(t *testing.T, cfg *Config) *swarmdeck.Board {
	t.Helper()
	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}
	board, err := swarmdeck.New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return board
}

func TestBuildOptions_Defaults(t *testing.T) {
	cfg := &Config{
		APIBase: "http://localhost:8000/api",
		Port:    8080,
	}
	board := buildBoard(t, cfg)

	if board.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", board.Port())
	}
	if board.APIBase() != "http://localhost:8000/api" {
		t.Errorf("APIBase() = %q", board.APIBase())
	}

	feeds := board.Feeds()
	if len(feeds) != 3 {
		t.Fatalf("len(Feeds()) = %d, want 3 built-ins", len(feeds))
	}
	byKey := map[string]swarmdeck.Feed{}
	for _, f := range feeds {
		byKey[f.Key()] = f
	}
	if byKey["live"].Interval() != swarmdeck.DefaultLiveInterval {
		t.Errorf("live interval = %v, want default", byKey["live"].Interval())
	}
	if byKey["chat"].Interval() != swarmdeck.DefaultChatInterval {
		t.Errorf("chat interval = %v, want default", byKey["chat"].Interval())
	}
}

func TestBuildOptions_FeedTuning(t *testing.T) {
	disabled := false
	cfg := &Config{
		Title:   "Ops",
		APIBase: "http://localhost:8000/api",
		Port:    9090,
		Feeds: map[string]FeedConfig{
			"live":      {Interval: Duration(2 * time.Second), Timeout: Duration(3 * time.Second)},
			"evaluator": {Enabled: &disabled},
		},
	}
	board := buildBoard(t, cfg)

	if board.Title() != "Ops" {
		t.Errorf("Title() = %q, want Ops", board.Title())
	}

	feeds := board.Feeds()
	if len(feeds) != 2 {
		t.Fatalf("len(Feeds()) = %d, want 2 (evaluator disabled)", len(feeds))
	}
	for _, f := range feeds {
		if f.Key() == "evaluator" {
			t.Error("evaluator feed present despite enabled: false")
		}
		if f.Key() == "live" {
			if f.Interval() != 2*time.Second {
				t.Errorf("live interval = %v, want 2s", f.Interval())
			}
			if f.Timeout() != 3*time.Second {
				t.Errorf("live timeout = %v, want 3s", f.Timeout())
			}
		}
	}
}

// TestBuildOptions_AllFeedsDisabled verifies a config that disables every
// built-in feed produces a board that polls nothing, instead of falling
// back to the default feed set.
func TestBuildOptions_AllFeedsDisabled(t *testing.T) {
	disabled := false
	cfg := &Config{
		APIBase: "http://localhost:8000/api",
		Port:    8080,
		Feeds: map[string]FeedConfig{
			"live":      {Enabled: &disabled},
			"chat":      {Enabled: &disabled},
			"evaluator": {Enabled: &disabled},
		},
		Agents: []AgentConfig{
			{ID: "agent-1", StreamURL: "http://streams.local/agent-1/vnc.html"},
		},
	}
	board := buildBoard(t, cfg)

	if feeds := board.Feeds(); len(feeds) != 0 {
		keys := make([]string, len(feeds))
		for i, f := range feeds {
			keys[i] = f.Key()
		}
		t.Errorf("Feeds() = %v, want none when every feed is disabled", keys)
	}
}

func TestBuildOptions_InvalidFeedTuning(t *testing.T) {
	cfg := &Config{
		APIBase: "http://localhost:8000/api",
		Port:    8080,
		Feeds: map[string]FeedConfig{
			// Parse would reject this, but BuildOptions must hold its
			// own when handed a constructed Config
			"live": {Interval: Duration(10 * time.Millisecond)},
		},
	}
	if _, err := BuildOptions(cfg); err == nil {
		t.Error("BuildOptions() error = nil, want interval validation error")
	}
}

func TestBuildOptions_Agents(t *testing.T) {
	cfg := &Config{
		APIBase: "http://localhost:8000/api",
		Port:    8080,
		Agents: []AgentConfig{
			{ID: "agent-1", StreamURL: "http://streams.local/agent-1/vnc.html"},
			{ID: "agent-2", StreamURL: "http://streams.local/agent-2/vnc.html"},
		},
	}
	// viewports surface at Start; construction succeeding is the
	// contract checked here
	buildBoard(t, cfg)
}
