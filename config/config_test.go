package config

import (
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
api_base: http://localhost:8000/api
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.APIBase != "http://localhost:8000/api" {
		t.Errorf("APIBase = %q", cfg.APIBase)
	}
	if len(cfg.Feeds) != 0 || len(cfg.Agents) != 0 {
		t.Error("expected empty feeds and agents sections")
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: Agent Village Ops
port: 9090
api_base: https://swarm.example.com/api

headers:
  Authorization: Bearer token123
  X-Custom: value

feeds:
  live:
    interval: 2s
  chat:
    interval: 3s
    timeout: 5s
  evaluator:
    enabled: false

agents:
  - id: agent-1
    stream_url: https://streams.example.com/agent-1/vnc.html?autoconnect=true
  - id: agent-2
    stream_url: https://streams.example.com/agent-2/vnc.html
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Agent Village Ops" {
		t.Errorf("Title = %q", cfg.Title)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("Authorization header = %q", cfg.Headers["Authorization"])
	}
	if cfg.Feeds["live"].Interval.Duration() != 2*time.Second {
		t.Errorf("live interval = %v, want 2s", cfg.Feeds["live"].Interval.Duration())
	}
	if cfg.Feeds["chat"].Timeout.Duration() != 5*time.Second {
		t.Errorf("chat timeout = %v, want 5s", cfg.Feeds["chat"].Timeout.Duration())
	}
	ev := cfg.Feeds["evaluator"]
	if ev.Enabled == nil || *ev.Enabled {
		t.Error("evaluator feed should be disabled")
	}
	if len(cfg.Agents) != 2 || cfg.Agents[0].ID != "agent-1" {
		t.Errorf("Agents = %+v", cfg.Agents)
	}
}

func TestParse_EnvVarExpansion(t *testing.T) {
	t.Setenv("SWARM_TEST_BASE", "http://backend.internal:8000/api")
	t.Setenv("SWARM_TEST_TOKEN", "secret-token")

	yaml := `
api_base: ${SWARM_TEST_BASE}
headers:
  Authorization: Bearer ${SWARM_TEST_TOKEN}
agents:
  - id: agent-1
    stream_url: ${SWARM_TEST_STREAM:-http://streams.local/agent-1/vnc.html}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.APIBase != "http://backend.internal:8000/api" {
		t.Errorf("APIBase = %q, want expanded value", cfg.APIBase)
	}
	if cfg.Headers["Authorization"] != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want expanded value", cfg.Headers["Authorization"])
	}
	if cfg.Agents[0].StreamURL != "http://streams.local/agent-1/vnc.html" {
		t.Errorf("StreamURL = %q, want default value", cfg.Agents[0].StreamURL)
	}
}

func TestParse_MissingEnvVar(t *testing.T) {
	yaml := `
api_base: ${SWARM_DEFINITELY_UNSET_VAR}
`
	_, err := Parse([]byte(yaml))
	if err == nil || !strings.Contains(err.Error(), "SWARM_DEFINITELY_UNSET_VAR") {
		t.Errorf("Parse() error = %v, want missing env var error", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing api_base",
			yaml:    `port: 8080`,
			wantErr: "api_base is required",
		},
		{
			name: "api_base without scheme",
			yaml: `
api_base: localhost:8000/api
`,
			wantErr: "scheme",
		},
		{
			name: "unknown feed key",
			yaml: `
api_base: http://localhost:8000/api
feeds:
  tasks:
    interval: 5s
`,
			wantErr: `unknown feed "tasks"`,
		},
		{
			name: "interval too small",
			yaml: `
api_base: http://localhost:8000/api
feeds:
  live:
    interval: 100ms
`,
			wantErr: "at least 1s",
		},
		{
			name: "interval too large",
			yaml: `
api_base: http://localhost:8000/api
feeds:
  live:
    interval: 2h
`,
			wantErr: "must not exceed",
		},
		{
			name: "agent without id",
			yaml: `
api_base: http://localhost:8000/api
agents:
  - stream_url: http://streams.local/vnc.html
`,
			wantErr: "id is required",
		},
		{
			name: "agent without stream_url",
			yaml: `
api_base: http://localhost:8000/api
agents:
  - id: agent-1
`,
			wantErr: "stream_url is required",
		},
		{
			name: "duplicate agent id",
			yaml: `
api_base: http://localhost:8000/api
agents:
  - id: agent-1
    stream_url: http://streams.local/a/vnc.html
  - id: agent-1
    stream_url: http://streams.local/b/vnc.html
`,
			wantErr: "duplicate agent id",
		},
		{
			name: "invalid duration",
			yaml: `
api_base: http://localhost:8000/api
feeds:
  live:
    interval: soon
`,
			wantErr: "invalid duration",
		},
		{
			name: "port out of range",
			yaml: `
api_base: http://localhost:8000/api
port: 70000
`,
			wantErr: "port must be between",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/swarmdeck.yaml")
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Load() error = %v, want read error", err)
	}
}
