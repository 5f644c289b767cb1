package swarmdeck

import (
	"encoding/json"
	"fmt"
	"time"
)

// Update is a decoded dashboard change produced by a feed's decoder and
// applied to the aggregated snapshot.
//
// Exactly one of [AgentsUpdate], [EvaluatorUpdate], or [ChatUpdate] is
// produced per successful fetch; each replaces its snapshot section
// wholesale.
type Update interface {
	isUpdate()
}

// AgentsUpdate replaces the agent set.
type AgentsUpdate struct {
	// Agents is the complete new agent set.
	Agents []AgentSnapshot

	// GeneratedAt is the backend's composition timestamp, if reported.
	GeneratedAt time.Time
}

func (AgentsUpdate) isUpdate() {}

// EvaluatorUpdate replaces the evaluator report.
type EvaluatorUpdate struct {
	// Report is the complete new evaluator report.
	Report EvaluatorReport
}

func (EvaluatorUpdate) isUpdate() {}

// ChatUpdate replaces the chat message list.
type ChatUpdate struct {
	// Messages is the complete new message list.
	Messages []ChatMessage
}

func (ChatUpdate) isUpdate() {}

// UpdateDecoder is a function type that turns a feed's HTTP response into
// an [Update].
//
// Decoders are pure functions: the same body and status code always
// produce the same result, which keeps them easy to test and compose.
// A decoder error is a transient failure: it is swallowed by the polling
// layer and the next scheduled tick retries.
//
// # Panic Safety
//
// Decoders are called within a panic recovery boundary. If a decoder
// panics, the fetch is recorded as a failure with a correlation ID and
// the full stack trace is logged server-side. A misbehaving decoder
// cannot crash the board.
type UpdateDecoder func(body []byte, statusCode int) (Update, error)

// activityWindow bounds how old an agent's latest progress update may be
// for the agent to still count as running.
const activityWindow = 2 * time.Minute

// wire types for the backend JSON contracts; timestamps arrive as ISO
// strings with or without a zone suffix, so they stay strings here and
// go through parseTimestamp

type liveFeedWire struct {
	Agents      []liveAgentWire `json:"agents"`
	GeneratedAt string          `json:"generated_at"`
}

type liveAgentWire struct {
	AgentID         string               `json:"agent_id"`
	Status          string               `json:"status"`
	VNCURL          string               `json:"vnc_url"`
	LatestProgress  *progressWire        `json:"latest_progress"`
	ProgressUpdates []progressWire       `json:"progress_updates"`
	Screenshots     []screenshotWire     `json:"screenshots"`
	Metrics         map[string]float64   `json:"metrics"`
}

type progressWire struct {
	Message         string  `json:"message"`
	ProgressPercent float64 `json:"progress_percent"`
	Timestamp       string  `json:"timestamp"`
	TaskID          int64   `json:"task_id"`
}

type screenshotWire struct {
	URL        string `json:"url"`
	UploadedAt string `json:"uploaded_at"`
	TaskID     int64  `json:"task_id"`
}

type evaluatorWire struct {
	Status            string           `json:"status"`
	TotalEvaluations  int64            `json:"total_evaluations"`
	AgentsEvaluated   int64            `json:"agents_evaluated"`
	TasksEvaluated    int64            `json:"tasks_evaluated"`
	AverageScore      float64          `json:"average_score"`
	RecentEvaluations []evaluationWire `json:"recent_evaluations"`
}

type evaluationWire struct {
	TaskID      int64              `json:"task_id"`
	AgentID     string             `json:"agent_id"`
	Scores      map[string]float64 `json:"scores"`
	EvaluatedAt string             `json:"evaluated_at"`
}

type chatWire struct {
	Messages []chatMessageWire `json:"messages"`
}

type chatMessageWire struct {
	ID              string  `json:"id"`
	AgentID         string  `json:"agent_id"`
	Message         string  `json:"message"`
	ProgressPercent float64 `json:"progress_percent"`
	Timestamp       string  `json:"timestamp"`
	TaskID          int64   `json:"task_id"`
	Task            struct {
		Title  string `json:"title"`
		Status string `json:"status"`
	} `json:"task"`
}

// DecodeLiveFeed is the [UpdateDecoder] for the agents/live contract.
//
// Each agent's snapshot is rebuilt from scratch: status, latest progress,
// progress history, screenshots, and the reported stream URL. Nothing is
// merged with a previous fetch.
var DecodeLiveFeed UpdateDecoder = func(body []byte, statusCode int) (Update, error) {
	var wire liveFeedWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("live feed: %w", err)
	}

	agents := make([]AgentSnapshot, 0, len(wire.Agents))
	for _, aw := range wire.Agents {
		if aw.AgentID == "" {
			return nil, fmt.Errorf("live feed: agent entry missing agent_id")
		}
		agents = append(agents, decodeLiveAgent(aw, time.Now()))
	}

	generatedAt, _ := parseTimestamp(wire.GeneratedAt)
	return AgentsUpdate{Agents: agents, GeneratedAt: generatedAt}, nil
}

// decodeLiveAgent builds one agent snapshot from its wire form.
func decodeLiveAgent(aw liveAgentWire, now time.Time) AgentSnapshot {
	snap := AgentSnapshot{
		AgentID:   aw.AgentID,
		StreamURL: aw.VNCURL,
		Metrics:   aw.Metrics,
	}

	for _, pw := range aw.ProgressUpdates {
		snap.ProgressHistory = append(snap.ProgressHistory, decodeProgress(pw))
	}
	for _, sw := range aw.Screenshots {
		uploadedAt, _ := parseTimestamp(sw.UploadedAt)
		snap.Screenshots = append(snap.Screenshots, Screenshot{
			URL:        sw.URL,
			UploadedAt: uploadedAt,
			TaskID:     sw.TaskID,
		})
	}
	if aw.LatestProgress != nil {
		p := decodeProgress(*aw.LatestProgress)
		snap.Progress = &p
		snap.LastActivityAt = p.Timestamp
		if snap.Metrics == nil {
			snap.Metrics = map[string]float64{}
		}
		snap.Metrics["progress_percent"] = p.ProgressPercent
	} else if len(snap.ProgressHistory) > 0 {
		snap.LastActivityAt = snap.ProgressHistory[0].Timestamp
	}

	snap.Status = deriveAgentStatus(aw.Status, snap, now)
	return snap
}

// deriveAgentStatus maps the wire status onto the [AgentStatus] enum.
// Backends that omit the field get a freshness-based derivation: an agent
// with recent, unfinished progress is running; everything else is idle.
func deriveAgentStatus(reported string, snap AgentSnapshot, now time.Time) AgentStatus {
	switch reported {
	case string(AgentIdle), string(AgentRunning), string(AgentError):
		return AgentStatus(reported)
	}
	if snap.Progress != nil &&
		now.Sub(snap.LastActivityAt) < activityWindow &&
		snap.Progress.ProgressPercent < 100 {
		return AgentRunning
	}
	return AgentIdle
}

func decodeProgress(pw progressWire) ProgressUpdate {
	ts, _ := parseTimestamp(pw.Timestamp)
	return ProgressUpdate{
		Message:         pw.Message,
		ProgressPercent: pw.ProgressPercent,
		Timestamp:       ts,
		TaskID:          pw.TaskID,
	}
}

// DecodeEvaluatorStatus is the [UpdateDecoder] for the evaluator/status
// contract.
var DecodeEvaluatorStatus UpdateDecoder = func(body []byte, statusCode int) (Update, error) {
	var wire evaluatorWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("evaluator status: %w", err)
	}

	report := EvaluatorReport{
		Status:           wire.Status,
		TotalEvaluations: wire.TotalEvaluations,
		AgentsEvaluated:  wire.AgentsEvaluated,
		TasksEvaluated:   wire.TasksEvaluated,
		AverageScore:     wire.AverageScore,
	}
	for _, ew := range wire.RecentEvaluations {
		evaluatedAt, err := parseTimestamp(ew.EvaluatedAt)
		if err != nil {
			return nil, fmt.Errorf("evaluator status: task %d: %w", ew.TaskID, err)
		}
		report.Recent = append(report.Recent, EvaluationRecord{
			TaskID:      ew.TaskID,
			AgentID:     ew.AgentID,
			Scores:      ew.Scores,
			EvaluatedAt: evaluatedAt,
		})
	}
	return EvaluatorUpdate{Report: report}, nil
}

// DecodeChatMessages is the [UpdateDecoder] for the chat/agent-responses
// contract. Messages with no response text are dropped.
var DecodeChatMessages UpdateDecoder = func(body []byte, statusCode int) (Update, error) {
	var wire chatWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("chat messages: %w", err)
	}

	messages := make([]ChatMessage, 0, len(wire.Messages))
	for _, mw := range wire.Messages {
		if mw.Message == "" {
			continue
		}
		ts, _ := parseTimestamp(mw.Timestamp)
		messages = append(messages, ChatMessage{
			ID:              mw.ID,
			AgentID:         mw.AgentID,
			Message:         mw.Message,
			ProgressPercent: mw.ProgressPercent,
			Timestamp:       ts,
			TaskID:          mw.TaskID,
			TaskTitle:       mw.Task.Title,
			TaskStatus:      mw.Task.Status,
		})
	}
	return ChatUpdate{Messages: messages}, nil
}

// timestampLayouts are tried in order. The backend emits RFC 3339 in some
// paths and naive ISO 8601 (no zone, from utcnow().isoformat()) in
// others; naive timestamps are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp parses a backend timestamp string. An empty string
// yields the zero time with no error.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for i, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if i > 0 {
				t = t.UTC()
			}
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
