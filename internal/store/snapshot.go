package store

import (
	"strconv"
	"time"
)

// Snapshot is a read-only, point-in-time composite of everything the
// dashboard currently knows: the latest agent set, the latest evaluator
// report, and the chat message list.
//
// A brand-new Snapshot is produced on every constituent change and the
// previous one is never mutated, so consumers can compare pointers to
// detect change and hold a snapshot for as long as they like.
type Snapshot struct {
	// Version increases by one per rebuild.
	Version uint64 `json:"version"`

	// GeneratedAt is when this snapshot was composed.
	GeneratedAt time.Time `json:"generated_at"`

	// Agents is the latest agent set, sorted by id.
	Agents []Agent `json:"agents"`

	// Evaluator is the latest evaluator report.
	Evaluator Evaluator `json:"evaluator"`

	// Chat holds agent responses, newest first.
	Chat []ChatMessage `json:"chat"`
}

// Agent is the storage representation of one agent's observed state.
//
// It is decoupled from the SDK's public types (the same discipline the
// poller keeps) so the stored JSON shape can evolve independently.
type Agent struct {
	ID              string             `json:"agent_id"`
	Status          string             `json:"status"`
	LastActivityAt  time.Time          `json:"last_activity_at"`
	Metrics         map[string]float64 `json:"metrics,omitempty"`
	Progress        *Progress          `json:"latest_progress,omitempty"`
	ProgressHistory []Progress         `json:"progress_updates,omitempty"`
	Screenshots     []Screenshot       `json:"screenshots,omitempty"`
	StreamURL       string             `json:"stream_url,omitempty"`
}

// Progress is one stored progress report.
type Progress struct {
	Message   string    `json:"message"`
	Percent   float64   `json:"progress_percent"`
	Timestamp time.Time `json:"timestamp"`
	TaskID    int64     `json:"task_id,omitempty"`
}

// Screenshot is one stored desktop capture reference.
type Screenshot struct {
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploaded_at"`
	TaskID     int64     `json:"task_id,omitempty"`
}

// Evaluator is the stored evaluator report.
type Evaluator struct {
	Status              string       `json:"status"`
	TotalEvaluations    int64        `json:"total_evaluations"`
	AgentsEvaluated     int64        `json:"agents_evaluated"`
	TasksEvaluated      int64        `json:"tasks_evaluated"`
	AverageScore        float64      `json:"average_score"`
	AverageScorePercent string       `json:"average_score_percent"`
	Recent              []Evaluation `json:"recent_evaluations"`
}

// Evaluation is one stored evaluation record, immutable once received.
type Evaluation struct {
	TaskID      int64              `json:"task_id"`
	AgentID     string             `json:"agent_id"`
	Scores      map[string]float64 `json:"scores"`
	EvaluatedAt time.Time          `json:"evaluated_at"`
}

// ChatMessage is one stored agent response.
type ChatMessage struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	Message    string    `json:"message"`
	Percent    float64   `json:"progress_percent"`
	Timestamp  time.Time `json:"timestamp"`
	TaskID     int64     `json:"task_id"`
	TaskTitle  string    `json:"task_title,omitempty"`
	TaskStatus string    `json:"task_status,omitempty"`
}

// FormatPercent renders a score for display: 87.5 becomes "87.5%".
// Trailing zeros are not padded, matching the evaluator's own output.
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
