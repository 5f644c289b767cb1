package swarmdeck

import "time"

// AgentStatus represents the activity state of a single agent.
//
// AgentStatus is a string type that can hold one of three predefined
// values: [AgentIdle], [AgentRunning], or [AgentError]. Using a string
// type allows for easy JSON serialization and human-readable logging
// while maintaining type safety through the defined constants.
type AgentStatus string

const (
	// AgentIdle indicates the agent is up but not executing a task.
	AgentIdle AgentStatus = "idle"

	// AgentRunning indicates the agent is actively executing a task.
	AgentRunning AgentStatus = "running"

	// AgentError indicates the agent reported a failure on its last task.
	AgentError AgentStatus = "error"
)

// String returns the string representation of the status.
// This implements the fmt.Stringer interface.
func (s AgentStatus) String() string {
	return string(s)
}

// ProgressUpdate is a single progress report emitted by an agent worker.
type ProgressUpdate struct {
	// Message is the human-readable progress text.
	Message string `json:"message"`

	// ProgressPercent is the reported completion percentage (0-100).
	ProgressPercent float64 `json:"progress_percent"`

	// Timestamp is when the agent emitted the update.
	Timestamp time.Time `json:"timestamp"`

	// TaskID identifies the task the update belongs to, if any.
	TaskID int64 `json:"task_id,omitempty"`
}

// Screenshot is a reference to a desktop capture uploaded by an agent.
type Screenshot struct {
	// URL is the fetchable location of the capture, relative to the
	// backend API base.
	URL string `json:"url"`

	// UploadedAt is when the capture was stored.
	UploadedAt time.Time `json:"uploaded_at"`

	// TaskID identifies the task during which the capture was taken.
	TaskID int64 `json:"task_id,omitempty"`
}

// AgentSnapshot is the full observed state of one agent.
//
// A snapshot is replaced wholesale on every successful live-feed fetch;
// fields are never merged with a previous snapshot. This keeps a panel
// from ever displaying a mix of two different fetches.
type AgentSnapshot struct {
	// AgentID is the stable identifier of the agent (e.g. "agent-1").
	AgentID string `json:"agent_id"`

	// Status is the coarse activity state of the agent.
	Status AgentStatus `json:"status"`

	// LastActivityAt is the timestamp of the agent's most recent
	// progress update. Zero if the agent has never reported.
	LastActivityAt time.Time `json:"last_activity_at"`

	// Metrics contains numeric gauges reported alongside the agent
	// (progress percent, queue depth, and similar).
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Progress is the latest progress update, if any.
	Progress *ProgressUpdate `json:"latest_progress,omitempty"`

	// ProgressHistory holds the most recent progress updates, newest first.
	ProgressHistory []ProgressUpdate `json:"progress_updates,omitempty"`

	// Screenshots holds the most recent captures, newest first.
	Screenshots []Screenshot `json:"screenshots,omitempty"`

	// StreamURL is the agent's live desktop stream URL as reported by
	// the backend. Empty if the agent has no viewport.
	StreamURL string `json:"stream_url,omitempty"`
}

// EvaluationRecord is one completed evaluation of an agent on a task.
//
// Records are immutable once received and are ordered by EvaluatedAt
// descending for display.
type EvaluationRecord struct {
	// TaskID identifies the evaluated task.
	TaskID int64 `json:"task_id"`

	// AgentID identifies the evaluated agent.
	AgentID string `json:"agent_id"`

	// Scores maps score names to values. The evaluator always includes
	// "overall_score"; other dimensions are optional.
	Scores map[string]float64 `json:"scores"`

	// EvaluatedAt is when the evaluation completed.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// OverallScore returns the record's overall score, or 0 if absent.
func (r EvaluationRecord) OverallScore() float64 {
	return r.Scores["overall_score"]
}

// EvaluatorReport is the evaluator service's rolled-up state.
type EvaluatorReport struct {
	// Status is the evaluator's self-reported state (e.g. "running").
	Status string `json:"status"`

	// TotalEvaluations is the lifetime count of completed evaluations.
	TotalEvaluations int64 `json:"total_evaluations"`

	// AgentsEvaluated is the number of distinct agents evaluated.
	AgentsEvaluated int64 `json:"agents_evaluated"`

	// TasksEvaluated is the number of distinct tasks evaluated.
	TasksEvaluated int64 `json:"tasks_evaluated"`

	// AverageScore is the mean overall score across all evaluations.
	AverageScore float64 `json:"average_score"`

	// Recent holds the most recent evaluation records, newest first.
	Recent []EvaluationRecord `json:"recent_evaluations"`
}

// DashboardSnapshot is a read-only, point-in-time composite of everything
// the board currently knows.
//
// A brand-new snapshot is delivered to callbacks on every constituent
// change; the previous one is never mutated. Consumers can therefore
// compare pointers to detect change and keep a snapshot for as long as
// they like without copying.
type DashboardSnapshot struct {
	// Version increases by one per rebuild.
	Version uint64 `json:"version"`

	// GeneratedAt is when this snapshot was composed.
	GeneratedAt time.Time `json:"generated_at"`

	// Agents is the latest agent set, sorted by agent id.
	Agents []AgentSnapshot `json:"agents"`

	// Evaluator is the latest evaluator report, with recent records
	// ordered newest first.
	Evaluator EvaluatorReport `json:"evaluator"`

	// AverageScorePercent is the evaluator's mean overall score in
	// display form ("87.5%").
	AverageScorePercent string `json:"average_score_percent"`

	// Chat holds agent responses, newest first.
	Chat []ChatMessage `json:"chat"`
}

// Agent returns the snapshot entry for the given agent id, or nil if the
// agent is not present.
func (s *DashboardSnapshot) Agent(agentID string) *AgentSnapshot {
	for i := range s.Agents {
		if s.Agents[i].AgentID == agentID {
			return &s.Agents[i]
		}
	}
	return nil
}

// ChatMessage is one agent response surfaced in the chat panel.
type ChatMessage struct {
	// ID is a stable identifier for deduplication across fetches.
	ID string `json:"id"`

	// AgentID identifies the responding agent.
	AgentID string `json:"agent_id"`

	// Message is the response text.
	Message string `json:"message"`

	// ProgressPercent is the task completion at the time of the
	// response. Completed tasks report 100.
	ProgressPercent float64 `json:"progress_percent"`

	// Timestamp is when the response was recorded.
	Timestamp time.Time `json:"timestamp"`

	// TaskID identifies the task the response answers.
	TaskID int64 `json:"task_id"`

	// TaskTitle is the original task text.
	TaskTitle string `json:"task_title,omitempty"`

	// TaskStatus is the final task status ("completed" or "failed").
	TaskStatus string `json:"task_status,omitempty"`
}
