package swarmdeck

import (
	"github.com/agentvillage/swarmdeck/internal/store"
)

// Converters between the public SDK types and their internal storage
// counterparts. The two layers deliberately do not share struct types, so
// each can evolve without breaking the other; these functions are the
// only coupling point.

func agentToStore(a AgentSnapshot) store.Agent {
	sa := store.Agent{
		ID:             a.AgentID,
		Status:         string(a.Status),
		LastActivityAt: a.LastActivityAt,
		Metrics:        a.Metrics,
		StreamURL:      a.StreamURL,
	}
	if a.Progress != nil {
		p := progressToStore(*a.Progress)
		sa.Progress = &p
	}
	for _, p := range a.ProgressHistory {
		sa.ProgressHistory = append(sa.ProgressHistory, progressToStore(p))
	}
	for _, sc := range a.Screenshots {
		sa.Screenshots = append(sa.Screenshots, store.Screenshot{
			URL:        sc.URL,
			UploadedAt: sc.UploadedAt,
			TaskID:     sc.TaskID,
		})
	}
	return sa
}

func progressToStore(p ProgressUpdate) store.Progress {
	return store.Progress{
		Message:   p.Message,
		Percent:   p.ProgressPercent,
		Timestamp: p.Timestamp,
		TaskID:    p.TaskID,
	}
}

func evaluatorToStore(r EvaluatorReport) store.Evaluator {
	ev := store.Evaluator{
		Status:           r.Status,
		TotalEvaluations: r.TotalEvaluations,
		AgentsEvaluated:  r.AgentsEvaluated,
		TasksEvaluated:   r.TasksEvaluated,
		AverageScore:     r.AverageScore,
	}
	for _, rec := range r.Recent {
		ev.Recent = append(ev.Recent, store.Evaluation{
			TaskID:      rec.TaskID,
			AgentID:     rec.AgentID,
			Scores:      rec.Scores,
			EvaluatedAt: rec.EvaluatedAt,
		})
	}
	return ev
}

func chatToStore(messages []ChatMessage) []store.ChatMessage {
	out := make([]store.ChatMessage, len(messages))
	for i, m := range messages {
		out[i] = store.ChatMessage{
			ID:         m.ID,
			AgentID:    m.AgentID,
			Message:    m.Message,
			Percent:    m.ProgressPercent,
			Timestamp:  m.Timestamp,
			TaskID:     m.TaskID,
			TaskTitle:  m.TaskTitle,
			TaskStatus: m.TaskStatus,
		}
	}
	return out
}

// snapshotFromStore rebuilds the public snapshot for callback delivery.
func snapshotFromStore(s *store.Snapshot) *DashboardSnapshot {
	snap := &DashboardSnapshot{
		Version:             s.Version,
		GeneratedAt:         s.GeneratedAt,
		AverageScorePercent: s.Evaluator.AverageScorePercent,
		Evaluator:           evaluatorFromStore(s.Evaluator),
	}
	for _, sa := range s.Agents {
		snap.Agents = append(snap.Agents, agentFromStore(sa))
	}
	for _, m := range s.Chat {
		snap.Chat = append(snap.Chat, ChatMessage{
			ID:              m.ID,
			AgentID:         m.AgentID,
			Message:         m.Message,
			ProgressPercent: m.Percent,
			Timestamp:       m.Timestamp,
			TaskID:          m.TaskID,
			TaskTitle:       m.TaskTitle,
			TaskStatus:      m.TaskStatus,
		})
	}
	return snap
}

func agentFromStore(sa store.Agent) AgentSnapshot {
	a := AgentSnapshot{
		AgentID:        sa.ID,
		Status:         AgentStatus(sa.Status),
		LastActivityAt: sa.LastActivityAt,
		Metrics:        sa.Metrics,
		StreamURL:      sa.StreamURL,
	}
	if sa.Progress != nil {
		p := progressFromStore(*sa.Progress)
		a.Progress = &p
	}
	for _, p := range sa.ProgressHistory {
		a.ProgressHistory = append(a.ProgressHistory, progressFromStore(p))
	}
	for _, sc := range sa.Screenshots {
		a.Screenshots = append(a.Screenshots, Screenshot{
			URL:        sc.URL,
			UploadedAt: sc.UploadedAt,
			TaskID:     sc.TaskID,
		})
	}
	return a
}

func progressFromStore(p store.Progress) ProgressUpdate {
	return ProgressUpdate{
		Message:         p.Message,
		ProgressPercent: p.Percent,
		Timestamp:       p.Timestamp,
		TaskID:          p.TaskID,
	}
}

func evaluatorFromStore(ev store.Evaluator) EvaluatorReport {
	r := EvaluatorReport{
		Status:           ev.Status,
		TotalEvaluations: ev.TotalEvaluations,
		AgentsEvaluated:  ev.AgentsEvaluated,
		TasksEvaluated:   ev.TasksEvaluated,
		AverageScore:     ev.AverageScore,
	}
	for _, rec := range ev.Recent {
		r.Recent = append(r.Recent, EvaluationRecord{
			TaskID:      rec.TaskID,
			AgentID:     rec.AgentID,
			Scores:      rec.Scores,
			EvaluatedAt: rec.EvaluatedAt,
		})
	}
	return r
}
