package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// swarmSim produces a small simulated agent swarm: agents grind through
// tasks, post responses, and the evaluator scores completed work.
type swarmSim struct {
	mu        sync.Mutex
	startedAt time.Time
	agents    []*simAgent
	messages  []map[string]any
	evals     []map[string]any
	nextTask  int64
}

type simAgent struct {
	id       string
	taskID   int64
	progress float64
	activity string
}

var activities = []string{
	"reading task description",
	"browsing documentation",
	"writing draft answer",
	"running verification",
	"polishing response",
}

func newSwarmSim(agentCount int) *swarmSim {
	sim := &swarmSim{startedAt: time.Now(), nextTask: 1}
	for i := 1; i <= agentCount; i++ {
		sim.agents = append(sim.agents, &simAgent{
			id:       fmt.Sprintf("agent-%d", i),
			taskID:   sim.nextTask,
			activity: activities[0],
		})
		sim.nextTask++
	}
	return sim
}

// tick advances every agent; finished tasks emit a chat message and an
// evaluation.
func (s *swarmSim) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, a := range s.agents {
		a.progress += float64(5 + rand.Intn(15))
		a.activity = activities[rand.Intn(len(activities))]
		if a.progress < 100 {
			continue
		}

		// task complete: response + evaluation, then pick up the next one
		s.messages = append([]map[string]any{{
			"id":               fmt.Sprintf("msg-%d-%d", a.taskID, now.UnixNano()),
			"agent_id":         a.id,
			"message":          fmt.Sprintf("Finished task %d: results verified and submitted.", a.taskID),
			"progress_percent": 100.0,
			"timestamp":        now.Format(time.RFC3339),
			"task_id":          a.taskID,
			"task":             map[string]any{"title": fmt.Sprintf("Research task %d", a.taskID), "status": "completed"},
		}}, s.messages...)

		s.evals = append([]map[string]any{{
			"task_id":      a.taskID,
			"agent_id":     a.id,
			"scores":       map[string]any{"overall_score": 70 + rand.Float64()*30},
			"evaluated_at": now.Format(time.RFC3339),
		}}, s.evals...)

		a.taskID = s.nextTask
		s.nextTask++
		a.progress = 0
	}

	if len(s.messages) > 50 {
		s.messages = s.messages[:50]
	}
	if len(s.evals) > 20 {
		s.evals = s.evals[:20]
	}
}

func (s *swarmSim) liveFeed(baseURL string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	agents := make([]map[string]any, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, map[string]any{
			"agent_id": a.id,
			"vnc_url":  fmt.Sprintf("%s/streams/%s/vnc.html?autoconnect=true", baseURL, a.id),
			"latest_progress": map[string]any{
				"message":          a.activity,
				"progress_percent": a.progress,
				"timestamp":        now.Format(time.RFC3339),
				"task_id":          a.taskID,
			},
		})
	}
	return map[string]any{
		"agents":       agents,
		"generated_at": now.Format(time.RFC3339),
	}
}

func (s *swarmSim) evaluatorStatus() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents := map[string]bool{}
	tasks := map[int64]bool{}
	total := 0.0
	for _, e := range s.evals {
		agents[e["agent_id"].(string)] = true
		tasks[e["task_id"].(int64)] = true
		total += e["scores"].(map[string]any)["overall_score"].(float64)
	}
	avg := 0.0
	if len(s.evals) > 0 {
		avg = total / float64(len(s.evals))
	}
	return map[string]any{
		"status":             "running",
		"total_evaluations":  len(s.evals),
		"agents_evaluated":   len(agents),
		"tasks_evaluated":    len(tasks),
		"average_score":      avg,
		"recent_evaluations": s.evals,
	}
}

func (s *swarmSim) chatMessages(limit int) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return map[string]any{"messages": msgs}
}

// StartMockSwarmServer runs a fake swarm backend with the live, chat, and
// evaluator feeds plus a trivial stream page per agent.
// Call this in a goroutine before starting the board.
func StartMockSwarmServer(addr string, agentCount int) {
	sim := newSwarmSim(agentCount)
	go func() {
		for range time.Tick(2 * time.Second) {
			sim.tick()
		}
	}()

	baseURL := "http://localhost" + addr
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("GET /agents/live", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sim.liveFeed(baseURL))
	})
	mux.HandleFunc("GET /evaluator/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sim.evaluatorStatus())
	})
	mux.HandleFunc("GET /chat/agent-responses", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sim.chatMessages(50))
	})
	mux.HandleFunc("GET /streams/{agent}/vnc.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body style='background:#111;color:#6f6;font-family:monospace'>"+
			"<h3>mock stream: %s</h3><p>a real deployment serves the live desktop here</p></body></html>",
			r.PathValue("agent"))
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock swarm server error", "error", err)
	}
}
