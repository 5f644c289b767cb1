// Standalone mock swarm backend for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/swarmdeck serve -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"
)

type simAgent struct {
	id       string
	taskID   int64
	progress float64
}

func main() {
	fmt.Println("Mock swarm backend starting on :9999")
	fmt.Println("Three agents grind through tasks; the evaluator scores them")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu       sync.Mutex
		agents   = []*simAgent{{id: "agent-1", taskID: 1}, {id: "agent-2", taskID: 2}, {id: "agent-3", taskID: 3}}
		messages []map[string]any
		evals    []map[string]any
		nextTask = int64(4)
	)

	go func() {
		for range time.Tick(2 * time.Second) {
			mu.Lock()
			now := time.Now().UTC().Format(time.RFC3339)
			for _, a := range agents {
				a.progress += float64(5 + rand.Intn(15))
				if a.progress < 100 {
					continue
				}
				messages = append([]map[string]any{{
					"id":               fmt.Sprintf("msg-%d", a.taskID),
					"agent_id":         a.id,
					"message":          fmt.Sprintf("Finished task %d.", a.taskID),
					"progress_percent": 100.0,
					"timestamp":        now,
					"task_id":          a.taskID,
				}}, messages...)
				evals = append([]map[string]any{{
					"task_id":      a.taskID,
					"agent_id":     a.id,
					"scores":       map[string]any{"overall_score": 70 + rand.Float64()*30},
					"evaluated_at": now,
				}}, evals...)
				a.taskID = nextTask
				nextTask++
				a.progress = 0
			}
			mu.Unlock()
		}
	}()

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /agents/live", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now().UTC().Format(time.RFC3339)
		out := make([]map[string]any, 0, len(agents))
		for _, a := range agents {
			out = append(out, map[string]any{
				"agent_id": a.id,
				"vnc_url":  fmt.Sprintf("http://localhost:9999/streams/%s/vnc.html", a.id),
				"latest_progress": map[string]any{
					"message":          "working",
					"progress_percent": a.progress,
					"timestamp":        now,
					"task_id":          a.taskID,
				},
			})
		}
		writeJSON(w, map[string]any{"agents": out, "generated_at": now})
	})
	mux.HandleFunc("GET /evaluator/status", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		total := 0.0
		for _, e := range evals {
			total += e["scores"].(map[string]any)["overall_score"].(float64)
		}
		avg := 0.0
		if len(evals) > 0 {
			avg = total / float64(len(evals))
		}
		writeJSON(w, map[string]any{
			"status":             "running",
			"total_evaluations":  len(evals),
			"agents_evaluated":   3,
			"tasks_evaluated":    len(evals),
			"average_score":      avg,
			"recent_evaluations": evals,
		})
	})
	mux.HandleFunc("GET /chat/agent-responses", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		writeJSON(w, map[string]any{"messages": messages})
	})
	mux.HandleFunc("GET /streams/{agent}/vnc.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body><h3>mock stream: %s</h3></body></html>", r.PathValue("agent"))
	})

	if err := http.ListenAndServe(":9999", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
