package store

import (
	"sort"
	"sync"
	"time"
)

// Aggregator composes the latest values of every polled feed into one
// immutable [Snapshot].
//
// The aggregator is pure composition: it has no timers and no network
// access of its own. It only ever reads what the feed pipelines hand it;
// it never mutates controller-owned state. Each Set call deep-copies its
// input, rebuilds the snapshot, and notifies subscribers.
//
// Subscribers receive snapshots via buffered channels (buffer size 16).
// Sends are non-blocking: a slow subscriber misses intermediate snapshots
// rather than blocking the update path, which is acceptable because every
// snapshot is complete on its own.
type Aggregator struct {
	mu        sync.RWMutex
	agents    []Agent
	evaluator Evaluator
	chat      []ChatMessage
	version   uint64
	current   *Snapshot

	subMu       sync.RWMutex
	subscribers map[chan *Snapshot]struct{}
}

// subscriberBuffer is sized for bursts of feed completions landing
// together; beyond it, intermediate snapshots are dropped per subscriber.
const subscriberBuffer = 16

// New creates an empty [Aggregator].
//
// The initial snapshot has Version 0 and empty sections, so consumers can
// render an empty dashboard before the first fetch completes.
func New() *Aggregator {
	a := &Aggregator{
		subscribers: make(map[chan *Snapshot]struct{}),
	}
	a.current = &Snapshot{GeneratedAt: time.Now(), Agents: []Agent{}, Chat: []ChatMessage{}}
	return a
}

// SetAgents replaces the agent section wholesale.
//
// Snapshots are never merged field-by-field with previous values; the
// provided set is the complete new truth. Agents are sorted by id so the
// rendered order is stable across refreshes.
func (a *Aggregator) SetAgents(agents []Agent) {
	cp := make([]Agent, len(agents))
	for i, ag := range agents {
		cp[i] = copyAgent(ag)
	}
	sort.Slice(cp, func(i, j int) bool { return cp[i].ID < cp[j].ID })

	a.mu.Lock()
	a.agents = cp
	snap := a.rebuildLocked()
	a.mu.Unlock()

	a.notifySubscribers(snap)
}

// SetEvaluator replaces the evaluator section wholesale.
//
// Recent evaluations are ordered by EvaluatedAt descending and the
// display form of the average score is computed here so every consumer
// renders it identically.
func (a *Aggregator) SetEvaluator(ev Evaluator) {
	cp := copyEvaluator(ev)
	sort.SliceStable(cp.Recent, func(i, j int) bool {
		return cp.Recent[i].EvaluatedAt.After(cp.Recent[j].EvaluatedAt)
	})
	cp.AverageScorePercent = FormatPercent(cp.AverageScore)

	a.mu.Lock()
	a.evaluator = cp
	snap := a.rebuildLocked()
	a.mu.Unlock()

	a.notifySubscribers(snap)
}

// SetChat replaces the chat section wholesale, newest first.
func (a *Aggregator) SetChat(messages []ChatMessage) {
	cp := make([]ChatMessage, len(messages))
	copy(cp, messages)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Timestamp.After(cp[j].Timestamp) })

	a.mu.Lock()
	a.chat = cp
	snap := a.rebuildLocked()
	a.mu.Unlock()

	a.notifySubscribers(snap)
}

// Snapshot returns the current snapshot.
//
// The returned value is shared and must be treated as read-only; a new
// object is produced per update, so pointer identity signals "changed".
func (a *Aggregator) Snapshot() *Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Subscribe creates a subscription and returns a channel of snapshots.
//
// Caller must call [Aggregator.Unsubscribe] when done to prevent
// resource leaks.
func (a *Aggregator) Subscribe() <-chan *Snapshot {
	ch := make(chan *Snapshot, subscriberBuffer)

	a.subMu.Lock()
	a.subscribers[ch] = struct{}{}
	a.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (a *Aggregator) Unsubscribe(ch <-chan *Snapshot) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	for subCh := range a.subscribers {
		if subCh == ch {
			delete(a.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// rebuildLocked composes a fresh snapshot from the current sections.
// Caller holds mu. The sections are already private copies, so the new
// snapshot can reference them directly.
func (a *Aggregator) rebuildLocked() *Snapshot {
	a.version++
	snap := &Snapshot{
		Version:     a.version,
		GeneratedAt: time.Now(),
		Agents:      a.agents,
		Evaluator:   a.evaluator,
		Chat:        a.chat,
	}
	a.current = snap
	return snap
}

// notifySubscribers sends the snapshot to all active subscribers without
// blocking.
func (a *Aggregator) notifySubscribers(snap *Snapshot) {
	a.subMu.RLock()
	defer a.subMu.RUnlock()

	for ch := range a.subscribers {
		select {
		case ch <- snap:
		default:
			// subscriber is slow; it will catch up on the next snapshot
		}
	}
}

func copyAgent(ag Agent) Agent {
	cp := ag
	if ag.Metrics != nil {
		cp.Metrics = make(map[string]float64, len(ag.Metrics))
		for k, v := range ag.Metrics {
			cp.Metrics[k] = v
		}
	}
	if ag.Progress != nil {
		p := *ag.Progress
		cp.Progress = &p
	}
	cp.ProgressHistory = append([]Progress(nil), ag.ProgressHistory...)
	cp.Screenshots = append([]Screenshot(nil), ag.Screenshots...)
	return cp
}

func copyEvaluator(ev Evaluator) Evaluator {
	cp := ev
	cp.Recent = make([]Evaluation, len(ev.Recent))
	for i, rec := range ev.Recent {
		cp.Recent[i] = rec
		if rec.Scores != nil {
			scores := make(map[string]float64, len(rec.Scores))
			for k, v := range rec.Scores {
				scores[k] = v
			}
			cp.Recent[i].Scores = scores
		}
	}
	return cp
}
