package engine

import "sync"

// ActivationTracker remembers the last turn at which each entry was surfaced
// by Tier 2 or Tier 3. It feeds the stickiness window of Tier 1. The tracker
// is ephemeral bookkeeping, rebuildable from the persisted retrieval log;
// it is never authoritative story state.
type ActivationTracker struct {
	mu   sync.RWMutex
	last map[string]int // entry ID → last activation turn
}

// NewActivationTracker creates an empty tracker.
func NewActivationTracker() *ActivationTracker {
	return &ActivationTracker{last: make(map[string]int)}
}

// NewActivationTrackerFrom seeds a tracker from persisted retrieval history,
// e.g. store.LastActivations after a restart.
func NewActivationTrackerFrom(seed map[string]int) *ActivationTracker {
	t := NewActivationTracker()
	for id, turn := range seed {
		t.last[id] = turn
	}
	return t
}

// LastActivation returns the last turn the entry was activated, or false if
// it never was.
func (t *ActivationTracker) LastActivation(entryID string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	turn, ok := t.last[entryID]
	return turn, ok
}

// RecordActivation overwrites the entry's last activation turn.
func (t *ActivationTracker) RecordActivation(entryID string, turn int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[entryID] = turn
}

// PruneOlderThan drops records whose activation is more than maxWindow turns
// before currentTurn. Bounds memory for long-running stories; maxWindow should
// be the largest stickiness window in use.
func (t *ActivationTracker) PruneOlderThan(currentTurn, maxWindow int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	pruned := 0
	for id, turn := range t.last {
		if currentTurn-turn > maxWindow {
			delete(t.last, id)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of tracked entries.
func (t *ActivationTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.last)
}
