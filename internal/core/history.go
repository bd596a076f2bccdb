package core

import (
	"sort"
	"sync"
	"time"
)

// DefaultHistorySize is how many finished conversions a History keeps.
const DefaultHistorySize = 200

// HistoryEntry records one finished conversion. It carries counts only,
// never cell data.
type HistoryEntry struct {
	ID        string         `json:"id"`
	FileName  string         `json:"fileName"`
	Rows      int            `json:"rows"`
	Columns   []string       `json:"columns"`
	Findings  int            `json:"findings"`
	Summary   FindingSummary `json:"summary"`
	ClientIP  string         `json:"clientIp,omitempty"`
	Duration  time.Duration  `json:"durationNs"`
	CreatedAt time.Time      `json:"createdAt"`
}

// History is a bounded, in-memory log of recent conversions. The oldest
// entry is dropped once the limit is reached. Safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	entries []HistoryEntry
	limit   int
}

// NewHistory keeps at most limit entries. Non-positive means DefaultHistorySize.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{limit: limit}
}

// Record appends an entry.
func (h *History) Record(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	h.entries = append(h.entries, e)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
	}
}

// List returns up to n entries, newest first. n <= 0 returns all.
func (h *History) List(n int) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Get finds an entry by conversion ID.
func (h *History) Get(id string) (HistoryEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, e := range h.entries {
		if e.ID == id {
			return e, true
		}
	}
	return HistoryEntry{}, false
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Prune drops entries created before cutoff and returns how many were removed.
func (h *History) Prune(cutoff time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.entries[:0]
	for _, e := range h.entries {
		if !e.CreatedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(h.entries) - len(kept)
	clear(h.entries[len(kept):])
	h.entries = kept
	return removed
}

// historyEntry summarizes a finished conversion for the history log.
func historyEntry(c *Conversion, clientIP string) HistoryEntry {
	return HistoryEntry{
		ID:        c.ID.String(),
		FileName:  c.FileName,
		Rows:      c.Table.Rows(),
		Columns:   c.Table.Names(),
		Findings:  len(c.Findings),
		Summary:   c.Summary,
		ClientIP:  clientIP,
		Duration:  c.Duration,
		CreatedAt: time.Now(),
	}
}
