package optimizer

import (
	"sync"
	"time"
)

// History is the bounded, chronological record of optimization cycles.
// When full, the oldest record is evicted. The session counters are
// running totals accumulated on append; evicting a record never
// subtracts from them.
type History struct {
	mu      sync.RWMutex
	records []Record
	max     int

	sessions       int
	executed       int
	successes      int
	improvementSum float64
}

// NewHistory creates a history capped at max records.
func NewHistory(max int) *History {
	if max <= 0 {
		max = 1
	}
	return &History{max: max}
}

// Append stores a cycle record, evicting the oldest when at capacity,
// and folds the cycle into the running session counters.
func (h *History) Append(rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) >= h.max {
		h.records = h.records[1:]
	}
	h.records = append(h.records, rec)

	h.sessions++
	for _, res := range rec.Results {
		h.executed++
		if res.Success {
			h.successes++
			h.improvementSum += res.Improvement
		}
	}
}

// Recent returns the last n records in chronological order.
func (h *History) Recent(n int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || len(h.records) == 0 {
		return nil
	}
	if n > len(h.records) {
		n = len(h.records)
	}
	out := make([]Record, n)
	copy(out, h.records[len(h.records)-n:])
	return out
}

// RangeRecords returns the records with timestamps in [start, end],
// inclusive on both bounds.
func (h *History) RangeRecords(start, end time.Time) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Record
	for _, rec := range h.records {
		if rec.Timestamp.Before(start) || rec.Timestamp.After(end) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Len returns the stored record count.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Stats returns the running session counters. They cover every cycle
// since construction, including cycles whose records have since been
// evicted. The average improvement is taken over successful action
// results only; failed executions do not drag the mean down.
func (h *History) Stats() SessionStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := SessionStats{
		Sessions:           h.sessions,
		StrategiesExecuted: h.executed,
		Successes:          h.successes,
	}
	if h.successes > 0 {
		stats.AvgImprovement = h.improvementSum / float64(h.successes)
	}
	return stats
}
