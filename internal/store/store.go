// Package store provides the bounded in-memory snapshot history. It is a
// live-telemetry cache, not a durable store; nothing survives a restart.
package store

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shizukutanaka/Mihari/internal/metrics"
)

// estimatedSnapshotBytes is the fixed per-entry size used for storage
// usage reporting.
const estimatedSnapshotBytes = 512

// Store is a capacity-bounded, oldest-evicted snapshot buffer. All reads
// return copies; no caller ever holds a live reference into the buffer.
type Store struct {
	logger *zap.Logger

	mu    sync.RWMutex
	snaps []metrics.Snapshot
	max   int
}

// StorageUsage describes current buffer occupancy.
type StorageUsage struct {
	Entries        int     `json:"entries"`
	EstimatedBytes int64   `json:"estimated_bytes"`
	MaxEntries     int     `json:"max_entries"`
	Utilization    float64 `json:"utilization_percent"`
}

// New creates a store holding at most maxSize snapshots.
func New(logger *zap.Logger, maxSize int) *Store {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Store{
		logger: logger,
		snaps:  make([]metrics.Snapshot, 0, min(maxSize, 1024)),
		max:    maxSize,
	}
}

// Store appends a snapshot, evicting the oldest entry when full.
func (s *Store) Store(snap metrics.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snaps = append(s.snaps, snap)
	if len(s.snaps) > s.max {
		over := len(s.snaps) - s.max
		s.snaps = append(s.snaps[:0], s.snaps[over:]...)
	}
}

// Range returns all snapshots with start <= timestamp <= end, both bounds
// inclusive, in arrival order.
func (s *Store) Range(start, end time.Time) []metrics.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]metrics.Snapshot, 0)
	for _, snap := range s.snaps {
		if !snap.Timestamp.Before(start) && !snap.Timestamp.After(end) {
			out = append(out, snap)
		}
	}
	return out
}

// Recent returns the last n snapshots (or fewer) in chronological order.
func (s *Store) Recent(n int) []metrics.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	if n > len(s.snaps) {
		n = len(s.snaps)
	}
	out := make([]metrics.Snapshot, n)
	copy(out, s.snaps[len(s.snaps)-n:])
	return out
}

// CleanupOlderThan removes snapshots with timestamps strictly before the
// cutoff and returns how many were removed.
func (s *Store) CleanupOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := 0
	for keep < len(s.snaps) && s.snaps[keep].Timestamp.Before(cutoff) {
		keep++
	}
	if keep == 0 {
		return 0
	}
	removed := keep
	s.snaps = append(s.snaps[:0], s.snaps[keep:]...)
	if s.logger != nil {
		s.logger.Debug("evicted aged snapshots",
			zap.Int("removed", removed),
			zap.Time("cutoff", cutoff),
		)
	}
	return removed
}

// TotalCount returns the number of stored snapshots.
func (s *Store) TotalCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snaps)
}

// Usage reports occupancy against the configured maximum.
func (s *Store) Usage() StorageUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return StorageUsage{
		Entries:        len(s.snaps),
		EstimatedBytes: int64(len(s.snaps)) * estimatedSnapshotBytes,
		MaxEntries:     s.max,
		Utilization:    float64(len(s.snaps)) / float64(s.max) * 100,
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
