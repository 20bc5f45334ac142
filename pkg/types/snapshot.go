package types

import (
	"errors"
	"os"
	"strings"
	"time"
)

// SnapshotMetadata describes one stored API snapshot
type SnapshotMetadata struct {
	PackageName string    `json:"packageName"`
	CommitHash  string    `json:"commitHash"`
	Timestamp   time.Time `json:"timestamp"`
	Branch      string    `json:"branch"`
	Version     string    `json:"version"`
	FileSize    int64     `json:"fileSize"`
	Checksum    string    `json:"checksum"`
}

// Validate checks the fields every stored record must carry
func (m *SnapshotMetadata) Validate() error {
	if strings.TrimSpace(m.PackageName) == "" {
		return errors.New("snapshot package name is required")
	}
	if strings.TrimSpace(m.CommitHash) == "" {
		return errors.New("snapshot commit hash is required")
	}
	if m.Timestamp.IsZero() {
		return errors.New("snapshot timestamp is required")
	}
	return nil
}

// BaselineSnapshot is a retrieved baseline materialized to a local file
type BaselineSnapshot struct {
	PackageName string           `json:"packageName"`
	FilePath    string           `json:"filePath"`
	Metadata    SnapshotMetadata `json:"metadata"`
}

// Cleanup removes the local copy of the baseline
func (b *BaselineSnapshot) Cleanup() error {
	if b == nil || b.FilePath == "" {
		return nil
	}
	if err := os.Remove(b.FilePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// StorageHealth is the last observed health of one backend
type StorageHealth struct {
	Backend   string        `json:"backend"`
	Kind      string        `json:"kind"`
	Healthy   bool          `json:"healthy"`
	LastCheck time.Time     `json:"lastCheck"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency,omitempty"`
}

// IsStale reports whether the entry is too old to route on
func (h *StorageHealth) IsStale(now time.Time, interval time.Duration) bool {
	if h.LastCheck.IsZero() {
		return true
	}
	return now.Sub(h.LastCheck) > 2*interval
}

// StorageStats aggregates the snapshots held by a backend
type StorageStats struct {
	TotalSize      int64     `json:"totalSize"`
	SnapshotCount  int       `json:"snapshotCount"`
	OldestSnapshot time.Time `json:"oldestSnapshot,omitempty"`
	NewestSnapshot time.Time `json:"newestSnapshot,omitempty"`
}

// Add folds one metadata record into the stats
func (s *StorageStats) Add(meta SnapshotMetadata) {
	s.TotalSize += meta.FileSize
	s.SnapshotCount++
	if s.OldestSnapshot.IsZero() || meta.Timestamp.Before(s.OldestSnapshot) {
		s.OldestSnapshot = meta.Timestamp
	}
	if meta.Timestamp.After(s.NewestSnapshot) {
		s.NewestSnapshot = meta.Timestamp
	}
}
