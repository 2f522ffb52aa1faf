package model

import "time"

// SnapshotVersion is the persisted schema version stamped into Meta on every write.
const SnapshotVersion = 1

// Meta records bookkeeping information about the persisted snapshot.
type Meta struct {
	Version     int       `json:"version"`
	LastWriteAt time.Time `json:"last_write_at"`
}

// Snapshot is the complete durable serialization of the queue state. The
// in-memory queue and result cache are caches of it; a given job id appears
// in at most one of Queue and Results.
type Snapshot struct {
	Queue   []*Job             `json:"queue"`
	Results map[string]*Result `json:"results"`
	Meta    Meta               `json:"meta"`
}

// NewSnapshot returns an empty snapshot with initialized collections.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Queue:   []*Job{},
		Results: map[string]*Result{},
		Meta:    Meta{Version: SnapshotVersion},
	}
}

// Normalize repairs nil collections after decoding an older or hand-edited file.
func (s *Snapshot) Normalize() {
	if s.Queue == nil {
		s.Queue = []*Job{}
	}
	if s.Results == nil {
		s.Results = map[string]*Result{}
	}
}
