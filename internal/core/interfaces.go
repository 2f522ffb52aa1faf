// Package core defines the contracts between the queue service and its
// collaborators. Following the hexagonal pattern, core owns the interfaces and
// the data/adapters layers provide implementations.
package core

import (
	"context"
	"errors"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/domain/model"
)

// ErrSkipUpdate is returned by an Update mutator to abort the write without
// error: the mutator inspected the snapshot and found nothing to change.
var ErrSkipUpdate = errors.New("skip snapshot update")

// Stats describes live process resource usage. StatSource implementations
// fill CPUPercent and MemoryBytes; the admission service derives CPUFraction
// by normalizing against the configured core count.
type Stats struct {
	CPUFraction float64 `json:"cpu_fraction"`
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryBytes uint64  `json:"memory_bytes"`
}

// SnapshotStore persists the queue snapshot crash-safely.
//
// Update applies the mutator to the current persisted state and commits the
// new snapshot atomically. Concurrent Update calls are serialized in
// submission order; each mutator observes the state left by the previous
// write. A mutator returning an error aborts that write only and must never
// block subsequent writers; returning ErrSkipUpdate aborts the write and
// Update reports success.
type SnapshotStore interface {
	Read(ctx context.Context) (*model.Snapshot, error)
	Update(ctx context.Context, mutate func(*model.Snapshot) error) error
}

// Executor performs the actual browser-automation task for a job. It never
// panics through the worker loop; failures are normalized into an Outcome
// with code 500.
type Executor interface {
	Execute(ctx context.Context, job *model.Job) model.Outcome
	Ready(ctx context.Context) bool
}

// StatSource samples process resource usage. It is consumed as a black box;
// implementations live in internal/adapters/sysstat.
type StatSource interface {
	Sample(ctx context.Context) (Stats, error)
}
