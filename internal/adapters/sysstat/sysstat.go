// Package sysstat provides a process-level stat source backed by gopsutil.
package sysstat

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/core"
)

// Source samples CPU and memory usage of the current process.
type Source struct {
	proc *process.Process
}

var _ core.StatSource = (*Source)(nil)

// NewSource attaches to the current process.
func NewSource() (*Source, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("attach to process: %w", err)
	}
	return &Source{proc: proc}, nil
}

// Sample returns the process CPU percent since the previous sample and the
// current resident set size. CPUPercent is raw: on a multi-core machine it
// can exceed 100; normalization happens in the admission service.
func (s *Source) Sample(ctx context.Context) (core.Stats, error) {
	cpu, err := s.proc.CPUPercentWithContext(ctx)
	if err != nil {
		return core.Stats{}, fmt.Errorf("sample cpu: %w", err)
	}

	mem, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return core.Stats{}, fmt.Errorf("sample memory: %w", err)
	}

	return core.Stats{CPUPercent: cpu, MemoryBytes: mem.RSS}, nil
}
