// Package data provides persistence implementations for the core contracts.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/core"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/domain/model"
)

// FileSnapshotStoreOptions groups dependencies for FileSnapshotStore.
type FileSnapshotStoreOptions struct {
	Path   string       // Required: canonical snapshot file location
	Logger *slog.Logger // Optional: structured logger
}

// FileSnapshotStore persists the queue snapshot as a single JSON file.
//
// Writes are committed by serializing the full snapshot to a temporary file
// and renaming it over the canonical path; the rename is the commit point, so
// a crash mid-write leaves either the old or the new snapshot, never a
// partial one. A mutex serializes all mutations into one total order: each
// Update reads the state left by the previous write.
type FileSnapshotStore struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

var _ core.SnapshotStore = (*FileSnapshotStore)(nil)

// NewFileSnapshotStore constructs a store rooted at opts.Path, creating the
// parent directory if needed.
func NewFileSnapshotStore(opts FileSnapshotStoreOptions) (*FileSnapshotStore, error) {
	if opts.Path == "" {
		return nil, errors.New("snapshot path is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create snapshot directory: %w", err)
		}
	}

	return &FileSnapshotStore{
		path:   opts.Path,
		logger: logger.With("component", "snapshot_store"),
	}, nil
}

// Read returns the current snapshot. A missing file initializes and persists
// a default empty snapshot; an unparseable file is backed up under a distinct
// name and replaced with a default, so corruption never blocks startup.
func (s *FileSnapshotStore) Read(ctx context.Context) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(ctx)
}

// Update applies mutate to the current persisted snapshot and commits the
// result atomically. A mutator error aborts this write only; the sentinel
// core.ErrSkipUpdate aborts the write without error.
func (s *FileSnapshotStore) Update(ctx context.Context, mutate func(*model.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.readLocked(ctx)
	if err != nil {
		return err
	}

	if err := mutate(snap); err != nil {
		if errors.Is(err, core.ErrSkipUpdate) {
			return nil
		}
		s.logger.ErrorContext(ctx, "snapshot mutation failed, write aborted", "error", err)
		return fmt.Errorf("apply snapshot mutation: %w", err)
	}

	return s.writeLocked(snap)
}

func (s *FileSnapshotStore) readLocked(ctx context.Context) (*model.Snapshot, error) {
	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		snap := model.NewSnapshot()
		if werr := s.writeLocked(snap); werr != nil {
			return nil, fmt.Errorf("initialize snapshot: %w", werr)
		}
		return snap, nil
	case err != nil:
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}

	snap := model.NewSnapshot()
	if uerr := json.Unmarshal(raw, snap); uerr != nil {
		return s.recoverCorrupt(ctx, uerr)
	}
	snap.Normalize()
	return snap, nil
}

// recoverCorrupt moves the unreadable file aside and resets to a default
// snapshot. The queued work in the corrupt file is lost; the backup keeps it
// available for manual inspection.
func (s *FileSnapshotStore) recoverCorrupt(ctx context.Context, cause error) (*model.Snapshot, error) {
	backup := fmt.Sprintf("%s.bak-%d", s.path, time.Now().UnixNano())
	if err := os.Rename(s.path, backup); err != nil {
		return nil, fmt.Errorf("back up corrupt snapshot: %w", errors.Join(cause, err))
	}

	s.logger.WarnContext(ctx, "snapshot file corrupt, reset to empty",
		"path", s.path,
		"backup", backup,
		"error", cause,
	)

	snap := model.NewSnapshot()
	if err := s.writeLocked(snap); err != nil {
		return nil, fmt.Errorf("reset snapshot after corruption: %w", err)
	}
	return snap, nil
}

func (s *FileSnapshotStore) writeLocked(snap *model.Snapshot) error {
	snap.Meta = model.Meta{
		Version:     model.SnapshotVersion,
		LastWriteAt: time.Now().UTC(),
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp := fmt.Sprintf("%s.tmp-%d", s.path, os.Getpid())
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		// Best effort: don't leave the temp file behind on a failed commit.
		_ = os.Remove(tmp)
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}
