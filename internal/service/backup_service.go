package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/chiwei-platform/devspace-engine/internal/port"
)

// initialBackupDelay gives the first reconcile pass and the workload caches a
// moment to settle before the startup snapshot runs.
const initialBackupDelay = time.Minute

// BackupService exports the cluster topology and pushes it to the configured
// git remote. Backups are serialized: the working copy cannot host two
// snapshots at once.
type BackupService struct {
	reconciler port.StateReconciler
	store      port.BackupStore
	interval   time.Duration
	logger     *slog.Logger

	mu sync.Mutex
}

func NewBackupService(reconciler port.StateReconciler, store port.BackupStore, interval time.Duration, logger *slog.Logger) *BackupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupService{reconciler: reconciler, store: store, interval: interval, logger: logger}
}

// Initialize prepares the local working copy of the backup remote.
func (s *BackupService) Initialize(ctx context.Context) error {
	return s.store.Initialize(ctx)
}

// RunBackup takes one snapshot end to end: export, write the declarative
// tree, commit and push. A category that failed to list is skipped with a
// warning rather than aborting the whole snapshot.
func (s *BackupService) RunBackup(ctx context.Context) (*port.BackupInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.reconciler.ExportSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("export snapshot: %w", err)
	}
	for category, ok := range snap.Categories {
		if !ok {
			s.logger.Warn("snapshot category skipped", "category", category)
		}
	}

	ts, err := s.store.Write(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("write snapshot tree: %w", err)
	}
	if err := s.store.CommitAndPush(ctx, ts); err != nil {
		return nil, fmt.Errorf("push snapshot %s: %w", ts, err)
	}

	shorts := make([]string, 0, len(snap.Projects))
	for short := range snap.Projects {
		shorts = append(shorts, short)
	}
	sort.Strings(shorts)

	info := &port.BackupInfo{
		Timestamp:    ts,
		TakenAt:      snap.Timestamp,
		ProjectCount: len(snap.Projects),
		Projects:     shorts,
	}
	s.logger.Info("topology snapshot pushed", "timestamp", ts, "projects", info.ProjectCount)
	return info, nil
}

// List enumerates known snapshots, newest first.
func (s *BackupService) List(ctx context.Context) ([]port.BackupInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.List(ctx)
}

// Restore locates a snapshot by timestamp token. Applying it is not
// supported; the store reports that explicitly.
func (s *BackupService) Restore(ctx context.Context, timestamp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Restore(ctx, timestamp)
}

// Run drives the periodic backup loop until the context is cancelled. The
// first snapshot runs shortly after startup so a fresh deployment gets a
// baseline without waiting a full interval.
func (s *BackupService) Run(ctx context.Context) {
	timer := time.NewTimer(initialBackupDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if _, err := s.RunBackup(ctx); err != nil {
			s.logger.Error("scheduled backup failed", "error", err)
		}
		timer.Reset(s.interval)
	}
}
