package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
	"github.com/chiwei-platform/devspace-engine/internal/port"
)

type stubBackupStore struct {
	writeErr  error
	pushErr   error
	listInfos []port.BackupInfo

	calls      []string
	written    *domain.Snapshot
	pushedTS   string
	restoredTS string
}

func (s *stubBackupStore) Initialize(_ context.Context) error {
	s.calls = append(s.calls, "initialize")
	return nil
}

func (s *stubBackupStore) Write(_ context.Context, snap *domain.Snapshot) (string, error) {
	s.calls = append(s.calls, "write")
	s.written = snap
	if s.writeErr != nil {
		return "", s.writeErr
	}
	return snap.TimestampToken(), nil
}

func (s *stubBackupStore) CommitAndPush(_ context.Context, ts string) error {
	s.calls = append(s.calls, "push")
	s.pushedTS = ts
	return s.pushErr
}

func (s *stubBackupStore) List(_ context.Context) ([]port.BackupInfo, error) {
	return s.listInfos, nil
}

func (s *stubBackupStore) Restore(_ context.Context, ts string) error {
	s.restoredTS = ts
	return domain.ErrUnimplemented
}

func backupSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Timestamp: time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
		Cluster:   domain.ClusterInfo{Namespace: "devspace"},
		Projects: map[string]*domain.ProjectObjects{
			"widget": {},
			"gadget": {},
		},
		Categories: map[string]bool{"workloads": true, "control-plane": false},
	}
}

func TestRunBackup_ExportsWritesAndPushes(t *testing.T) {
	store := &stubBackupStore{}
	reconciler := &stubReconciler{snapshot: backupSnapshot()}
	svc := NewBackupService(reconciler, store, time.Hour, nil)

	info, err := svc.RunBackup(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}

	if len(store.calls) != 2 || store.calls[0] != "write" || store.calls[1] != "push" {
		t.Errorf("call order = %v", store.calls)
	}
	if info.Timestamp != "20250601-123000" {
		t.Errorf("timestamp = %q", info.Timestamp)
	}
	if store.pushedTS != info.Timestamp {
		t.Errorf("pushed %q, reported %q", store.pushedTS, info.Timestamp)
	}
	if info.ProjectCount != 2 {
		t.Errorf("project count = %d", info.ProjectCount)
	}
	if len(info.Projects) != 2 || info.Projects[0] != "gadget" || info.Projects[1] != "widget" {
		t.Errorf("projects = %v, want sorted short names", info.Projects)
	}
}

func TestRunBackup_WriteFailureSkipsPush(t *testing.T) {
	store := &stubBackupStore{writeErr: errors.New("disk full")}
	svc := NewBackupService(&stubReconciler{snapshot: backupSnapshot()}, store, time.Hour, nil)

	if _, err := svc.RunBackup(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	for _, call := range store.calls {
		if call == "push" {
			t.Error("pushed after failed write")
		}
	}
}

func TestBackupRestore_ReportsUnimplemented(t *testing.T) {
	store := &stubBackupStore{}
	svc := NewBackupService(&stubReconciler{}, store, time.Hour, nil)

	err := svc.Restore(context.Background(), "20250601-123000")
	if !errors.Is(err, domain.ErrUnimplemented) {
		t.Errorf("expected ErrUnimplemented, got %v", err)
	}
	if store.restoredTS != "20250601-123000" {
		t.Errorf("restore not delegated: %q", store.restoredTS)
	}
}

func TestBackupRun_StopsOnContextCancel(t *testing.T) {
	svc := NewBackupService(&stubReconciler{snapshot: backupSnapshot()}, &stubBackupStore{}, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
