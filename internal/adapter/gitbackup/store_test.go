package gitbackup

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func TestCommitAndPush_NoOpWhenTopologyUnchanged(t *testing.T) {
	requireGit(t)
	ctx := context.Background()

	remote := t.TempDir()
	runGit(t, remote, "init", "--bare", ".")

	work := filepath.Join(t.TempDir(), "work")
	store := NewStore(Config{RepoURL: remote, Branch: "main", WorkDir: work})
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	snap := sampleSnapshot(time.Unix(1700000000, 0), "demo")
	ts, err := store.Write(ctx, snap)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.CommitAndPush(ctx, ts); err != nil {
		t.Fatalf("first push: %v", err)
	}

	// Identical topology again: nothing staged, no second commit.
	if _, err := store.Write(ctx, snap); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := store.CommitAndPush(ctx, ts); err != nil {
		t.Fatalf("second push: %v", err)
	}

	if got := runGit(t, work, "rev-list", "--count", "HEAD"); got != "1" {
		t.Errorf("commits = %s, want exactly 1", got)
	}
	if got := runGit(t, remote, "rev-list", "--count", "main"); got != "1" {
		t.Errorf("remote commits = %s, want exactly 1", got)
	}

	// A changed topology produces a second commit.
	snap2 := sampleSnapshot(time.Unix(1700003600, 0), "demo", "extra")
	ts2, err := store.Write(ctx, snap2)
	if err != nil {
		t.Fatalf("write changed: %v", err)
	}
	if err := store.CommitAndPush(ctx, ts2); err != nil {
		t.Fatalf("push changed: %v", err)
	}
	if got := runGit(t, remote, "rev-list", "--count", "main"); got != "2" {
		t.Errorf("remote commits after change = %s, want 2", got)
	}
}

func TestInitialize_ReusesExistingWorkingCopy(t *testing.T) {
	requireGit(t)
	ctx := context.Background()

	remote := t.TempDir()
	runGit(t, remote, "init", "--bare", ".")

	work := filepath.Join(t.TempDir(), "work")
	store := NewStore(Config{RepoURL: remote, Branch: "main", WorkDir: work})
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("first initialize: %v", err)
	}

	snap := sampleSnapshot(time.Unix(1700000000, 0), "demo")
	ts, err := store.Write(ctx, snap)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.CommitAndPush(ctx, ts); err != nil {
		t.Fatalf("push: %v", err)
	}

	// A second store over the same directory pulls instead of re-cloning.
	again := NewStore(Config{RepoURL: remote, Branch: "main", WorkDir: work})
	if err := again.Initialize(ctx); err != nil {
		t.Fatalf("second initialize: %v", err)
	}

	infos, err := again.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Timestamp != ts {
		t.Errorf("backups = %+v, want one with timestamp %s", infos, ts)
	}
}
