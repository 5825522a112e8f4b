package gitbackup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
	"github.com/chiwei-platform/devspace-engine/internal/port"
)

var _ port.BackupStore = (*Store)(nil)

type Config struct {
	RepoURL    string
	Branch     string
	Auth       string // none | token | ssh-key
	Token      string
	SSHKey     string // inline private key material
	SSHKeyPath string // mounted private key file
	WorkDir    string
}

// Store keeps a local working copy of the backup remote and drives the git
// CLI against it. All operations run with interactive prompting disabled.
type Store struct {
	cfg        Config
	remoteURL  string
	sshCommand string
}

func NewStore(cfg Config) *Store {
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	return &Store{cfg: cfg, remoteURL: cfg.RepoURL}
}

// Initialize materializes auth and ensures the working copy exists: a fresh
// clone the first time, a pull afterwards.
func (s *Store) Initialize(ctx context.Context) error {
	if s.cfg.RepoURL == "" {
		return fmt.Errorf("%w: backup repo URL is not configured", domain.ErrInvalidInput)
	}

	switch s.cfg.Auth {
	case "", "none":
	case "token":
		remote, err := tokenRemoteURL(s.cfg.RepoURL, s.cfg.Token)
		if err != nil {
			return err
		}
		s.remoteURL = remote
	case "ssh-key":
		sshCmd, err := materializeSSHKey(s.cfg.WorkDir, s.cfg.SSHKey, s.cfg.SSHKeyPath)
		if err != nil {
			return err
		}
		s.sshCommand = sshCmd
	default:
		return fmt.Errorf("%w: unknown backup auth method %q", domain.ErrInvalidInput, s.cfg.Auth)
	}

	if _, err := os.Stat(filepath.Join(s.cfg.WorkDir, ".git")); err == nil {
		slog.Info("backup working copy exists, pulling latest", "dir", s.cfg.WorkDir)
		if _, err := s.git(ctx, "pull", "--ff-only", "origin", s.cfg.Branch); err != nil {
			return fmt.Errorf("%w: pull backup remote: %v", domain.ErrTransient, err)
		}
		return nil
	}

	if err := os.MkdirAll(s.cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create backup work dir: %w", err)
	}
	slog.Info("cloning backup remote", "dir", s.cfg.WorkDir, "branch", s.cfg.Branch)
	if _, err := s.git(ctx, "clone", s.remoteURL, "."); err != nil {
		return fmt.Errorf("%w: clone backup remote: %v", domain.ErrTransient, err)
	}
	// The branch may not exist yet on a fresh remote.
	if _, err := s.git(ctx, "checkout", s.cfg.Branch); err != nil {
		if _, err := s.git(ctx, "checkout", "-b", s.cfg.Branch); err != nil {
			return fmt.Errorf("checkout backup branch: %w", err)
		}
	}
	if _, err := s.git(ctx, "config", "user.name", "devspace-engine"); err != nil {
		return err
	}
	if _, err := s.git(ctx, "config", "user.email", "devspace-engine@chiwei.local"); err != nil {
		return err
	}
	return nil
}

// Write serializes the snapshot into the working copy and returns its
// timestamp token.
func (s *Store) Write(_ context.Context, snap *domain.Snapshot) (string, error) {
	return writeTree(s.cfg.WorkDir, snap)
}

// CommitAndPush stages the whole tree and pushes one commit for the snapshot.
// An unchanged topology stages nothing, which is a no-op rather than an empty
// commit or an error.
func (s *Store) CommitAndPush(ctx context.Context, timestamp string) error {
	if _, err := s.git(ctx, "add", "-A"); err != nil {
		return err
	}

	staged, err := s.hasStagedChanges(ctx)
	if err != nil {
		return err
	}
	if !staged {
		slog.Info("topology unchanged since last backup, skipping commit", "timestamp", timestamp)
		return nil
	}

	if _, err := s.git(ctx, "commit", "-m", fmt.Sprintf("topology snapshot %s", timestamp)); err != nil {
		return err
	}
	if _, err := s.git(ctx, "push", "origin", s.cfg.Branch); err != nil {
		return fmt.Errorf("%w: push backup: %v", domain.ErrTransient, err)
	}
	slog.Info("backup pushed", "timestamp", timestamp, "branch", s.cfg.Branch)
	return nil
}

// hasStagedChanges uses `git diff --cached --quiet`, which exits 1 exactly
// when something is staged.
func (s *Store) hasStagedChanges(ctx context.Context) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--cached", "--quiet")
	cmd.Dir = s.cfg.WorkDir
	cmd.Env = s.env()
	err := cmd.Run()
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, fmt.Errorf("git diff --cached: %w", err)
}

// List pulls latest best-effort, then enumerates local snapshot manifests
// newest first.
func (s *Store) List(ctx context.Context) ([]port.BackupInfo, error) {
	if _, err := s.git(ctx, "pull", "--ff-only", "origin", s.cfg.Branch); err != nil {
		slog.Warn("pull before listing backups failed, listing local state", "error", err)
	}
	return enumerateManifests(s.cfg.WorkDir)
}

// Restore locates the snapshot and reports that applying it onto a live
// cluster is not performed. Replay needs a conflict policy against existing
// same-named objects, which this design deliberately leaves undecided.
func (s *Store) Restore(_ context.Context, timestamp string) error {
	path := filepath.Join(s.cfg.WorkDir, manifestPrefix+timestamp+".yaml")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("snapshot %s: %w", timestamp, domain.ErrBackupNotFound)
	}
	return fmt.Errorf("restore of snapshot %s: applying snapshots onto the cluster is %w", timestamp, domain.ErrUnimplemented)
}

func (s *Store) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = s.cfg.WorkDir
	cmd.Env = s.env()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func (s *Store) env() []string {
	env := append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if s.sshCommand != "" {
		env = append(env, "GIT_SSH_COMMAND="+s.sshCommand)
	}
	return env
}
