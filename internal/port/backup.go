package port

import (
	"context"
	"time"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
)

// BackupInfo summarizes one historical snapshot manifest.
type BackupInfo struct {
	Timestamp    string    `json:"timestamp" yaml:"timestamp"`
	TakenAt      time.Time `json:"taken_at" yaml:"taken_at"`
	ProjectCount int       `json:"project_count" yaml:"project_count"`
	Projects     []string  `json:"projects" yaml:"projects"`
}

// BackupStore persists topology snapshots to a version-controlled remote.
type BackupStore interface {
	// Initialize ensures a local working copy of the backup remote exists,
	// materializing auth (token-embedded URL or SSH key) as configured.
	Initialize(ctx context.Context) error

	// Write serializes the snapshot into the working copy's declarative
	// directory layout and returns the snapshot's timestamp token.
	Write(ctx context.Context, snapshot *domain.Snapshot) (string, error)

	// CommitAndPush stages everything and pushes one commit for the given
	// timestamp. An unchanged topology is a no-op, never an empty commit.
	CommitAndPush(ctx context.Context, timestamp string) error

	// List enumerates known snapshot manifests, newest first.
	List(ctx context.Context) ([]BackupInfo, error)

	// Restore locates the target snapshot. Applying it back onto a live
	// cluster is not performed; implementations report ErrUnimplemented.
	Restore(ctx context.Context, timestamp string) error
}
