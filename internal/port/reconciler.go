package port

import (
	"context"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
)

// StateReconciler bridges what the cluster actually contains and what the
// orchestrator believes exists. Authority always flows from ReconcileAll;
// the persisted mirror is diagnostics only.
type StateReconciler interface {
	// ReconcileAll rebuilds the project directory from live cluster objects,
	// keyed by project ID, with all secret fields zeroed. Must run once at
	// process start before any request is served.
	ReconcileAll(ctx context.Context) (map[string]*domain.Project, error)

	// Persist writes a redacted serialization of the directory to the state
	// mirror object.
	Persist(ctx context.Context, directory map[string]*domain.Project) error

	// Remove drops one project from the state mirror.
	Remove(ctx context.Context, id string) error

	// ExportSnapshot lists all control-plane and per-project objects,
	// tolerating per-category failures, with secret material redacted.
	ExportSnapshot(ctx context.Context) (*domain.Snapshot, error)

	// TailLogs returns the last lines of the most recently started running
	// pod of the project's workload; no pods means empty output, not an
	// error.
	TailLogs(ctx context.Context, project *domain.Project, lines int64) (string, error)
}
