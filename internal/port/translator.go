package port

import (
	"context"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
)

// WorkspaceTranslator maps a project's declared configuration onto concrete
// cluster objects and issues idempotent mutations. The object-mapping strategy
// (StatefulSet today) is swappable without touching the orchestrator.
type WorkspaceTranslator interface {
	// Create provisions the configuration, network and workload objects in
	// that order. An object that already exists counts as success.
	Create(ctx context.Context, project *domain.Project) error

	// Update patches only the configuration object's mutable fields.
	// Structural workload changes require delete + recreate.
	Update(ctx context.Context, project *domain.Project) error

	// Delete removes workload, network and configuration objects, each
	// best-effort: missing objects are already satisfied. Durable storage
	// is retained.
	Delete(ctx context.Context, project *domain.Project) error

	// Status derives coarse health from the workload's replica counters.
	Status(ctx context.Context, project *domain.Project) (domain.DeploymentStatus, error)

	// Scale patches the workload replica count only.
	Scale(ctx context.Context, project *domain.Project, replicas int32) error

	// AccessURLs derives the workspace entry points for a project. Pure;
	// no cluster round-trip.
	AccessURLs(project *domain.Project) domain.AccessURLs
}
