package port

import (
	"context"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
)

// CredentialStore persists git credentials. The cluster is the only durable
// store, so the reference implementation keeps them as labelled Secrets in
// the control namespace.
type CredentialStore interface {
	Save(ctx context.Context, cred *domain.GitCredential) error
	Get(ctx context.Context, name string) (*domain.GitCredential, error)
	List(ctx context.Context) ([]*domain.GitCredential, error)
	Delete(ctx context.Context, name string) error
}
