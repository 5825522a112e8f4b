package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
	"github.com/chiwei-platform/devspace-engine/internal/port"
)

// CredentialService manages named git credentials. Reads always return
// redacted copies; secret material only ever flows from a create request into
// the store.
type CredentialService struct {
	store    port.CredentialStore
	projects *ProjectService
	logger   *slog.Logger
}

func NewCredentialService(store port.CredentialStore, projects *ProjectService, logger *slog.Logger) *CredentialService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialService{store: store, projects: projects, logger: logger}
}

type CreateCredentialRequest struct {
	Name          string             `json:"name"`
	Provider      domain.GitProvider `json:"provider,omitempty"`
	Token         string             `json:"token,omitempty"`
	SSHPrivateKey string             `json:"ssh_private_key,omitempty"`
	SSHPublicKey  string             `json:"ssh_public_key,omitempty"`
}

// Create stores a new credential under a unique name. The name must be a
// valid resource-name prefix because the backing secret derives its name from
// it.
func (s *CredentialService) Create(ctx context.Context, req CreateCredentialRequest) (*domain.GitCredential, error) {
	if err := domain.ValidateShortName(req.Name); err != nil {
		return nil, err
	}
	if req.Token == "" && req.SSHPrivateKey == "" {
		return nil, fmt.Errorf("%w: credential needs a token or an ssh private key", domain.ErrInvalidInput)
	}
	provider := req.Provider
	if provider == "" {
		provider = domain.ProviderGeneric
	}

	cred := &domain.GitCredential{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Provider:      provider,
		Token:         req.Token,
		SSHPrivateKey: req.SSHPrivateKey,
		SSHPublicKey:  req.SSHPublicKey,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("save credential %s: %w", req.Name, err)
	}
	s.logger.Info("git credential stored", "name", cred.Name, "provider", cred.Provider)
	return cred.Redacted(), nil
}

// Get returns one credential, redacted.
func (s *CredentialService) Get(ctx context.Context, name string) (*domain.GitCredential, error) {
	cred, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return cred.Redacted(), nil
}

// List returns all credentials, redacted.
func (s *CredentialService) List(ctx context.Context) ([]*domain.GitCredential, error) {
	creds, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.GitCredential, 0, len(creds))
	for _, c := range creds {
		out = append(out, c.Redacted())
	}
	return out, nil
}

// Delete removes a credential unless a project still references it by name;
// the error then names every referencing project.
func (s *CredentialService) Delete(ctx context.Context, name string) error {
	if refs := s.projects.referencingCredential(name); len(refs) > 0 {
		return fmt.Errorf("%w: credential %q is referenced by projects: %s",
			domain.ErrCannotDelete, name, strings.Join(refs, ", "))
	}
	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}
	s.logger.Info("git credential deleted", "name", name)
	return nil
}
