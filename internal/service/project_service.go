package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
	"github.com/chiwei-platform/devspace-engine/internal/port"
)

const (
	portBaseMin  = 30000
	portBaseMax  = 31000
	portBaseStep = 10

	// clusterOpTimeout bounds any single translator round-trip so a wedged
	// apiserver cannot pin an HTTP request forever.
	clusterOpTimeout = 30 * time.Second
)

// ProjectDefaults fills resource fields the caller left empty.
type ProjectDefaults struct {
	CPURequest    string
	MemoryRequest string
	StorageSize   string
	StorageClass  string
}

// ProjectService is the lifecycle orchestrator. It owns the in-memory project
// directory, serializes mutations per project, and delegates all cluster
// mutations to the translator. The directory is a cache of cluster state, not
// a database: Bootstrap rebuilds it from the cluster at every process start.
//
// A record in the directory is never mutated in place. Mutators clone the
// record, edit the clone and swap it in under the write lock; readers copy
// under the read lock. Concurrent Get/List never observe a half-applied
// mutation.
type ProjectService struct {
	translator port.WorkspaceTranslator
	reconciler port.StateReconciler
	defaults   ProjectDefaults
	logger     *slog.Logger

	mu        sync.RWMutex
	directory map[string]*domain.Project
	locks     map[string]*sync.Mutex
}

func NewProjectService(translator port.WorkspaceTranslator, reconciler port.StateReconciler, defaults ProjectDefaults, logger *slog.Logger) *ProjectService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectService{
		translator: translator,
		reconciler: reconciler,
		defaults:   defaults,
		logger:     logger,
		directory:  make(map[string]*domain.Project),
		locks:      make(map[string]*sync.Mutex),
	}
}

// Bootstrap rebuilds the directory from live cluster objects. It must complete
// before the HTTP listener starts serving.
func (s *ProjectService) Bootstrap(ctx context.Context) error {
	directory, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		return fmt.Errorf("reconcile projects: %w", err)
	}

	s.mu.Lock()
	s.directory = directory
	s.locks = make(map[string]*sync.Mutex, len(directory))
	s.mu.Unlock()

	s.logger.Info("project directory rebuilt from cluster", "projects", len(directory))
	s.persistMirror(ctx)
	return nil
}

// lockProject serializes mutations of a single project. The returned func
// releases the lock.
func (s *ProjectService) lockProject(id string) func() {
	s.mu.Lock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// CreateProjectRequest carries everything needed to provision a workspace.
// Secret material is write-only: it flows into the cluster and is never
// retained on the directory record.
type CreateProjectRequest struct {
	ShortName       string                `json:"short_name,omitempty"`
	DisplayName     string                `json:"display_name,omitempty"`
	GitRepo         string                `json:"git_repo"`
	GitAuth         domain.GitAuthMethod  `json:"git_auth,omitempty"`
	GitCredential   string                `json:"git_credential,omitempty"`
	CPURequest      string                `json:"cpu_request,omitempty"`
	MemoryRequest   string                `json:"memory_request,omitempty"`
	StorageSize     string                `json:"storage_size,omitempty"`
	StorageClass    string                `json:"storage_class,omitempty"`
	JiraProjectKeys []string              `json:"jira_project_keys,omitempty"`
	JiraBaseURL     string                `json:"jira_base_url,omitempty"`
	Secrets         domain.ProjectSecrets `json:"secrets"`
}

func (r *CreateProjectRequest) validate() error {
	if err := domain.ValidateGitRepo(r.GitRepo); err != nil {
		return err
	}
	if r.Secrets.AnthropicAPIKey == "" {
		return fmt.Errorf("%w: secrets.anthropic_api_key is required", domain.ErrInvalidInput)
	}
	if r.Secrets.CodeServerPassword == "" {
		return fmt.Errorf("%w: secrets.code_server_password is required", domain.ErrInvalidInput)
	}
	if len(r.JiraProjectKeys) > 0 && r.Secrets.JiraAPIToken == "" {
		return fmt.Errorf("%w: secrets.jira_api_token is required when jira_project_keys are set", domain.ErrInvalidInput)
	}
	return nil
}

// Create provisions a new workspace. The record is persisted whether the
// cluster mutation succeeds (status running) or fails (status error with the
// failure message), so a partially-provisioned workspace stays visible and
// deletable.
func (s *ProjectService) Create(ctx context.Context, req CreateProjectRequest) (*domain.Project, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	short, err := domain.DeriveShortName(req.ShortName, req.GitRepo)
	if err != nil {
		return nil, err
	}

	gitAuth := req.GitAuth
	if gitAuth == "" {
		gitAuth = domain.GitAuthNone
	}

	now := time.Now().UTC()
	p := &domain.Project{
		ID:              uuid.NewString(),
		ShortName:       short,
		DisplayName:     req.DisplayName,
		GitRepo:         req.GitRepo,
		GitAuth:         gitAuth,
		GitCredential:   req.GitCredential,
		CPURequest:      firstNonEmpty(req.CPURequest, s.defaults.CPURequest),
		MemoryRequest:   firstNonEmpty(req.MemoryRequest, s.defaults.MemoryRequest),
		StorageSize:     firstNonEmpty(req.StorageSize, s.defaults.StorageSize),
		StorageClass:    firstNonEmpty(req.StorageClass, s.defaults.StorageClass),
		JiraProjectKeys: req.JiraProjectKeys,
		JiraBaseURL:     req.JiraBaseURL,
		Secrets:         req.Secrets,
		Status:          domain.StatusCreating,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	p.URLs = s.translator.AccessURLs(p)

	s.mu.Lock()
	if other := s.findByShortNameLocked(short); other != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: short name %q already in use by project %s", domain.ErrAlreadyExists, short, other.ID)
	}
	base, err := s.allocatePortBaseLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	p.PortBase = base
	// Publish the pending record without secret material; the copy carrying
	// secrets stays local until the cluster call is done.
	pending := cloneProject(p)
	pending.Secrets = domain.ProjectSecrets{}
	s.directory[p.ID] = pending
	s.mu.Unlock()

	unlock := s.lockProject(p.ID)
	defer unlock()

	opCtx, cancel := context.WithTimeout(ctx, clusterOpTimeout)
	defer cancel()

	createErr := s.translator.Create(opCtx, p)
	p.Secrets = domain.ProjectSecrets{}
	p.UpdatedAt = time.Now().UTC()
	if createErr != nil {
		p.Status = domain.StatusError
		p.Deployment = domain.DeploymentStatus{
			Phase:       domain.StatusError,
			Message:     createErr.Error(),
			LastUpdated: p.UpdatedAt,
		}
		s.store(p)
		s.persistMirror(ctx)
		s.logger.Error("workspace provisioning failed", "project", short, "error", createErr)
		return nil, fmt.Errorf("provision workspace %s: %w", short, createErr)
	}

	p.Status = domain.StatusRunning
	p.Deployment = domain.DeploymentStatus{Phase: domain.StatusRunning, LastUpdated: p.UpdatedAt}
	s.store(p)
	s.persistMirror(ctx)
	s.logger.Info("workspace provisioned", "project", short, "id", p.ID, "port_base", p.PortBase)
	return p, nil
}

// UpdateProjectRequest is a partial patch: nil pointer fields keep their
// current value, empty secret fields keep the value stored in the cluster.
type UpdateProjectRequest struct {
	DisplayName     *string               `json:"display_name,omitempty"`
	GitRepo         *string               `json:"git_repo,omitempty"`
	GitCredential   *string               `json:"git_credential,omitempty"`
	JiraProjectKeys *[]string             `json:"jira_project_keys,omitempty"`
	JiraBaseURL     *string               `json:"jira_base_url,omitempty"`
	Secrets         domain.ProjectSecrets `json:"secrets,omitempty"`
}

// Update applies a partial patch to the project's mutable configuration.
// ShortName and the resource sizing are immutable; structural changes go
// through delete + recreate. The patch lands on a copy first and replaces the
// directory record only once the cluster accepted it, so a failed update
// leaves the record exactly as it was.
func (s *ProjectService) Update(ctx context.Context, id string, req UpdateProjectRequest) (*domain.Project, error) {
	unlock := s.lockProject(id)
	defer unlock()

	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if req.GitRepo != nil {
		if err := domain.ValidateGitRepo(*req.GitRepo); err != nil {
			return nil, err
		}
		p.GitRepo = *req.GitRepo
	}
	if req.DisplayName != nil {
		p.DisplayName = *req.DisplayName
	}
	if req.GitCredential != nil {
		p.GitCredential = *req.GitCredential
	}
	if req.JiraProjectKeys != nil {
		p.JiraProjectKeys = *req.JiraProjectKeys
	}
	if req.JiraBaseURL != nil {
		p.JiraBaseURL = *req.JiraBaseURL
	}
	p.Secrets = req.Secrets
	p.UpdatedAt = time.Now().UTC()

	opCtx, cancel := context.WithTimeout(ctx, clusterOpTimeout)
	defer cancel()

	updateErr := s.translator.Update(opCtx, p)
	p.Secrets = domain.ProjectSecrets{}
	if updateErr != nil {
		return nil, fmt.Errorf("update workspace %s: %w", p.ShortName, updateErr)
	}

	s.store(p)
	s.persistMirror(ctx)
	return p, nil
}

// Delete tears the workspace down and then drops the record. The record stays
// visible with status deleting while teardown runs, and with status error if
// it fails, so nothing silently disappears half-deleted.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	unlock := s.lockProject(id)
	defer unlock()

	p, err := s.Get(id)
	if err != nil {
		return err
	}

	p.Status = domain.StatusDeleting
	p.UpdatedAt = time.Now().UTC()
	s.store(p)
	s.persistMirror(ctx)

	opCtx, cancel := context.WithTimeout(ctx, clusterOpTimeout)
	defer cancel()

	if err := s.translator.Delete(opCtx, p); err != nil {
		failed := cloneProject(p)
		failed.Status = domain.StatusError
		failed.Deployment = domain.DeploymentStatus{
			Phase:       domain.StatusError,
			Message:     err.Error(),
			LastUpdated: time.Now().UTC(),
		}
		s.store(failed)
		s.persistMirror(ctx)
		return fmt.Errorf("tear down workspace %s: %w", p.ShortName, err)
	}

	s.mu.Lock()
	delete(s.directory, id)
	delete(s.locks, id)
	s.mu.Unlock()

	if err := s.reconciler.Remove(ctx, id); err != nil {
		s.logger.Warn("state mirror cleanup failed", "project", p.ShortName, "error", err)
	}
	s.logger.Info("workspace deleted", "project", p.ShortName, "id", id)
	return nil
}

// Get returns a detached copy of the directory record for a project ID.
// Callers may mutate the copy freely; the directory is untouched.
func (s *ProjectService) Get(id string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.directory[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
	}
	return cloneProject(p), nil
}

// List returns detached copies of all projects ordered by short name.
func (s *ProjectService) List() []*domain.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Project, 0, len(s.directory))
	for _, p := range s.directory {
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShortName < out[j].ShortName })
	return out
}

// RefreshStatus re-derives the project's health from the live workload and
// updates the record. A project mid-teardown keeps status deleting regardless
// of what the replica counters say.
func (s *ProjectService) RefreshStatus(ctx context.Context, id string) (*domain.Project, error) {
	unlock := s.lockProject(id)
	defer unlock()

	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, clusterOpTimeout)
	defer cancel()

	ds, err := s.translator.Status(opCtx, p)
	if err != nil {
		return nil, fmt.Errorf("workspace status %s: %w", p.ShortName, err)
	}

	p.Deployment = ds
	if p.Status != domain.StatusDeleting {
		p.Status = ds.Phase
	}
	s.store(p)
	return p, nil
}

// Logs tails the project's newest running pod.
func (s *ProjectService) Logs(ctx context.Context, id string, lines int64) (string, error) {
	p, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return s.reconciler.TailLogs(ctx, p, lines)
}

// Stop scales the workspace to zero replicas. Durable storage is retained.
func (s *ProjectService) Stop(ctx context.Context, id string) (*domain.Project, error) {
	return s.scale(ctx, id, 0, domain.StatusStopped)
}

// Start scales a stopped workspace back to one replica.
func (s *ProjectService) Start(ctx context.Context, id string) (*domain.Project, error) {
	return s.scale(ctx, id, 1, domain.StatusCreating)
}

func (s *ProjectService) scale(ctx context.Context, id string, replicas int32, status domain.ProjectStatus) (*domain.Project, error) {
	unlock := s.lockProject(id)
	defer unlock()

	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, clusterOpTimeout)
	defer cancel()

	if err := s.translator.Scale(opCtx, p, replicas); err != nil {
		return nil, fmt.Errorf("scale workspace %s: %w", p.ShortName, err)
	}
	now := time.Now().UTC()
	p.Status = status
	p.Deployment = domain.DeploymentStatus{Phase: status, LastUpdated: now}
	p.UpdatedAt = now
	s.store(p)
	s.persistMirror(ctx)
	return p, nil
}

// store publishes a record, replacing any previous version. A published
// record is read-only from then on; the next mutation swaps in a fresh clone.
func (s *ProjectService) store(p *domain.Project) {
	s.mu.Lock()
	s.directory[p.ID] = p
	s.mu.Unlock()
}

// cloneProject detaches a record from the directory so callers can read or
// edit it without a lock.
func cloneProject(p *domain.Project) *domain.Project {
	cp := *p
	cp.JiraProjectKeys = append([]string(nil), p.JiraProjectKeys...)
	return &cp
}

// referencingCredential lists the short names of projects bound to a named
// credential, for referential-integrity checks before credential deletion.
func (s *ProjectService) referencingCredential(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, p := range s.directory {
		if p.GitCredential == name {
			out = append(out, p.ShortName)
		}
	}
	sort.Strings(out)
	return out
}

// persistMirror refreshes the redacted state mirror. The mirror is diagnostics
// only, so a failed write is logged and never fails the calling operation.
func (s *ProjectService) persistMirror(ctx context.Context) {
	s.mu.RLock()
	snapshot := make(map[string]*domain.Project, len(s.directory))
	for id, p := range s.directory {
		snapshot[id] = p
	}
	s.mu.RUnlock()

	if err := s.reconciler.Persist(ctx, snapshot); err != nil {
		s.logger.Warn("state mirror write failed", "error", err)
	}
}

// allocatePortBaseLocked picks a port base no live project holds, sampling the
// [portBaseMin, portBaseMax) range in portBaseStep increments. Caller holds
// s.mu.
func (s *ProjectService) allocatePortBaseLocked() (int, error) {
	used := make(map[int]bool, len(s.directory))
	for _, p := range s.directory {
		if p.PortBase != 0 {
			used[p.PortBase] = true
		}
	}
	slots := (portBaseMax - portBaseMin) / portBaseStep
	if len(used) >= slots {
		return 0, fmt.Errorf("port base range [%d,%d) exhausted", portBaseMin, portBaseMax)
	}
	for {
		base := portBaseMin + rand.IntN(slots)*portBaseStep
		if !used[base] {
			return base, nil
		}
	}
}

func (s *ProjectService) findByShortNameLocked(short string) *domain.Project {
	for _, p := range s.directory {
		if strings.EqualFold(p.ShortName, short) {
			return p
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
