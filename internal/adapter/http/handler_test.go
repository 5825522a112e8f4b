package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
	"github.com/chiwei-platform/devspace-engine/internal/port"
	"github.com/chiwei-platform/devspace-engine/internal/service"
)

type fakeTranslator struct {
	createErr error
}

func (t *fakeTranslator) Create(_ context.Context, _ *domain.Project) error { return t.createErr }
func (t *fakeTranslator) Update(_ context.Context, _ *domain.Project) error { return nil }
func (t *fakeTranslator) Delete(_ context.Context, _ *domain.Project) error { return nil }
func (t *fakeTranslator) Status(_ context.Context, _ *domain.Project) (domain.DeploymentStatus, error) {
	return domain.DeploymentStatus{Phase: domain.StatusRunning, LastUpdated: time.Now()}, nil
}
func (t *fakeTranslator) Scale(_ context.Context, _ *domain.Project, _ int32) error { return nil }
func (t *fakeTranslator) AccessURLs(p *domain.Project) domain.AccessURLs {
	return domain.AccessURLs{AgentAPI: fmt.Sprintf("http://%s:3284", p.ServiceName())}
}

type fakeReconciler struct{}

func (r *fakeReconciler) ReconcileAll(_ context.Context) (map[string]*domain.Project, error) {
	return map[string]*domain.Project{}, nil
}
func (r *fakeReconciler) Persist(_ context.Context, _ map[string]*domain.Project) error { return nil }
func (r *fakeReconciler) Remove(_ context.Context, _ string) error                      { return nil }
func (r *fakeReconciler) ExportSnapshot(_ context.Context) (*domain.Snapshot, error) {
	return &domain.Snapshot{
		Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Projects:   map[string]*domain.ProjectObjects{},
		Categories: map[string]bool{},
	}, nil
}
func (r *fakeReconciler) TailLogs(_ context.Context, _ *domain.Project, _ int64) (string, error) {
	return "log line\n", nil
}

type fakeCredentialStore struct {
	creds map[string]*domain.GitCredential
}

func (s *fakeCredentialStore) Save(_ context.Context, c *domain.GitCredential) error {
	s.creds[c.Name] = c
	return nil
}
func (s *fakeCredentialStore) Get(_ context.Context, name string) (*domain.GitCredential, error) {
	c, ok := s.creds[name]
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	return c, nil
}
func (s *fakeCredentialStore) List(_ context.Context) ([]*domain.GitCredential, error) {
	out := make([]*domain.GitCredential, 0, len(s.creds))
	for _, c := range s.creds {
		out = append(out, c)
	}
	return out, nil
}
func (s *fakeCredentialStore) Delete(_ context.Context, name string) error {
	delete(s.creds, name)
	return nil
}

type fakeBackupStore struct{}

func (s *fakeBackupStore) Initialize(_ context.Context) error { return nil }
func (s *fakeBackupStore) Write(_ context.Context, snap *domain.Snapshot) (string, error) {
	return snap.TimestampToken(), nil
}
func (s *fakeBackupStore) CommitAndPush(_ context.Context, _ string) error { return nil }
func (s *fakeBackupStore) List(_ context.Context) ([]port.BackupInfo, error) {
	return []port.BackupInfo{{Timestamp: "20250601-120000"}}, nil
}
func (s *fakeBackupStore) Restore(_ context.Context, _ string) error {
	return domain.ErrUnimplemented
}

type fakeAgent struct{}

func (a *fakeAgent) SendMessage(_ context.Context, _, _ string) (string, error) {
	return "accepted", nil
}
func (a *fakeAgent) Status(_ context.Context, _ string) error { return nil }

func newTestServer(t *testing.T, translator port.WorkspaceTranslator) *httptest.Server {
	t.Helper()

	projectSvc := service.NewProjectService(translator, &fakeReconciler{}, service.ProjectDefaults{
		CPURequest:    "500m",
		MemoryRequest: "1Gi",
		StorageSize:   "10Gi",
	}, nil)
	credSvc := service.NewCredentialService(&fakeCredentialStore{creds: map[string]*domain.GitCredential{}}, projectSvc, nil)
	backupSvc := service.NewBackupService(&fakeReconciler{}, &fakeBackupStore{}, time.Hour, nil)
	msgSvc := service.NewMessageService(projectSvc, &fakeAgent{}, nil)

	router := NewRouter(
		NewProjectHandler(projectSvc, msgSvc),
		NewCredentialHandler(credSvc),
		NewBackupHandler(backupSvc),
		"",
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, env
}

const createProjectBody = `{
	"git_repo": "https://github.com/acme/widget.git",
	"secrets": {"anthropic_api_key": "sk-ant-secret", "code_server_password": "hunter2"}
}`

func TestProjectLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, &fakeTranslator{})

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects", createProjectBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, env.Error)
	}
	raw, _ := json.Marshal(env.Data)
	if strings.Contains(string(raw), "sk-ant-secret") || strings.Contains(string(raw), "hunter2") {
		t.Fatalf("secret material leaked in create response: %s", raw)
	}
	var created domain.Project
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	if created.ShortName != "widget" || created.Status != domain.StatusRunning {
		t.Errorf("unexpected project: %+v", created)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects/"+created.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects/"+created.ID+"/stop", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("stop status = %d", resp.StatusCode)
	}

	resp, env = doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects/"+created.ID+"/message", `{"content":"hello"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("message status = %d: %s", resp.StatusCode, env.Error)
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/projects/"+created.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects/"+created.ID, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", resp.StatusCode)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t, &fakeTranslator{})

	// Unknown project: 404.
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown project = %d, want 404", resp.StatusCode)
	}

	// Invalid input: 400.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects", `{"git_repo":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid create = %d, want 400", resp.StatusCode)
	}

	// Duplicate short name: 409.
	if resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects", createProjectBody); resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed create = %d: %s", resp.StatusCode, env.Error)
	}
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects", createProjectBody)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", resp.StatusCode)
	}

	// Restore is unimplemented: 501.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/backups/20250601-120000/restore", "")
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("restore = %d, want 501", resp.StatusCode)
	}
}

func TestCredentialReferentialIntegrityOverHTTP(t *testing.T) {
	srv := newTestServer(t, &fakeTranslator{})

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/credentials",
		`{"name":"acme-bot","provider":"github","token":"ghp_secret"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create credential = %d: %s", resp.StatusCode, env.Error)
	}
	raw, _ := json.Marshal(env.Data)
	if strings.Contains(string(raw), "ghp_secret") {
		t.Fatalf("token leaked in response: %s", raw)
	}

	body := `{
		"git_repo": "https://github.com/acme/widget.git",
		"git_auth": "token",
		"git_credential": "acme-bot",
		"secrets": {"anthropic_api_key": "k", "code_server_password": "p"}
	}`
	if resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects", body); resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project = %d: %s", resp.StatusCode, env.Error)
	}

	resp, env = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/credentials/acme-bot", "")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("delete referenced credential = %d, want 422", resp.StatusCode)
	}
	if !strings.Contains(env.Error, "widget") {
		t.Errorf("error does not name referencing project: %s", env.Error)
	}
}

func TestBackupEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeTranslator{})

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/backups", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("trigger backup = %d: %s", resp.StatusCode, env.Error)
	}
	raw, _ := json.Marshal(env.Data)
	if !strings.Contains(string(raw), "20250601-120000") {
		t.Errorf("backup info missing timestamp: %s", raw)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/backups", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("list backups = %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeTranslator{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d", resp.StatusCode)
	}
}
