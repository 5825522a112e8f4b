package domain

import "time"

// ProjectStatus is the coarse lifecycle state of a workspace.
type ProjectStatus string

const (
	StatusCreating ProjectStatus = "creating"
	StatusRunning  ProjectStatus = "running"
	StatusStopped  ProjectStatus = "stopped"
	StatusError    ProjectStatus = "error"
	StatusDeleting ProjectStatus = "deleting"
)

// GitAuthMethod is the auth scheme for a project's source repository.
type GitAuthMethod string

const (
	GitAuthNone   GitAuthMethod = "none"
	GitAuthToken  GitAuthMethod = "token"
	GitAuthSSHKey GitAuthMethod = "ssh-key"
)

// ProjectSecrets holds write-only secret material. It is handed to the
// translator at create/update time and must never round-trip back out of the
// cluster: the reconciler zeroes these fields and every serialization boundary
// applies RedactProject first.
type ProjectSecrets struct {
	AnthropicAPIKey    string `json:"anthropic_api_key,omitempty"`
	CodeServerPassword string `json:"code_server_password,omitempty"`
	JiraAPIToken       string `json:"jira_api_token,omitempty"`
}

// DeploymentStatus is the last observed workload health, derived from the
// StatefulSet replica counters.
type DeploymentStatus struct {
	Phase       ProjectStatus `json:"phase"`
	Message     string        `json:"message,omitempty"`
	LastUpdated time.Time     `json:"last_updated"`
}

// AccessURLs are the derived per-workspace entry points.
type AccessURLs struct {
	IDE       string `json:"ide,omitempty"`
	AgentAPI  string `json:"agent_api,omitempty"`
	DevServer string `json:"dev_server,omitempty"`
}

// Project represents one tenant's isolated development workspace.
// ShortName is immutable after creation and is the sole join key between the
// in-memory directory and the live cluster objects.
type Project struct {
	ID            string        `json:"id"`
	ShortName     string        `json:"short_name"`
	DisplayName   string        `json:"display_name,omitempty"`
	GitRepo       string        `json:"git_repo"`
	GitAuth       GitAuthMethod `json:"git_auth"`
	GitCredential string        `json:"git_credential,omitempty"`

	CPURequest    string `json:"cpu_request,omitempty"`
	MemoryRequest string `json:"memory_request,omitempty"`
	StorageSize   string `json:"storage_size,omitempty"`
	StorageClass  string `json:"storage_class,omitempty"`

	JiraProjectKeys []string `json:"jira_project_keys,omitempty"`
	JiraBaseURL     string   `json:"jira_base_url,omitempty"`

	Secrets ProjectSecrets `json:"secrets,omitempty"`

	PortBase   int              `json:"port_base,omitempty"`
	Status     ProjectStatus    `json:"status"`
	Deployment DeploymentStatus `json:"deployment"`
	URLs       AccessURLs       `json:"urls"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Child resource names are all derived by prefixing ShortName, so the
// reconciler can rejoin them without any durable primary key.

func (p *Project) ConfigName() string   { return p.ShortName + "-config" }
func (p *Project) ServiceName() string  { return p.ShortName + "-service" }
func (p *Project) WorkloadName() string { return p.ShortName + "-workspace" }
