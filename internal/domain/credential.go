package domain

import "time"

// GitProvider tags a credential with the hosting provider so the backup store
// can pick the right token-embedding scheme.
type GitProvider string

const (
	ProviderGitHub    GitProvider = "github"
	ProviderGitLab    GitProvider = "gitlab"
	ProviderBitbucket GitProvider = "bitbucket"
	ProviderGeneric   GitProvider = "generic"
)

// GitCredential is a named secret bundle for repository access.
// A credential cannot be deleted while any project references it by name.
type GitCredential struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Provider      GitProvider `json:"provider"`
	Token         string      `json:"token,omitempty"`
	SSHPrivateKey string      `json:"ssh_private_key,omitempty"`
	SSHPublicKey  string      `json:"ssh_public_key,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Redacted returns a copy safe for listing: secret material stripped.
func (c *GitCredential) Redacted() *GitCredential {
	out := *c
	out.Token = ""
	out.SSHPrivateKey = ""
	return &out
}
