package gitbackup

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
	"golang.org/x/crypto/ssh"
)

// tokenRemoteURL embeds a bearer token into an HTTPS remote URL. The
// credential-insertion scheme is provider-specific; unrecognized hosts fall
// back to plain token-as-username embedding.
func tokenRemoteURL(repoURL, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: token auth configured without a token", domain.ErrInvalidInput)
	}
	u, err := url.Parse(repoURL)
	if err != nil || u.Scheme != "https" {
		return "", fmt.Errorf("%w: token auth needs an https remote, got %q", domain.ErrInvalidInput, repoURL)
	}

	host := strings.ToLower(u.Host)
	switch {
	case strings.Contains(host, "github"):
		u.User = url.User(token)
	case strings.Contains(host, "gitlab"):
		u.User = url.UserPassword("oauth2", token)
	case strings.Contains(host, "bitbucket"):
		u.User = url.UserPassword("x-token-auth", token)
	default:
		u.User = url.User(token)
	}
	return u.String(), nil
}

// materializeSSHKey validates the private key (inline material wins over a
// mounted path), writes it with restrictive permissions and returns the
// GIT_SSH_COMMAND that uses it without interactive host-key prompts.
func materializeSSHKey(workDir, inlineKey, keyPath string) (string, error) {
	var key []byte
	switch {
	case inlineKey != "":
		key = []byte(inlineKey)
	case keyPath != "":
		data, err := os.ReadFile(keyPath)
		if err != nil {
			return "", fmt.Errorf("read ssh key %s: %w", keyPath, err)
		}
		key = data
	default:
		return "", fmt.Errorf("%w: ssh auth configured without key material", domain.ErrInvalidInput)
	}

	if _, err := ssh.ParsePrivateKey(key); err != nil {
		return "", fmt.Errorf("%w: ssh key does not parse: %v", domain.ErrInvalidInput, err)
	}

	// Sibling of the working copy: the key must never sit inside the tree
	// that gets staged and pushed.
	sshDir := filepath.Clean(workDir) + "-ssh"
	if err := os.MkdirAll(sshDir, 0o700); err != nil {
		return "", fmt.Errorf("create ssh dir: %w", err)
	}
	dest := filepath.Join(sshDir, "id_backup")
	if err := os.WriteFile(dest, key, 0o600); err != nil {
		return "", fmt.Errorf("write ssh key: %w", err)
	}

	return fmt.Sprintf(
		"ssh -i %s -o IdentitiesOnly=yes -o StrictHostKeyChecking=no -o UserKnownHostsFile=/dev/null",
		dest,
	), nil
}
