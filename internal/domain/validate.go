package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// k8sNameRegex matches safe K8s resource names: starts with a lowercase
// letter, lowercase alphanumerics and hyphens only. Kept short of the 63-char
// limit because every child object name appends a suffix to the shortName.
var k8sNameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{0,44}[a-z0-9]$`)

// ValidateShortName checks that a name is safe to use as the prefix of every
// derived K8s resource name.
func ValidateShortName(name string) error {
	if !k8sNameRegex.MatchString(name) {
		return fmt.Errorf("%w: short name %q is not a valid resource name prefix", ErrInvalidInput, name)
	}
	return nil
}

// ValidateGitRepo accepts https://, git://, ssh:// and scp-style git@host:path
// repository addresses.
func ValidateGitRepo(repo string) error {
	if repo == "" {
		return fmt.Errorf("%w: git_repo is required", ErrInvalidInput)
	}
	if strings.HasPrefix(repo, "https://") ||
		strings.HasPrefix(repo, "git://") ||
		strings.HasPrefix(repo, "ssh://") ||
		strings.HasPrefix(repo, "git@") {
		return nil
	}
	return fmt.Errorf("%w: git_repo %q must use https://, git://, ssh:// or git@host form", ErrInvalidInput, repo)
}

var slugCleanRegex = regexp.MustCompile(`[^a-z0-9-]+`)

// DeriveShortName returns the explicit short name when given, otherwise a
// slug derived from the repository URL's final path segment, lower-cased with
// the .git suffix stripped.
func DeriveShortName(explicit, repoURL string) (string, error) {
	name := explicit
	if name == "" {
		seg := repoURL
		if i := strings.LastIndexAny(seg, "/:"); i >= 0 {
			seg = seg[i+1:]
		}
		seg = strings.ToLower(seg)
		seg = strings.TrimSuffix(seg, ".git")
		name = slugCleanRegex.ReplaceAllString(seg, "-")
		name = strings.Trim(name, "-")
	}
	if err := ValidateShortName(name); err != nil {
		return "", err
	}
	return name, nil
}
