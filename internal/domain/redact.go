package domain

// RedactedValue replaces secret material at every serialization boundary.
const RedactedValue = "REDACTED"

// secretConfigKeys are the workspace ConfigMap keys that carry secret
// material. The network and workload objects never carry secrets; only the
// configuration object might, through exactly these keys.
var secretConfigKeys = map[string]bool{
	"ANTHROPIC_API_KEY":    true,
	"CODE_SERVER_PASSWORD": true,
	"JIRA_API_TOKEN":       true,
}

// RedactProject returns a copy with all secret fields zeroed. Applied before
// the persist-mirror write, the snapshot export, and the backup write; the
// reconciler also never populates these fields on reconstruction.
func RedactProject(p *Project) *Project {
	out := *p
	out.Secrets = ProjectSecrets{}
	return &out
}

// RedactConfigData replaces secret keys in workspace configuration data with
// the redaction marker. Non-secret keys pass through untouched.
func RedactConfigData(data map[string]string) map[string]string {
	if data == nil {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		if secretConfigKeys[k] && v != "" {
			out[k] = RedactedValue
			continue
		}
		out[k] = v
	}
	return out
}

// IsSecretConfigKey reports whether a configuration key carries secret
// material and must be excluded when reconstructing a project from the
// cluster.
func IsSecretConfigKey(key string) bool {
	return secretConfigKeys[key]
}
