package domain

import "testing"

func TestRedactProject(t *testing.T) {
	p := &Project{
		ID:        "id-1",
		ShortName: "demo",
		Secrets: ProjectSecrets{
			AnthropicAPIKey:    "sk-ant-secret",
			CodeServerPassword: "hunter2",
			JiraAPIToken:       "jira-token",
		},
	}

	got := RedactProject(p)

	if got.Secrets != (ProjectSecrets{}) {
		t.Errorf("secrets not zeroed: %+v", got.Secrets)
	}
	if got.ShortName != "demo" || got.ID != "id-1" {
		t.Errorf("non-secret fields changed: %+v", got)
	}
	// Original must be untouched.
	if p.Secrets.AnthropicAPIKey != "sk-ant-secret" {
		t.Error("RedactProject mutated its input")
	}
}

func TestRedactConfigData(t *testing.T) {
	data := map[string]string{
		"PROJECT_NAME":         "demo",
		"GIT_REPO":             "https://github.com/acme/demo.git",
		"ANTHROPIC_API_KEY":    "sk-ant-secret",
		"CODE_SERVER_PASSWORD": "hunter2",
		"JIRA_API_TOKEN":       "",
	}

	got := RedactConfigData(data)

	if got["ANTHROPIC_API_KEY"] != RedactedValue {
		t.Errorf("ANTHROPIC_API_KEY = %q, want marker", got["ANTHROPIC_API_KEY"])
	}
	if got["CODE_SERVER_PASSWORD"] != RedactedValue {
		t.Errorf("CODE_SERVER_PASSWORD = %q, want marker", got["CODE_SERVER_PASSWORD"])
	}
	// Empty secret values stay empty rather than gaining a marker.
	if got["JIRA_API_TOKEN"] != "" {
		t.Errorf("empty secret replaced: %q", got["JIRA_API_TOKEN"])
	}
	if got["PROJECT_NAME"] != "demo" || got["GIT_REPO"] != data["GIT_REPO"] {
		t.Error("non-secret keys changed")
	}
	if RedactConfigData(nil) != nil {
		t.Error("nil data should stay nil")
	}
}
