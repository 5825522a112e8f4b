package port

import "context"

// AgentClient talks to the per-workspace control endpoint. The engine only
// needs "POST text, get acknowledgement" and a liveness check, not the full
// agent schema.
type AgentClient interface {
	SendMessage(ctx context.Context, baseURL, content string) (string, error)
	Status(ctx context.Context, baseURL string) error
}
