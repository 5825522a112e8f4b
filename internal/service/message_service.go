package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
	"github.com/chiwei-platform/devspace-engine/internal/port"
)

// MessageService routes text payloads to a workspace's in-cluster agent
// endpoint.
type MessageService struct {
	projects *ProjectService
	agent    port.AgentClient
	logger   *slog.Logger
}

func NewMessageService(projects *ProjectService, agent port.AgentClient, logger *slog.Logger) *MessageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageService{projects: projects, agent: agent, logger: logger}
}

// Send delivers a message to the project's agent and returns its
// acknowledgement.
func (s *MessageService) Send(ctx context.Context, id, content string) (string, error) {
	if content == "" {
		return "", fmt.Errorf("%w: message content is required", domain.ErrInvalidInput)
	}
	p, err := s.projects.Get(id)
	if err != nil {
		return "", err
	}
	if p.URLs.AgentAPI == "" {
		return "", fmt.Errorf("%w: project %s has no agent endpoint", domain.ErrInvalidInput, p.ShortName)
	}

	ack, err := s.agent.SendMessage(ctx, p.URLs.AgentAPI, content)
	if err != nil {
		return "", fmt.Errorf("deliver message to %s: %w", p.ShortName, err)
	}
	s.logger.Info("message delivered", "project", p.ShortName, "ack", ack)
	return ack, nil
}

// AgentStatus checks the liveness of the project's agent endpoint.
func (s *MessageService) AgentStatus(ctx context.Context, id string) error {
	p, err := s.projects.Get(id)
	if err != nil {
		return err
	}
	if p.URLs.AgentAPI == "" {
		return fmt.Errorf("%w: project %s has no agent endpoint", domain.ErrInvalidInput, p.ShortName)
	}
	return s.agent.Status(ctx, p.URLs.AgentAPI)
}
