package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
	"github.com/chiwei-platform/devspace-engine/internal/port"
)

var _ port.AgentClient = (*Client)(nil)

// Client talks to a workspace's agent control endpoint. The engine only uses
// two methods: deliver a text payload and check liveness.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type messageRequest struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

type messageResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// SendMessage posts a user payload to the agent and returns its
// acknowledgement.
func (c *Client) SendMessage(ctx context.Context, baseURL, content string) (string, error) {
	body, err := json.Marshal(messageRequest{Content: content, Type: "user"})
	if err != nil {
		return "", fmt.Errorf("agentapi: marshal message: %w", err)
	}

	reqURL := strings.TrimRight(baseURL, "/") + "/message"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("agentapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("agentapi: %w: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("agentapi: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var ack messageResponse
	if err := json.Unmarshal(raw, &ack); err != nil {
		// Some agent builds answer with a bare string; pass it through.
		return strings.TrimSpace(string(raw)), nil
	}
	if ack.Message != "" {
		return ack.Message, nil
	}
	return ack.Status, nil
}

// Status checks the agent's liveness endpoint; any 2xx means alive.
func (c *Client) Status(ctx context.Context, baseURL string) error {
	reqURL := strings.TrimRight(baseURL, "/") + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("agentapi: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("agentapi: %w: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("agentapi: agent unhealthy, status %d", resp.StatusCode)
	}
	return nil
}
