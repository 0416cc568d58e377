// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const anthropicVersion = "2023-06-01"

// AnthropicClient calls the Claude Messages API directly.
type AnthropicClient struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Client      *http.Client
}

// NewAnthropic builds a client from cfg. httpClient may be nil.
func NewAnthropic(cfg types.LLMConfig, httpClient *http.Client) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic provider: missing API key")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &AnthropicClient{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: cfg.Temperature,
		Client:      httpClient,
	}, nil
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
	Tools       []claudeTool    `json:"tools,omitempty"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type claudeResponse struct {
	Content    []claudeContent `json:"content"`
	StopReason string          `json:"stop_reason"`
}

// claudeContent is a text or tool_use block.
type claudeContent struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Complete sends prompt as a single user message.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	reply, err := c.send(ctx, claudeRequest{
		Messages: []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	if reply.Text == "" {
		return "", ErrEmptyResponse
	}
	return reply.Text, nil
}

// Chat sends the history with tools enabled. System messages travel in the
// top-level system field; consecutive turns of the same role are merged
// because the API expects alternating roles.
func (c *AnthropicClient) Chat(ctx context.Context, messages []types.Message, tools []Tool) (Reply, error) {
	system, turns := conversation(messages)

	req := claudeRequest{System: system}
	for _, m := range turns {
		role := "user"
		if m.Role == types.RoleAssistant {
			role = "assistant"
		}
		if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == role {
			req.Messages[n-1].Content += "\n\n" + m.Content
			continue
		}
		req.Messages = append(req.Messages, claudeMessage{Role: role, Content: m.Content})
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, claudeTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}
	return c.send(ctx, req)
}

func (c *AnthropicClient) send(ctx context.Context, reqBody claudeRequest) (Reply, error) {
	reqBody.Model = c.Model
	reqBody.MaxTokens = c.MaxTokens
	reqBody.Temperature = c.Temperature

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return Reply{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return Reply{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Reply{}, &StatusError{Provider: "Claude", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return Reply{}, fmt.Errorf("decoding Claude response: %w", err)
	}

	var reply Reply
	for _, block := range cResp.Content {
		switch block.Type {
		case "text":
			reply.Text += block.Text
		case "tool_use":
			if reply.ToolCall == nil {
				reply.ToolCall = parseToolCall(block.ID, block.Name, block.Input)
			}
		}
	}
	if reply.Text == "" && reply.ToolCall == nil {
		return Reply{}, ErrEmptyResponse
	}
	return reply, nil
}
