// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// OpenAIClient calls an OpenAI-compatible chat completions endpoint through
// the go-openai SDK.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAI builds a client from cfg. httpClient may be nil.
func NewOpenAI(cfg types.LLMConfig, httpClient *http.Client) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai provider: missing API key")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Complete sends prompt as a single user message.
func (o *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	reply, err := o.create(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}, nil)
	if err != nil {
		return "", err
	}
	if reply.Text == "" {
		return "", ErrEmptyResponse
	}
	return reply.Text, nil
}

// Chat sends the history with tools enabled.
func (o *OpenAIClient) Chat(ctx context.Context, messages []types.Message, tools []Tool) (Reply, error) {
	system, turns := conversation(messages)

	var msgs []openai.ChatCompletionMessage
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range turns {
		role := openai.ChatMessageRoleUser
		if m.Role == types.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return o.create(ctx, msgs, tools)
}

func (o *OpenAIClient) create(ctx context.Context, msgs []openai.ChatCompletionMessage, tools []Tool) (Reply, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Reply{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, ErrEmptyResponse
	}

	msg := resp.Choices[0].Message
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		return Reply{
			Text:     msg.Content,
			ToolCall: parseToolCall(tc.ID, tc.Function.Name, []byte(tc.Function.Arguments)),
		}, nil
	}
	if msg.Content == "" {
		return Reply{}, ErrEmptyResponse
	}
	return Reply{Text: msg.Content}, nil
}
