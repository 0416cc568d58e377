// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// LangChainClient drives any langchaingo model. The default configuration
// points the OpenAI-compatible model at Groq.
type LangChainClient struct {
	Model       llms.Model
	Temperature float64
	MaxTokens   int
}

// NewLangChain builds an OpenAI-compatible langchaingo model from cfg.
func NewLangChain(cfg types.LLMConfig) (*LangChainClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("langchain provider: missing API key")
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating langchain model: %w", err)
	}
	return &LangChainClient{Model: model, Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}, nil
}

func (c *LangChainClient) callOptions() []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(c.Temperature)}
	if c.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.MaxTokens))
	}
	return opts
}

// Complete sends prompt as a single human message.
func (c *LangChainClient) Complete(ctx context.Context, prompt string) (string, error) {
	reply, err := c.generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, c.callOptions())
	if err != nil {
		return "", err
	}
	if reply.Text == "" {
		return "", ErrEmptyResponse
	}
	return reply.Text, nil
}

// Chat sends the history and offers tools to the model.
func (c *LangChainClient) Chat(ctx context.Context, messages []types.Message, tools []Tool) (Reply, error) {
	system, turns := conversation(messages)

	var content []llms.MessageContent
	if system != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	for _, m := range turns {
		role := llms.ChatMessageTypeHuman
		if m.Role == types.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	opts := c.callOptions()
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(langchainTools(tools)))
	}
	return c.generate(ctx, content, opts)
}

func (c *LangChainClient) generate(ctx context.Context, content []llms.MessageContent, opts []llms.CallOption) (Reply, error) {
	resp, err := c.Model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return Reply{}, fmt.Errorf("generating content: %w", openai.MapError(err))
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Reply{}, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		return Reply{
			Text:     choice.Content,
			ToolCall: parseToolCall(tc.ID, tc.FunctionCall.Name, []byte(tc.FunctionCall.Arguments)),
		}, nil
	}
	if choice.Content == "" {
		return Reply{}, ErrEmptyResponse
	}
	return Reply{Text: choice.Content}, nil
}

func langchainTools(tools []Tool) []llms.Tool {
	out := make([]llms.Tool, len(tools))
	for i, t := range tools {
		out[i] = llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}
