// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the language model client used by the research workflow.
// Three providers are supported: an OpenAI-compatible langchaingo model
// (Groq by default), the go-openai SDK, and the Anthropic Messages API.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrEmptyResponse is returned when the model produced neither text nor a
// tool call.
var ErrEmptyResponse = errors.New("model returned an empty response")

// StatusError is a non-success HTTP status returned by a provider API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Client abstracts the model API so tests can supply a fake. Complete
// answers a single prompt; Chat answers a message history and may instead
// request one of tools.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Chat(ctx context.Context, messages []types.Message, tools []Tool) (Reply, error)
}

// Tool is a capability the model may ask the caller to invoke.
// Parameters is a JSON Schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// SearchPapersToolName names the only tool the workflow offers.
const SearchPapersToolName = "search_papers"

// SearchPapersTool lets the model request an academic paper search.
var SearchPapersTool = Tool{
	Name:        SearchPapersToolName,
	Description: "Search for academic papers on a research topic. Use this whenever the user asks about research, papers, studies, or the state of a scientific field.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query for finding relevant academic papers",
			},
		},
		"required": []string{"query"},
	},
}

// Reply is the outcome of a Chat call: either text or a tool request.
type Reply struct {
	Text     string
	ToolCall *types.ToolCall
}

// WantsSearch reports whether the model asked to run the paper search.
func (r Reply) WantsSearch() bool {
	return r.ToolCall != nil && r.ToolCall.Name == SearchPapersToolName
}

// toolArguments is the argument object of search_papers.
type toolArguments struct {
	Query string `json:"query"`
}

// parseToolCall builds a ToolCall from a provider's raw function call.
// Arguments that fail to decode leave Query empty; the workflow then falls
// back to the latest human message.
func parseToolCall(id, name string, arguments []byte) *types.ToolCall {
	call := &types.ToolCall{ID: id, Name: name}
	var args toolArguments
	if len(arguments) > 0 && json.Unmarshal(arguments, &args) == nil {
		call.Query = strings.TrimSpace(args.Query)
	}
	return call
}

// conversation splits history into the leading system instructions and the
// remaining turns. Only messages with text are kept: a recorded search
// request has no text and no tool result, and providers reject dangling
// tool calls.
func conversation(messages []types.Message) (system string, turns []types.Message) {
	var sys []string
	for _, m := range messages {
		if !m.HasText() {
			continue
		}
		if m.Role == types.RoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(sys, "\n\n"), turns
}

// New builds the client selected by cfg.Provider. When cfg.MaxRetries is
// positive the client is wrapped in Retrying.
func New(cfg types.LLMConfig) (Client, error) {
	var (
		c   Client
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", types.ProviderLangChain:
		c, err = NewLangChain(cfg)
	case types.ProviderOpenAI:
		c, err = NewOpenAI(cfg, nil)
	case types.ProviderAnthropic:
		c, err = NewAnthropic(cfg, nil)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.MaxRetries > 0 {
		c = &Retrying{Client: c, MaxRetries: cfg.MaxRetries}
	}
	return c, nil
}
