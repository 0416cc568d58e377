// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/pkg/types"
)

func TestReplyWantsSearch(t *testing.T) {
	tests := []struct {
		name  string
		reply Reply
		want  bool
	}{
		{"text only", Reply{Text: "hello"}, false},
		{"search call", Reply{ToolCall: &types.ToolCall{Name: SearchPapersToolName, Query: "gnn"}}, true},
		{"search call without query", Reply{ToolCall: &types.ToolCall{Name: SearchPapersToolName}}, true},
		{"other tool", Reply{ToolCall: &types.ToolCall{Name: "calculator"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.reply.WantsSearch())
		})
	}
}

func TestParseToolCall(t *testing.T) {
	tests := []struct {
		name      string
		arguments string
		wantQuery string
	}{
		{"well formed", `{"query":"graph neural networks"}`, "graph neural networks"},
		{"whitespace trimmed", `{"query":"  transformers  "}`, "transformers"},
		{"missing query", `{}`, ""},
		{"malformed", `{"query":`, ""},
		{"empty", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := parseToolCall("call_1", SearchPapersToolName, []byte(tt.arguments))
			require.NotNil(t, call)
			assert.Equal(t, "call_1", call.ID)
			assert.Equal(t, SearchPapersToolName, call.Name)
			assert.Equal(t, tt.wantQuery, call.Query)
		})
	}
}

func TestConversation(t *testing.T) {
	msgs := []types.Message{
		{Role: types.RoleSystem, Content: "be helpful"},
		{Role: types.RoleHuman, Content: "find papers on gnn"},
		{Role: types.RoleAssistant, ToolCall: &types.ToolCall{Name: SearchPapersToolName, Query: "gnn"}},
		{Role: types.RoleHuman, Content: "   "},
		{Role: types.RoleSystem, Content: "cite sources"},
		{Role: types.RoleAssistant, Content: "Here are three papers."},
	}

	system, turns := conversation(msgs)
	assert.Equal(t, "be helpful\n\ncite sources", system)
	require.Len(t, turns, 2)
	assert.Equal(t, types.RoleHuman, turns[0].Role)
	assert.Equal(t, "Here are three papers.", turns[1].Content)
}

func TestSearchPapersToolRequiresQuery(t *testing.T) {
	assert.Equal(t, "search_papers", SearchPapersTool.Name)
	assert.Equal(t, []string{"query"}, SearchPapersTool.Parameters["required"])
	props, ok := SearchPapersTool.Parameters["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.LLMConfig
		want    any
		wantErr string
	}{
		{
			name: "langchain default",
			cfg:  types.LLMConfig{APIKey: "k", Model: "llama-3.3-70b-versatile", BaseURL: "https://api.groq.com/openai/v1"},
			want: &LangChainClient{},
		},
		{
			name: "openai",
			cfg:  types.LLMConfig{Provider: types.ProviderOpenAI, APIKey: "k", Model: "gpt-4o-mini"},
			want: &OpenAIClient{},
		},
		{
			name: "anthropic",
			cfg:  types.LLMConfig{Provider: "Anthropic", APIKey: "k", Model: "claude-sonnet-4-5"},
			want: &AnthropicClient{},
		},
		{
			name: "wrapped in retry",
			cfg:  types.LLMConfig{Provider: types.ProviderAnthropic, APIKey: "k", MaxRetries: 2},
			want: &Retrying{},
		},
		{
			name:    "unknown provider",
			cfg:     types.LLMConfig{Provider: "ollama", APIKey: "k"},
			wantErr: "unknown llm provider",
		},
		{
			name:    "missing key",
			cfg:     types.LLMConfig{Provider: types.ProviderOpenAI},
			wantErr: "missing API key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, c)
		})
	}
}

func TestNewAnthropicDefaultsMaxTokens(t *testing.T) {
	c, err := NewAnthropic(types.LLMConfig{APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2048, c.MaxTokens)
}
