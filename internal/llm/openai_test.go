// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// chatRequest captures the fields of a chat completion request the tests
// look at.
type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Tools []struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	} `json:"tools"`
}

func openAITestServer(t *testing.T, status int, body string, got *chatRequest) *OpenAIClient {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)

	c, err := NewOpenAI(types.LLMConfig{
		APIKey:  "test-key",
		Model:   "llama-3.3-70b-versatile",
		BaseURL: ts.URL + "/v1",
	}, ts.Client())
	require.NoError(t, err)
	return c
}

func TestOpenAIChatToolCall(t *testing.T) {
	const body = `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{
					"id": "call_abc",
					"type": "function",
					"function": {"name": "search_papers", "arguments": "{\"query\":\"protein folding\"}"}
				}]
			}
		}]
	}`
	var got chatRequest
	c := openAITestServer(t, http.StatusOK, body, &got)

	reply, err := c.Chat(context.Background(), []types.Message{
		{Role: types.RoleSystem, Content: "You are a research assistant."},
		{Role: types.RoleHuman, Content: "Recent work on protein folding?"},
	}, []Tool{SearchPapersTool})
	require.NoError(t, err)
	require.True(t, reply.WantsSearch())
	assert.Equal(t, "protein folding", reply.ToolCall.Query)

	assert.Equal(t, "llama-3.3-70b-versatile", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "function", got.Tools[0].Type)
	assert.Equal(t, SearchPapersToolName, got.Tools[0].Function.Name)
}

func TestOpenAIComplete(t *testing.T) {
	const body = `{"choices":[{"index":0,"message":{"role":"assistant","content":"1. Small sample size."}}]}`
	var got chatRequest
	c := openAITestServer(t, http.StatusOK, body, &got)

	text, err := c.Complete(context.Background(), "find gaps")
	require.NoError(t, err)
	assert.Equal(t, "1. Small sample size.", text)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "find gaps", got.Messages[0].Content)
	assert.Empty(t, got.Tools)
}

func TestOpenAIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":""}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := openAITestServer(t, tt.status, tt.body, nil)
			_, err := c.Chat(context.Background(), []types.Message{{Role: types.RoleHuman, Content: "hi"}}, nil)
			require.Error(t, err)
		})
	}
}
