// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// flakyClient fails the first failures calls of either shape with err,
// or a generic transport error when err is nil.
type flakyClient struct {
	failures int
	calls    int
	err      error
}

func (f *flakyClient) fail() error {
	if f.err != nil {
		return f.err
	}
	return errors.New("connection reset by peer")
}

func (f *flakyClient) Complete(context.Context, string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.fail()
	}
	return "ok", nil
}

func (f *flakyClient) Chat(context.Context, []types.Message, []Tool) (Reply, error) {
	f.calls++
	if f.calls <= f.failures {
		return Reply{}, f.fail()
	}
	return Reply{Text: "ok"}, nil
}

func fastBackoff(t *testing.T) {
	t.Helper()
	old := backoffBase
	backoffBase = time.Millisecond
	t.Cleanup(func() { backoffBase = old })
}

func TestRetryingSucceedsAfterFailures(t *testing.T) {
	fastBackoff(t)

	inner := &flakyClient{failures: 2}
	r := &Retrying{Client: inner, MaxRetries: 2}

	got, err := r.Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingChatExhausts(t *testing.T) {
	fastBackoff(t)

	inner := &flakyClient{failures: 10}
	r := &Retrying{Client: inner, MaxRetries: 2}

	_, err := r.Chat(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingStopsOnCancel(t *testing.T) {
	fastBackoff(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &flakyClient{failures: 10}
	r := &Retrying{Client: inner, MaxRetries: 5}

	_, err := r.Complete(ctx, "x")
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls, "no retries after cancellation")
}

func TestRetryingOnlyRetriesTransientErrors(t *testing.T) {
	fastBackoff(t)

	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{"transport error", errors.New("connection reset by peer"), 3},
		{"rate limited", &StatusError{Provider: "Claude", StatusCode: 429}, 3},
		{"server error", fmt.Errorf("calling: %w", &StatusError{Provider: "Claude", StatusCode: 503}), 3},
		{"openai overloaded", &openai.APIError{HTTPStatusCode: 500}, 3},
		{"bad request", &StatusError{Provider: "Claude", StatusCode: 400}, 1},
		{"openai unauthorized", fmt.Errorf("OpenAI API call failed: %w", &openai.APIError{HTTPStatusCode: 401}), 1},
		{"openai request error", &openai.RequestError{HTTPStatusCode: 404}, 1},
		{"empty response", ErrEmptyResponse, 1},
		{"langchain auth", llms.NewError(llms.ErrCodeAuthentication, "openai", "Invalid or missing API key"), 1},
		{"langchain rate limit", llms.NewError(llms.ErrCodeRateLimit, "openai", "Rate limit exceeded"), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &flakyClient{failures: 10, err: tt.err}
			r := &Retrying{Client: inner, MaxRetries: 2}

			_, err := r.Chat(context.Background(), nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantCalls, inner.calls)
		})
	}
}
