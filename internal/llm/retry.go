// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// Retrying retries transient failures of the wrapped client with
// exponential backoff. Context cancellation and permanent errors stop the
// retries immediately.
type Retrying struct {
	Client     Client
	MaxRetries int
}

// Complete calls the wrapped client's Complete with retries.
func (r *Retrying) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := r.do(ctx, func() error {
		var err error
		out, err = r.Client.Complete(ctx, prompt)
		return err
	})
	return out, err
}

// Chat calls the wrapped client's Chat with retries.
func (r *Retrying) Chat(ctx context.Context, messages []types.Message, tools []Tool) (Reply, error) {
	var out Reply
	err := r.do(ctx, func() error {
		var err error
		out, err = r.Client.Chat(ctx, messages, tools)
		return err
	})
	return out, err
}

func (r *Retrying) do(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := call()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !transient(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("after %d retries: %w", r.MaxRetries, lastErr)
}

// transient reports whether a failed call may succeed when repeated:
// rate limits, server errors and transport failures. Client errors and
// empty answers are permanent.
func transient(err error) bool {
	if errors.Is(err, ErrEmptyResponse) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var lcErr *llms.Error
	if errors.As(err, &lcErr) {
		switch lcErr.Code {
		case llms.ErrCodeUnknown, llms.ErrCodeRateLimit, llms.ErrCodeProviderUnavailable, llms.ErrCodeTimeout:
			return true
		}
		return false
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
