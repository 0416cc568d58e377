// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package checkpoint persists conversation state snapshots keyed by thread
// id so a suspended research turn can be resumed by a later call, possibly
// from another process sharing the same backend.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrNotFound is returned by Load and Delete for an unknown thread.
var ErrNotFound = errors.New("thread not found")

// Store maps thread ids to conversation state snapshots. Load returns a
// copy the caller may mutate freely; Save replaces the stored snapshot.
type Store interface {
	Load(ctx context.Context, threadID string) (*types.ConversationState, error)
	Save(ctx context.Context, state *types.ConversationState) error
	Delete(ctx context.Context, threadID string) error
	// List returns stored thread ids in ascending order.
	List(ctx context.Context) ([]string, error)
	Close() error
}

func encode(state *types.ConversationState) ([]byte, error) {
	if state == nil || strings.TrimSpace(state.ThreadID) == "" {
		return nil, fmt.Errorf("saving state: missing thread id")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshaling state: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*types.ConversationState, error) {
	var state types.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshaling state: %w", err)
	}
	return &state, nil
}
