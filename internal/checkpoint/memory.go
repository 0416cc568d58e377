// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"context"
	"slices"
	"sync"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// MemoryStore keeps snapshots in process memory as encoded JSON, so loads
// never alias stored state. Resume works only within the same process.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, threadID string) (*types.ConversationState, error) {
	m.mu.RLock()
	data, ok := m.threads[threadID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode(data)
}

func (m *MemoryStore) Save(_ context.Context, state *types.ConversationState) error {
	data, err := encode(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.threads[state.ThreadID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[threadID]; !ok {
		return ErrNotFound
	}
	delete(m.threads, threadID)
	return nil
}

func (m *MemoryStore) List(context.Context) ([]string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.threads))
	for id := range m.threads {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	slices.Sort(ids)
	return ids, nil
}

func (m *MemoryStore) Close() error { return nil }
