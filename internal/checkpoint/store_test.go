// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/pkg/types"
)

func sampleState(threadID string) *types.ConversationState {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	papers := []types.Paper{
		{ID: "W1", Title: "Graph Attention Networks", Authors: []string{"P. Veličković"}, PublishedDate: "2018-02-15", CitedByCount: 12000, RelevanceScore: 55.2},
		{ID: "W2", Title: "Semi-Supervised Classification with GCNs", Authors: []string{}, CitedByCount: 20000},
	}
	return &types.ConversationState{
		ThreadID: threadID,
		Query:    "graph neural networks",
		Messages: []types.Message{
			{Role: types.RoleHuman, Content: "What is new in graph neural networks?"},
			{Role: types.RoleAssistant, ToolCall: &types.ToolCall{ID: "call_1", Name: "search_papers", Query: "graph neural networks"}},
		},
		SearchQuery:  "graph neural networks",
		Papers:       papers,
		RankedPapers: []types.Paper{},
		Next:         types.StepAwaitCriterion,
		Pending:      true,
		Interrupt: &types.InterruptPayload{
			PapersFound: "Graph Attention Networks\nSemi-Supervised Classification with GCNs",
			Titles:      types.Titles(papers),
			Message:     "Found 2 papers. How would you like to rank them?",
			Options:     types.CriterionOptions(),
		},
		Version:   3,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// storeFactories builds every backend that runs without external services.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "threads.db"), "")
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			return NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:", 0)
		},
	}
}

func TestStoreContract(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			defer s.Close()

			_, err := s.Load(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			want := sampleState("thread-b")
			require.NoError(t, s.Save(ctx, want))
			require.NoError(t, s.Save(ctx, sampleState("thread-a")))

			got, err := s.Load(ctx, "thread-b")
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}

			// Loads are independent copies.
			got.Messages = append(got.Messages, types.Message{Role: types.RoleHuman, Content: "mutated"})
			got.Papers[0].Title = "mutated"
			again, err := s.Load(ctx, "thread-b")
			require.NoError(t, err)
			assert.Len(t, again.Messages, 2)
			assert.Equal(t, "Graph Attention Networks", again.Papers[0].Title)

			// Save replaces.
			again.Pending = false
			again.Interrupt = nil
			again.Next = types.StepDone
			again.Version = 4
			require.NoError(t, s.Save(ctx, again))
			replaced, err := s.Load(ctx, "thread-b")
			require.NoError(t, err)
			assert.False(t, replaced.Pending)
			assert.Nil(t, replaced.Interrupt)
			assert.Equal(t, 4, replaced.Version)

			ids, err := s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"thread-a", "thread-b"}, ids)

			require.NoError(t, s.Delete(ctx, "thread-a"))
			assert.ErrorIs(t, s.Delete(ctx, "thread-a"), ErrNotFound)
			_, err = s.Load(ctx, "thread-a")
			assert.ErrorIs(t, err, ErrNotFound)

			ids, err = s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"thread-b"}, ids)
		})
	}
}

func TestStoreRejectsMissingThreadID(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			err := s.Save(context.Background(), &types.ConversationState{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "missing thread id")
		})
	}
}

func TestSQLiteStoreSharedAcrossHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "threads.db")

	first, err := NewSQLiteStore(path, "")
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, sampleState("t1")))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path, "")
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Load(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, got.Pending)
	assert.Equal(t, types.StepAwaitCriterion, got.Next)
}

func TestRedisStoreKeysAndTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", time.Hour)
	defer s.Close()

	require.NoError(t, s.Save(ctx, sampleState("abc")))

	assert.True(t, mr.Exists("research-assistant:thread:abc"))
	ok, err := mr.SIsMember("research-assistant:threads", "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Hour, mr.TTL("research-assistant:thread:abc"))

	mr.FastForward(2 * time.Hour)

	_, err = s.Load(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	// Pruning the last member removes the index set entirely.
	assert.False(t, mr.Exists("research-assistant:threads"), "expired thread should be pruned from the index")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, l, err := Open(ctx, types.StoreConfig{Backend: types.StoreMemory})
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, s)
		assert.IsType(t, &KeyedMutex{}, l)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, l, err := Open(ctx, types.StoreConfig{Backend: types.StoreSQLite, Path: filepath.Join(t.TempDir(), "x.db")})
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &SQLiteStore{}, s)
		assert.IsType(t, &SQLiteLocker{}, l)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s, l, err := Open(ctx, types.StoreConfig{Backend: types.StoreRedis, RedisAddr: mr.Addr()})
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &RedisStore{}, s)
		assert.IsType(t, &RedisLocker{}, l)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		_, _, err := Open(ctx, types.StoreConfig{Backend: types.StoreRedis, RedisAddr: addr})
		require.Error(t, err)
	})

	t.Run("postgres without dsn", func(t *testing.T) {
		_, _, err := Open(ctx, types.StoreConfig{Backend: types.StorePostgres})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing dsn")
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := Open(ctx, types.StoreConfig{Backend: "etcd"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown store backend")
	})
}
