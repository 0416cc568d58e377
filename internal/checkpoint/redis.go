// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const defaultPrefix = "research-assistant:"

// RedisStore keeps snapshots under <prefix>thread:<id> and indexes thread
// ids in the set <prefix>threads.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. A zero ttl keeps threads forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) threadKey(id string) string {
	return fmt.Sprintf("%sthread:%s", s.prefix, id)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "threads"
}

// Load reads the snapshot of threadID.
func (s *RedisStore) Load(ctx context.Context, threadID string) (*types.ConversationState, error) {
	data, err := s.client.Get(ctx, s.threadKey(threadID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading thread %s from redis: %w", threadID, err)
	}
	return decode(data)
}

// Save writes the snapshot and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, state *types.ConversationState) error {
	data, err := encode(state)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.threadKey(state.ThreadID), data, s.ttl)
	pipe.SAdd(ctx, s.indexKey(), state.ThreadID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving thread %s to redis: %w", state.ThreadID, err)
	}
	return nil
}

// Delete removes the snapshot of threadID.
func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.threadKey(threadID))
	pipe.SRem(ctx, s.indexKey(), threadID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting thread %s from redis: %w", threadID, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns ids of threads whose snapshot still exists. Index entries
// of expired threads are pruned along the way.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	if len(members) == 0 {
		return []string{}, nil
	}

	keys := make([]string, len(members))
	for i, id := range members {
		keys[i] = s.threadKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetching threads: %w", err)
	}

	ids := make([]string, 0, len(members))
	var expired []any
	for i, v := range values {
		if v == nil {
			expired = append(expired, members[i])
			continue
		}
		ids = append(ids, members[i])
	}
	if len(expired) > 0 {
		s.client.SRem(ctx, s.indexKey(), expired...)
	}
	slices.Sort(ids)
	return ids, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// unlockScript deletes the lock only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every process using the same Redis.
// Locks expire after TTL so a crashed holder cannot wedge a thread.
type RedisLocker struct {
	client *redis.Client
	prefix string
	// TTL bounds how long a lock survives its holder.
	TTL time.Duration
	// RetryInterval is the wait between acquisition attempts.
	RetryInterval time.Duration
}

// NewRedisLocker returns a locker with a five minute TTL.
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisLocker{
		client:        client,
		prefix:        prefix,
		TTL:           defaultLeaseTTL,
		RetryInterval: defaultRetryInterval,
	}
}

// Lock acquires the lock for threadID with SET NX PX.
func (l *RedisLocker) Lock(ctx context.Context, threadID string) (func(), error) {
	key := fmt.Sprintf("%slock:%s", l.prefix, threadID)
	token := uuid.NewString()

	err := pollLock(ctx, l.RetryInterval, func(ctx context.Context) (bool, error) {
		return l.client.SetNX(ctx, key, token, l.TTL).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("acquiring lock for thread %s: %w", threadID, err)
	}

	return releaseOnce(func(ctx context.Context) {
		unlockScript.Run(ctx, l.client, []string{key}, token)
	}), nil
}
