// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// DBPool is the subset of *pgxpool.Pool the store uses, so tests can pass
// a pgxmock pool.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore keeps snapshots as JSONB rows.
type PostgresStore struct {
	pool  DBPool
	table string
}

// NewPostgresStore connects to dsn and creates the schema.
func NewPostgresStore(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	s := NewPostgresStoreWithPool(pool, table)
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreWithPool wraps an existing pool.
func NewPostgresStoreWithPool(pool DBPool, table string) *PostgresStore {
	if table == "" {
		table = defaultTable
	}
	return &PostgresStore{pool: pool, table: table}
}

// InitSchema creates the snapshot and lease tables if they do not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (thread_id TEXT PRIMARY KEY, state JSONB NOT NULL, version INTEGER NOT NULL, updated_at TIMESTAMPTZ NOT NULL)`, s.table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_locks (thread_id TEXT PRIMARY KEY, token TEXT NOT NULL, expires_at TIMESTAMPTZ NOT NULL)`, s.table),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Load reads the snapshot of threadID.
func (s *PostgresStore) Load(ctx context.Context, threadID string) (*types.ConversationState, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT state FROM %s WHERE thread_id = $1`, s.table), threadID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", threadID, err)
	}
	return decode(data)
}

// Save upserts the snapshot.
func (s *PostgresStore) Save(ctx context.Context, state *types.ConversationState) error {
	data, err := encode(state)
	if err != nil {
		return err
	}
	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	query := fmt.Sprintf(`INSERT INTO %s (thread_id, state, version, updated_at) VALUES ($1, $2, $3, $4) ON CONFLICT (thread_id) DO UPDATE SET state = EXCLUDED.state, version = EXCLUDED.version, updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.pool.Exec(ctx, query, state.ThreadID, data, state.Version, updated); err != nil {
		return fmt.Errorf("saving thread %s: %w", state.ThreadID, err)
	}
	return nil
}

// Delete removes the snapshot of threadID.
func (s *PostgresStore) Delete(ctx context.Context, threadID string) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE thread_id = $1`, s.table), threadID)
	if err != nil {
		return fmt.Errorf("deleting thread %s: %w", threadID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all thread ids.
func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT thread_id FROM %s ORDER BY thread_id`, s.table))
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning thread id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// PostgresLocker holds per-thread leases in the <table>_locks table, so
// every process using the database sees them. A lease that outlives TTL may
// be taken over.
type PostgresLocker struct {
	pool  DBPool
	table string
	// TTL bounds how long a lease survives its holder.
	TTL time.Duration
	// RetryInterval is the wait between acquisition attempts.
	RetryInterval time.Duration

	now func() time.Time
}

// Locker returns a lease locker over the store's pool.
func (s *PostgresStore) Locker() *PostgresLocker {
	return &PostgresLocker{
		pool:          s.pool,
		table:         s.table + "_locks",
		TTL:           defaultLeaseTTL,
		RetryInterval: defaultRetryInterval,
		now:           time.Now,
	}
}

// Lock inserts the lease row for threadID, or takes over an expired one.
func (l *PostgresLocker) Lock(ctx context.Context, threadID string) (func(), error) {
	token := uuid.NewString()
	query := fmt.Sprintf(`INSERT INTO %[1]s (thread_id, token, expires_at) VALUES ($1, $2, $3) ON CONFLICT (thread_id) DO UPDATE SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at WHERE %[1]s.expires_at < $4`, l.table)

	err := pollLock(ctx, l.RetryInterval, func(ctx context.Context) (bool, error) {
		now := l.now()
		tag, err := l.pool.Exec(ctx, query, threadID, token, now.Add(l.TTL), now)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() == 1, nil
	})
	if err != nil {
		return nil, fmt.Errorf("acquiring lock for thread %s: %w", threadID, err)
	}

	return releaseOnce(func(ctx context.Context) {
		l.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE thread_id = $1 AND token = $2`, l.table), threadID, token)
	}), nil
}
