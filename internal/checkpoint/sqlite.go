// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const defaultTable = "threads"

// SQLiteStore keeps snapshots in a local SQLite database. Separate CLI
// invocations share it, so a thread suspended by one `ask` can be resumed
// by a later `resume`.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLiteStore opens or creates the database at path and creates the
// schema if it does not exist.
func NewSQLiteStore(path, table string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if table == "" {
		table = defaultTable
	}
	s := &SQLiteStore{db: db, table: table}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			thread_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			version INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_updated_at ON %s(updated_at)`, s.table, s.table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_locks (
			thread_id TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		)`, s.table),
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Load reads the snapshot of threadID.
func (s *SQLiteStore) Load(ctx context.Context, threadID string) (*types.ConversationState, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT state FROM %s WHERE thread_id = ?`, s.table), threadID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", threadID, err)
	}
	return decode([]byte(data))
}

// Save upserts the snapshot.
func (s *SQLiteStore) Save(ctx context.Context, state *types.ConversationState) error {
	data, err := encode(state)
	if err != nil {
		return err
	}

	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (thread_id, state, version, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET state = excluded.state, version = excluded.version, updated_at = excluded.updated_at`,
		s.table),
		state.ThreadID, string(data), state.Version, updated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving thread %s: %w", state.ThreadID, err)
	}
	return nil
}

// Delete removes the snapshot of threadID.
func (s *SQLiteStore) Delete(ctx context.Context, threadID string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE thread_id = ?`, s.table), threadID)
	if err != nil {
		return fmt.Errorf("deleting thread %s: %w", threadID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting thread %s: %w", threadID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all thread ids.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT thread_id FROM %s ORDER BY thread_id`, s.table))
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

// SQLiteLocker holds per-thread leases in the <table>_locks table of the
// store's database, so every process sharing the file sees them. A lease
// that outlives TTL may be taken over.
type SQLiteLocker struct {
	db    *sql.DB
	table string
	// TTL bounds how long a lease survives its holder.
	TTL time.Duration
	// RetryInterval is the wait between acquisition attempts.
	RetryInterval time.Duration

	now func() time.Time
}

// Locker returns a lease locker over the store's database.
func (s *SQLiteStore) Locker() *SQLiteLocker {
	return &SQLiteLocker{
		db:            s.db,
		table:         s.table + "_locks",
		TTL:           defaultLeaseTTL,
		RetryInterval: defaultRetryInterval,
		now:           time.Now,
	}
}

// Lock inserts the lease row for threadID, or takes over an expired one.
func (l *SQLiteLocker) Lock(ctx context.Context, threadID string) (func(), error) {
	token := uuid.NewString()
	query := fmt.Sprintf(`INSERT INTO %[1]s (thread_id, token, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at
		WHERE %[1]s.expires_at < ?`, l.table)

	err := pollLock(ctx, l.RetryInterval, func(ctx context.Context) (bool, error) {
		now := l.now()
		res, err := l.db.ExecContext(ctx, query, threadID, token, now.Add(l.TTL).UnixNano(), now.UnixNano())
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		return n == 1, err
	})
	if err != nil {
		return nil, fmt.Errorf("acquiring lock for thread %s: %w", threadID, err)
	}

	return releaseOnce(func(ctx context.Context) {
		l.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE thread_id = ? AND token = ?`, l.table), threadID, token)
	}), nil
}
