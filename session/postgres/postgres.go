// Package postgres persists sessions in PostgreSQL using pgx. Each session is
// one row holding its JSONB document.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hupe1980/shopmesh/core"
)

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Options configure the store.
type Options struct {
	Table string
}

// Store is a core.SessionStore backed by PostgreSQL.
type Store struct {
	pool  *pgxpool.Pool
	table string
	owned bool
}

// New connects to databaseURL and creates the table if missing.
func New(ctx context.Context, databaseURL string, optFns ...func(o *Options)) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	st, err := NewFromPool(ctx, pool, optFns...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	st.owned = true
	return st, nil
}

// NewFromPool wraps an existing pool and creates the table if missing.
func NewFromPool(ctx context.Context, pool *pgxpool.Pool, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Table: "chat_sessions"}
	for _, fn := range optFns {
		fn(&opts)
	}
	if !tableName.MatchString(opts.Table) {
		return nil, fmt.Errorf("invalid table name %q", opts.Table)
	}
	st := &Store{pool: pool, table: opts.Table}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`, st.table)
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return nil, fmt.Errorf("create session table: %w", err)
	}
	return st, nil
}

// Get implements core.SessionStore.
func (s *Store) Get(ctx context.Context, id string) (*core.Session, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE id = $1`, s.table), id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	var sess core.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// Put implements core.SessionStore.
func (s *Store) Put(ctx context.Context, sess *core.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	_, err = s.pool.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (id, data, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`, s.table),
		sess.ID, data, sess.Updated)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Delete implements core.SessionStore.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteIdle implements core.Sweeper.
func (s *Store) DeleteIdle(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE updated_at < $1`, s.table), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Close releases the pool when the store created it.
func (s *Store) Close() {
	if s.owned {
		s.pool.Close()
	}
}
