// Package pgvector implements core.VectorIndex and core.VectorWriter on
// PostgreSQL with the pgvector extension, using pgx.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
)

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Options configure the index.
type Options struct {
	Table string
}

// Index stores products in a single table (id, metadata jsonb, embedding vector).
type Index struct {
	pool  *pgxpool.Pool
	table string
}

// New connects to databaseURL.
func New(ctx context.Context, databaseURL string, optFns ...func(o *Options)) (*Index, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	idx, err := NewFromPool(pool, optFns...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return idx, nil
}

// NewFromPool wraps an existing pool.
func NewFromPool(pool *pgxpool.Pool, optFns ...func(o *Options)) (*Index, error) {
	opts := Options{Table: "products"}
	for _, fn := range optFns {
		fn(&opts)
	}
	if !tableName.MatchString(opts.Table) {
		return nil, fmt.Errorf("invalid table name %q", opts.Table)
	}
	return &Index{pool: pool, table: opts.Table}, nil
}

// Init creates the extension, table and HNSW index.
func (s *Index) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector(%d) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`, s.table, dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING hnsw (embedding vector_cosine_ops);`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// Upsert inserts or replaces documents in one batch.
func (s *Index) Upsert(ctx context.Context, docs []core.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	batch := &pgx.Batch{}
	query := fmt.Sprintf(`INSERT INTO %s (id, content, metadata, embedding, updated_at)
		VALUES ($1, $2, $3::jsonb, $4::vector, now())
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding, updated_at = now()`, s.table)
	for i, d := range docs {
		md, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %q: %w", d.ID, err)
		}
		batch.Queue(query, d.ID, d.Text, string(md), VectorLiteral(vectors[i]))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert products: %w", err)
	}
	return nil
}

// Search implements core.VectorIndex using cosine distance.
func (s *Index) Search(ctx context.Context, vector []float32, k int) ([]core.Candidate, error) {
	if k <= 0 {
		k = 5
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, metadata, embedding::text, 1 - (embedding <=> $1::vector) AS score
		 FROM %s ORDER BY embedding <=> $1::vector LIMIT $2`, s.table),
		VectorLiteral(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	out := make([]core.Candidate, 0, k)
	for rows.Next() {
		var (
			id    string
			raw   []byte
			emb   string
			score float64
		)
		if err := rows.Scan(&id, &raw, &emb, &score); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		md := map[string]any{}
		if err := json.Unmarshal(raw, &md); err != nil {
			return nil, fmt.Errorf("decode metadata for %q: %w", id, err)
		}
		vec, err := ParseVector(emb)
		if err != nil {
			return nil, err
		}
		out = append(out, catalog.CandidateFromMetadata(id, score, md, vec))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return out, nil
}

// Count returns the number of stored products.
func (s *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// Close releases the pool.
func (s *Index) Close() error {
	s.pool.Close()
	return nil
}

// VectorLiteral renders v in pgvector text form: [0.1,0.2].
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseVector parses the pgvector text form.
func ParseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("invalid vector literal %q", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return []float32{}, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
