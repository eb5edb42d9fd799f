package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists documents in a shared Postgres table, for
// deployments where several server processes serve agents for the same set
// of papers behind a load balancer.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	path TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// OpenPostgresStore connects to dsn, retrying transient connection errors
// with exponential backoff, and ensures the documents table exists.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	var pool *pgxpool.Pool
	connect := func() error {
		p, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(connect, b); err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Load(ctx context.Context, path string) (*Document, error) {
	var text string
	err := s.pool.QueryRow(ctx, `SELECT text FROM documents WHERE path = $1`, path).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Document{Path: path, Text: text}, nil
}

func (s *PostgresStore) Save(ctx context.Context, doc *Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (path, text, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (path) DO UPDATE SET text = EXCLUDED.text, updated_at = now()`,
		doc.Path, doc.Text)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE path = $1`, path)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
