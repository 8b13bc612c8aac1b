// Package database manages the optional Postgres connection and schema for
// the pgvector-backed store.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the document and chunk tables if they do not exist.
// The embedding column dimension must match the configured embedder.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		`CREATE TABLE IF NOT EXISTS page_documents (
			doc_id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			title TEXT,
			content_hash TEXT NOT NULL,
			scraped_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS page_chunks (
			id UUID PRIMARY KEY,
			doc_id TEXT NOT NULL REFERENCES page_documents(doc_id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			start_offset INT NOT NULL,
			end_offset INT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(doc_id, chunk_index)
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_page_chunks_doc ON page_chunks(doc_id)",
		"CREATE INDEX IF NOT EXISTS idx_page_chunks_embedding ON page_chunks USING ivfflat (embedding vector_cosine_ops)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}

// Clear removes all indexed documents and chunks.
func Clear(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, "TRUNCATE page_chunks, page_documents"); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
