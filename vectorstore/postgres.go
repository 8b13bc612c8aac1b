package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/pagequery/pagequery/domain"
)

// PostgresStore keeps embedded chunks in Postgres with pgvector. Unlike the
// memory backend it survives restarts, so previously scraped pages stay
// queryable across processes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Replace(ctx context.Context, doc domain.Document, chunks []domain.Chunk, vectors [][]float32) (err error) {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		INSERT INTO page_documents (doc_id, url, title, content_hash, scraped_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (doc_id) DO UPDATE
		SET title = EXCLUDED.title,
		    content_hash = EXCLUDED.content_hash,
		    scraped_at = EXCLUDED.scraped_at,
		    updated_at = NOW()
	`, doc.DocID, doc.URL, doc.Title, doc.ContentHash, doc.ScrapedAt); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	if _, err = tx.Exec(ctx, "DELETE FROM page_chunks WHERE doc_id = $1", doc.DocID); err != nil {
		return fmt.Errorf("clear existing chunks: %w", err)
	}

	for i, chunk := range chunks {
		if _, err = tx.Exec(ctx, `
			INSERT INTO page_chunks (id, doc_id, chunk_index, content, start_offset, end_offset, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		`, uuid.New(), doc.DocID, chunk.Index, chunk.Content, chunk.StartOffset, chunk.EndOffset, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) ContentHash(ctx context.Context, docID string) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx, "SELECT content_hash FROM page_documents WHERE doc_id = $1", docID).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("query document hash: %w", err)
	}
	return hash, nil
}

func (s *PostgresStore) Search(ctx context.Context, docID string, vector []float32, topK int) ([]Hit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT pc.chunk_index,
		       pc.content,
		       pc.start_offset,
		       pc.end_offset,
		       pd.url,
		       pd.title,
		       (pc.embedding <=> $2::vector) AS distance
		FROM page_chunks pc
		JOIN page_documents pd ON pd.doc_id = pc.doc_id
		WHERE pc.doc_id = $1
		ORDER BY pc.embedding <=> $2::vector, pc.chunk_index
		LIMIT $3
	`, docID, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, topK)
	for rows.Next() {
		var hit Hit
		var url, title string
		if err := rows.Scan(&hit.Chunk.Index, &hit.Chunk.Content, &hit.Chunk.StartOffset, &hit.Chunk.EndOffset, &url, &title, &hit.Distance); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		hit.Chunk.Metadata = domain.ChunkMetadata{
			DocID:      docID,
			ChunkIndex: hit.Chunk.Index,
			URL:        url,
			Title:      title,
		}
		hits = append(hits, hit)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate similar chunks: %w", rows.Err())
	}

	return hits, nil
}

func (s *PostgresStore) Count(ctx context.Context, docID string) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM page_chunks WHERE doc_id = $1", docID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

var _ Store = (*PostgresStore)(nil)
