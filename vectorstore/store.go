// Package vectorstore persists embedded chunks scoped per document and
// answers nearest-neighbor queries against them.
package vectorstore

import (
	"context"

	"github.com/pagequery/pagequery/domain"
)

// Hit is a chunk returned from a similarity search. Distance is cosine
// distance: 0 means identical direction, lower is closer.
type Hit struct {
	Chunk    domain.Chunk
	Distance float64
}

// Store holds embedded chunks keyed by document id.
type Store interface {
	// Replace atomically swaps the full chunk set for a document. No
	// partial chunk set is ever visible to readers.
	Replace(ctx context.Context, doc domain.Document, chunks []domain.Chunk, vectors [][]float32) error

	// ContentHash reports the stored content hash for a document, or ""
	// when the document has never been indexed.
	ContentHash(ctx context.Context, docID string) (string, error)

	// Search returns up to topK nearest chunks for the document, ordered
	// by ascending distance.
	Search(ctx context.Context, docID string, vector []float32, topK int) ([]Hit, error)

	// Count reports how many chunks are indexed for the document.
	Count(ctx context.Context, docID string) (int, error)
}
