// Package retrieval orchestrates chunking, embedding, indexing, and
// similarity queries over scraped documents.
package retrieval

import (
	"context"
	"fmt"
	"log"
	"sort"

	"golang.org/x/sync/singleflight"

	"github.com/pagequery/pagequery/chunker"
	"github.com/pagequery/pagequery/domain"
	"github.com/pagequery/pagequery/embeddings"
	"github.com/pagequery/pagequery/vectorstore"
)

// IndexStats reports what IndexDocument did for a document.
type IndexStats struct {
	DocID      string
	ChunkCount int
	Reindexed  bool
}

type Service struct {
	store    vectorstore.Store
	embedder embeddings.Embedder
	logger   *log.Logger

	chunkSize    int
	chunkOverlap int

	// group collapses concurrent IndexDocument calls for the same doc id
	// so identical content is embedded at most once.
	group singleflight.Group
}

func NewService(store vectorstore.Store, embedder embeddings.Embedder, logger *log.Logger, chunkSize, chunkOverlap int) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		store:        store,
		embedder:     embedder,
		logger:       logger,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// IndexDocument chunks, embeds, and stores a document. When the document was
// already indexed with the same content hash it is a no-op reusing the stored
// vectors; when the content changed the prior chunk set is replaced whole.
func (s *Service) IndexDocument(ctx context.Context, doc domain.Document) (IndexStats, error) {
	if doc.DocID == "" {
		return IndexStats{}, fmt.Errorf("%w: document has no id", domain.ErrInvalidInput)
	}

	value, err, _ := s.group.Do(doc.DocID, func() (any, error) {
		return s.index(ctx, doc)
	})
	if err != nil {
		return IndexStats{}, err
	}
	return value.(IndexStats), nil
}

func (s *Service) index(ctx context.Context, doc domain.Document) (IndexStats, error) {
	storedHash, err := s.store.ContentHash(ctx, doc.DocID)
	if err != nil {
		return IndexStats{}, fmt.Errorf("%w: read content hash: %v", domain.ErrIndex, err)
	}

	if storedHash == doc.ContentHash && storedHash != "" {
		count, err := s.store.Count(ctx, doc.DocID)
		if err != nil {
			return IndexStats{}, fmt.Errorf("%w: count chunks: %v", domain.ErrIndex, err)
		}
		s.logger.Printf("document %s unchanged, reusing %d indexed chunks", shortID(doc.DocID), count)
		return IndexStats{DocID: doc.DocID, ChunkCount: count, Reindexed: false}, nil
	}

	chunks, err := chunker.Split(doc.Text, s.chunkSize, s.chunkOverlap)
	if err != nil {
		return IndexStats{}, err
	}
	for i := range chunks {
		chunks[i].Metadata = domain.ChunkMetadata{
			DocID:      doc.DocID,
			ChunkIndex: chunks[i].Index,
			URL:        doc.URL,
			Title:      doc.Title,
		}
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return IndexStats{}, fmt.Errorf("%w: embed %d chunks: %v", domain.ErrEmbedding, len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return IndexStats{}, fmt.Errorf("%w: have %d chunks but %d embeddings", domain.ErrEmbedding, len(chunks), len(vectors))
	}

	// Replace is atomic per document, so a cancelled request can never
	// leave a partial chunk set behind.
	if err := s.store.Replace(ctx, doc, chunks, vectors); err != nil {
		return IndexStats{}, fmt.Errorf("%w: store chunks: %v", domain.ErrIndex, err)
	}

	s.logger.Printf("indexed document %s: %d chunks", shortID(doc.DocID), len(chunks))
	return IndexStats{DocID: doc.DocID, ChunkCount: len(chunks), Reindexed: storedHash != ""}, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Query embeds the query text and returns up to topK chunks of the document
// ranked by descending relevance. Duplicate chunk indexes are collapsed to
// the highest-scoring instance; ties are broken by ascending chunk index.
func (s *Service) Query(ctx context.Context, docID, query string, topK int) ([]domain.RankedResult, error) {
	if docID == "" || query == "" {
		return nil, fmt.Errorf("%w: doc id and query are required", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrInvalidInput, topK)
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", domain.ErrEmbedding, err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: embedder returned no vector for query", domain.ErrEmbedding)
	}

	hits, err := s.store.Search(ctx, docID, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search: %v", domain.ErrIndex, err)
	}

	return rankHits(hits, topK), nil
}

// rankHits converts distances to relevance scores, deduplicates by chunk
// index keeping the best score, and orders results deterministically.
func rankHits(hits []vectorstore.Hit, topK int) []domain.RankedResult {
	best := make(map[int]domain.RankedResult, len(hits))
	for _, hit := range hits {
		result := domain.RankedResult{Chunk: hit.Chunk, Score: 1 - hit.Distance}
		if prev, ok := best[hit.Chunk.Index]; !ok || result.Score > prev.Score {
			best[hit.Chunk.Index] = result
		}
	}

	results := make([]domain.RankedResult, 0, len(best))
	for _, result := range best {
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
