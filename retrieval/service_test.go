package retrieval

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/pagequery/pagequery/domain"
	"github.com/pagequery/pagequery/embeddings"
	"github.com/pagequery/pagequery/vectorstore"
)

type stubEmbedder struct {
	calls int
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1}
	}
	return vectors, nil
}

var _ embeddings.Embedder = (*stubEmbedder)(nil)

type stubStore struct {
	hits      []vectorstore.Hit
	searchErr error
	hashErr   error
}

func (s *stubStore) Replace(context.Context, domain.Document, []domain.Chunk, [][]float32) error {
	return nil
}

func (s *stubStore) ContentHash(context.Context, string) (string, error) {
	return "", s.hashErr
}

func (s *stubStore) Search(context.Context, string, []float32, int) ([]vectorstore.Hit, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.hits, nil
}

func (s *stubStore) Count(context.Context, string) (int, error) {
	return len(s.hits), nil
}

var _ vectorstore.Store = (*stubStore)(nil)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testDoc(id, text string) domain.Document {
	return domain.Document{
		DocID:       id,
		URL:         "https://example.com/page",
		Title:       "Example",
		Text:        text,
		ContentHash: "hash-of-" + text[:5],
	}
}

func TestIndexDocumentChunksAndStores(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := &stubEmbedder{}
	svc := NewService(store, embedder, quietLogger(), 100, 20)

	doc := testDoc("doc-1", strings.Repeat("sample text ", 50))
	stats, err := svc.IndexDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("index: %v", err)
	}

	if stats.ChunkCount == 0 {
		t.Fatal("expected chunks to be indexed")
	}
	count, err := store.Count(context.Background(), doc.DocID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != stats.ChunkCount {
		t.Errorf("stats report %d chunks, store holds %d", stats.ChunkCount, count)
	}
	if embedder.calls != 1 {
		t.Errorf("expected 1 embedding call, got %d", embedder.calls)
	}
}

func TestIndexDocumentIdempotentOnSameContent(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := &stubEmbedder{}
	svc := NewService(store, embedder, quietLogger(), 100, 20)

	doc := testDoc("doc-1", strings.Repeat("sample text ", 50))
	first, err := svc.IndexDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("first index: %v", err)
	}

	second, err := svc.IndexDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("second index: %v", err)
	}

	if second.Reindexed {
		t.Error("second index of identical content should not reindex")
	}
	if second.ChunkCount != first.ChunkCount {
		t.Errorf("chunk count changed on no-op reindex: %d vs %d", first.ChunkCount, second.ChunkCount)
	}
	if embedder.calls != 1 {
		t.Errorf("expected no additional embedding calls, got %d total", embedder.calls)
	}
}

func TestIndexDocumentReplacesChangedContent(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := &stubEmbedder{}
	svc := NewService(store, embedder, quietLogger(), 100, 0)

	long := testDoc("doc-1", strings.Repeat("first version ", 60))
	if _, err := svc.IndexDocument(context.Background(), long); err != nil {
		t.Fatalf("first index: %v", err)
	}

	short := testDoc("doc-1", "later version, much shorter than before")
	stats, err := svc.IndexDocument(context.Background(), short)
	if err != nil {
		t.Fatalf("second index: %v", err)
	}

	if !stats.Reindexed {
		t.Error("changed content should trigger a reindex")
	}
	count, err := store.Count(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != stats.ChunkCount {
		t.Errorf("old chunk set not superseded: store holds %d, expected %d", count, stats.ChunkCount)
	}
	if count != 1 {
		t.Errorf("expected the short document to produce 1 chunk, got %d", count)
	}
}

func TestIndexDocumentEmbeddingFailure(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := &stubEmbedder{err: errors.New("connection refused")}
	svc := NewService(store, embedder, quietLogger(), 100, 20)

	_, err := svc.IndexDocument(context.Background(), testDoc("doc-1", strings.Repeat("text ", 40)))
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}

	// Nothing may be written when embedding failed.
	count, countErr := store.Count(context.Background(), "doc-1")
	if countErr != nil {
		t.Fatalf("count: %v", countErr)
	}
	if count != 0 {
		t.Errorf("expected no chunks stored after embedding failure, got %d", count)
	}
}

func TestIndexDocumentStoreFailure(t *testing.T) {
	store := &stubStore{hashErr: errors.New("store down")}
	svc := NewService(store, &stubEmbedder{}, quietLogger(), 100, 20)

	_, err := svc.IndexDocument(context.Background(), testDoc("doc-1", strings.Repeat("text ", 40)))
	if !errors.Is(err, domain.ErrIndex) {
		t.Fatalf("expected ErrIndex, got %v", err)
	}
}

func TestQueryRanksAndDeduplicates(t *testing.T) {
	hit := func(index int, distance float64) vectorstore.Hit {
		return vectorstore.Hit{
			Chunk:    domain.Chunk{Index: index, Content: "chunk"},
			Distance: distance,
		}
	}
	store := &stubStore{hits: []vectorstore.Hit{
		hit(3, 0.4),
		hit(1, 0.1),
		hit(1, 0.3), // duplicate index, worse score
		hit(2, 0.1), // tied with chunk 1
		hit(0, 0.8),
	}}
	svc := NewService(store, &stubEmbedder{}, quietLogger(), 100, 20)

	results, err := svc.Query(context.Background(), "doc-1", "what is this", 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	// Chunks 1 and 2 tie at score 0.9; ascending index breaks the tie.
	wantIndexes := []int{1, 2, 3}
	for i, want := range wantIndexes {
		if results[i].Chunk.Index != want {
			t.Errorf("result %d: expected chunk %d, got %d", i, want, results[i].Chunk.Index)
		}
	}

	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not in descending score order at %d", i)
		}
	}

	seen := make(map[int]bool)
	for _, result := range results {
		if seen[result.Chunk.Index] {
			t.Errorf("duplicate chunk index %d in results", result.Chunk.Index)
		}
		seen[result.Chunk.Index] = true
	}
}

func TestQueryAgainstIndexedDocument(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	svc := NewService(store, &stubEmbedder{}, quietLogger(), 100, 0)

	doc := testDoc("doc-1", strings.Repeat("x", 1000))
	stats, err := svc.IndexDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if stats.ChunkCount != 10 {
		t.Fatalf("expected 10 chunks, got %d", stats.ChunkCount)
	}

	results, err := svc.Query(context.Background(), "doc-1", "what is x", 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected exactly 3 results, got %d", len(results))
	}
	seen := make(map[int]bool)
	for i, result := range results {
		if i > 0 && result.Score > results[i-1].Score {
			t.Errorf("results not sorted by descending score at %d", i)
		}
		if seen[result.Chunk.Index] {
			t.Errorf("duplicate chunk index %d", result.Chunk.Index)
		}
		seen[result.Chunk.Index] = true
		if result.Chunk.Metadata.URL != doc.URL {
			t.Errorf("chunk metadata missing url: %+v", result.Chunk.Metadata)
		}
	}

	// All chunks are identical text, so scores tie and ascending chunk
	// index decides the order.
	for i, want := range []int{0, 1, 2} {
		if results[i].Chunk.Index != want {
			t.Errorf("result %d: expected chunk %d, got %d", i, want, results[i].Chunk.Index)
		}
	}
}

func TestQueryFewerChunksThanTopK(t *testing.T) {
	store := &stubStore{hits: []vectorstore.Hit{
		{Chunk: domain.Chunk{Index: 0}, Distance: 0.2},
		{Chunk: domain.Chunk{Index: 1}, Distance: 0.5},
	}}
	svc := NewService(store, &stubEmbedder{}, quietLogger(), 100, 20)

	results, err := svc.Query(context.Background(), "doc-1", "anything", 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results when only 2 chunks indexed, got %d", len(results))
	}
}

func TestQueryErrorKinds(t *testing.T) {
	t.Run("embedding failure", func(t *testing.T) {
		svc := NewService(&stubStore{}, &stubEmbedder{err: errors.New("down")}, quietLogger(), 100, 20)
		_, err := svc.Query(context.Background(), "doc-1", "q", 5)
		if !errors.Is(err, domain.ErrEmbedding) {
			t.Fatalf("expected ErrEmbedding, got %v", err)
		}
	})

	t.Run("index failure", func(t *testing.T) {
		svc := NewService(&stubStore{searchErr: errors.New("down")}, &stubEmbedder{}, quietLogger(), 100, 20)
		_, err := svc.Query(context.Background(), "doc-1", "q", 5)
		if !errors.Is(err, domain.ErrIndex) {
			t.Fatalf("expected ErrIndex, got %v", err)
		}
	})

	t.Run("invalid top_k", func(t *testing.T) {
		svc := NewService(&stubStore{}, &stubEmbedder{}, quietLogger(), 100, 20)
		_, err := svc.Query(context.Background(), "doc-1", "q", 0)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})
}
