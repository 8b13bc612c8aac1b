package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/pagequery/pagequery/domain"
)

// MemoryStore is a process-local brute-force cosine store. It is the default
// backend: the pipeline promises no persistence beyond the process lifetime.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*memoryDoc
}

type memoryDoc struct {
	contentHash string
	chunks      []domain.Chunk
	vectors     [][]float32
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*memoryDoc)}
}

func (s *MemoryStore) Replace(_ context.Context, doc domain.Document, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	entry := &memoryDoc{
		contentHash: doc.ContentHash,
		chunks:      append([]domain.Chunk(nil), chunks...),
		vectors:     append([][]float32(nil), vectors...),
	}

	s.mu.Lock()
	s.docs[doc.DocID] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ContentHash(_ context.Context, docID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, ok := s.docs[docID]; ok {
		return entry.contentHash, nil
	}
	return "", nil
}

func (s *MemoryStore) Search(_ context.Context, docID string, vector []float32, topK int) ([]Hit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.docs[docID]
	if !ok {
		return nil, nil
	}

	hits := make([]Hit, 0, len(entry.chunks))
	for i, chunk := range entry.chunks {
		hits = append(hits, Hit{Chunk: chunk, Distance: cosineDistance(entry.vectors[i], vector)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Chunk.Index < hits[j].Chunk.Index
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryStore) Count(_ context.Context, docID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, ok := s.docs[docID]; ok {
		return len(entry.chunks), nil
	}
	return 0, nil
}

// Clear drops all indexed documents.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.docs = make(map[string]*memoryDoc)
	s.mu.Unlock()
}

func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

var _ Store = (*MemoryStore)(nil)
