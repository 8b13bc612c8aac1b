// Package chunker splits document text into fixed-size overlapping segments.
package chunker

import (
	"fmt"
	"strings"

	"github.com/pagequery/pagequery/domain"
)

// Split cuts text into chunks of at most size runes. Each chunk after the
// first starts size-overlap runes after the previous one, so consecutive
// chunks share overlap runes of boundary context. A final remainder shorter
// than size is emitted as the last chunk. Splitting is deterministic: the
// same text and parameters always produce the same boundaries.
//
// For text of rune length L > overlap the chunk count is exactly
// ceil((L-overlap)/(size-overlap)).
func Split(text string, size, overlap int) ([]domain.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", domain.ErrInvalidInput)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, chunk size), got %d", domain.ErrInvalidInput, overlap)
	}

	runes := []rune(text)
	stride := size - overlap
	chunks := make([]domain.Chunk, 0, len(runes)/stride+1)

	for start := 0; start < len(runes); start += stride {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, domain.Chunk{
			Index:       len(chunks),
			Content:     string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
		})

		// The tail past this point is already covered; a further chunk
		// would be a strict suffix of this one.
		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}
