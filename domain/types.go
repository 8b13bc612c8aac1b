// Package domain holds the data model shared by the retrieval pipeline
// and the sentinel errors that identify which stage of it failed.
package domain

import "time"

// Document is a scraped web page. It is created once per scrape and
// immutable afterwards.
type Document struct {
	// DocID is derived from the source URL and stays stable across
	// content changes; ContentHash tracks the text itself.
	DocID       string
	URL         string
	Title       string
	Description string
	Author      string
	Text        string
	ContentHash string
	ScrapedAt   time.Time
}

// ChunkMetadata is the fixed set of fields attached to every chunk.
type ChunkMetadata struct {
	DocID      string `json:"doc_id"`
	ChunkIndex int    `json:"chunk_index"`
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
}

// Chunk is a bounded contiguous span of a document's text, the unit of
// embedding and retrieval. Offsets are rune positions into the source text.
type Chunk struct {
	Index       int
	Content     string
	StartOffset int
	EndOffset   int
	Metadata    ChunkMetadata
}

// RankedResult is a chunk scored against a query. Higher is more relevant.
type RankedResult struct {
	Chunk Chunk
	Score float64
}

// Answer is a generated response grounded in ranked chunks.
type Answer struct {
	Text        string
	Sources     []RankedResult
	Model       string
	Temperature float32
}
