package domain

import "errors"

// Stage errors identify which collaborator failed so the API boundary can
// report the responsible dependency rather than a generic failure.
var (
	// ErrInvalidInput indicates malformed request parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrScrape indicates the page could not be fetched or parsed.
	ErrScrape = errors.New("scrape failed")

	// ErrEmbedding indicates the embedding service errored or timed out.
	ErrEmbedding = errors.New("embedding service failed")

	// ErrIndex indicates the vector store errored or timed out.
	ErrIndex = errors.New("vector index failed")

	// ErrGeneration indicates the language model errored, timed out, or
	// returned empty content.
	ErrGeneration = errors.New("answer generation failed")
)
