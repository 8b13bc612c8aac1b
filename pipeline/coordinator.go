// Package pipeline sequences scrape, index, retrieve, and optional answer
// synthesis into a single request-scoped flow.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pagequery/pagequery/domain"
	"github.com/pagequery/pagequery/retrieval"
)

// Stage identifies how far a request progressed.
type Stage string

const (
	StageFetching     Stage = "fetching"
	StageIndexing     Stage = "indexing"
	StageRetrieving   Stage = "retrieving"
	StageSynthesizing Stage = "synthesizing"
	StageSkipped      Stage = "skipped"
	StageDone         Stage = "done"
	StageErrored      Stage = "errored"
)

// Scraper fetches and parses a page into a document.
type Scraper interface {
	Scrape(ctx context.Context, url string) (domain.Document, error)
}

// Retriever indexes documents and answers similarity queries against them.
type Retriever interface {
	IndexDocument(ctx context.Context, doc domain.Document) (retrieval.IndexStats, error)
	Query(ctx context.Context, docID, query string, topK int) ([]domain.RankedResult, error)
}

// Synthesizer generates a grounded answer from ranked results.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, results []domain.RankedResult) (domain.Answer, error)
}

type Request struct {
	URL    string
	Query  string
	TopK   int
	UseLLM bool
}

type Metadata struct {
	TotalChunks int
	Title       string
	ScrapedAt   time.Time
}

type Response struct {
	Query   string
	URL     string
	Results []domain.RankedResult
	// Answer is nil when synthesis was skipped or failed.
	Answer *domain.Answer
	// Note carries a human-readable warning on partial success.
	Note string
	// Stage is the terminal stage: StageDone, StageSkipped when the
	// request completed without attempting synthesis, or StageErrored.
	Stage    Stage
	Metadata Metadata
}

type Coordinator struct {
	scraper     Scraper
	retriever   Retriever
	synthesizer Synthesizer
	logger      *log.Logger
	defaultTopK int
}

func NewCoordinator(scraper Scraper, retriever Retriever, synthesizer Synthesizer, logger *log.Logger, defaultTopK int) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}

	return &Coordinator{
		scraper:     scraper,
		retriever:   retriever,
		synthesizer: synthesizer,
		logger:      logger,
		defaultTopK: defaultTopK,
	}
}

// Handle runs the full pipeline for one request. Stage-local failures
// surface as the stage's error kind; a synthesis failure after successful
// retrieval degrades to returning the ranked chunks with a note instead of
// failing the request.
func (c *Coordinator) Handle(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.URL) == "" {
		return Response{Stage: StageErrored}, fmt.Errorf("%w: url is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Query) == "" {
		return Response{Stage: StageErrored}, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = c.defaultTopK
	}

	resp := Response{Query: req.Query, URL: req.URL, Stage: StageFetching}

	doc, err := c.scraper.Scrape(ctx, req.URL)
	if err != nil {
		resp.Stage = StageErrored
		return resp, err
	}
	resp.Metadata.Title = doc.Title
	resp.Metadata.ScrapedAt = doc.ScrapedAt

	resp.Stage = StageIndexing
	stats, err := c.retriever.IndexDocument(ctx, doc)
	if err != nil {
		resp.Stage = StageErrored
		return resp, err
	}
	resp.Metadata.TotalChunks = stats.ChunkCount

	resp.Stage = StageRetrieving
	results, err := c.retriever.Query(ctx, doc.DocID, req.Query, topK)
	if err != nil {
		resp.Stage = StageErrored
		return resp, err
	}
	// Empty results are not an error; the pipeline proceeds without them.
	resp.Results = results

	if !req.UseLLM || len(results) == 0 {
		c.logger.Printf("synthesis skipped for %s (use_llm=%t, results=%d)", req.URL, req.UseLLM, len(results))
		resp.Stage = StageSkipped
		return resp, nil
	}

	resp.Stage = StageSynthesizing
	ans, err := c.synthesizer.Synthesize(ctx, req.Query, results)
	if err != nil {
		// Retrieval is the valuable half; keep it and report the
		// synthesis failure as a note.
		c.logger.Printf("synthesis failed for %s: %v", req.URL, err)
		resp.Note = fmt.Sprintf("answer unavailable: %v", err)
		resp.Stage = StageDone
		return resp, nil
	}

	resp.Answer = &ans
	resp.Stage = StageDone
	return resp, nil
}
