// Package api exposes the retrieval pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pagequery/pagequery/domain"
	"github.com/pagequery/pagequery/pipeline"
)

// Pipeline is the request handler the server delegates to.
type Pipeline interface {
	Handle(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
}

type Server struct {
	pipeline Pipeline
	logger   *log.Logger
	handler  http.Handler
}

type retrieveRequest struct {
	URL    string `json:"url"`
	Query  string `json:"query"`
	TopK   int    `json:"top_k"`
	UseLLM *bool  `json:"use_llm"`
}

type retrieveResponse struct {
	Query          string          `json:"query"`
	URL            string          `json:"url"`
	RelevantChunks []chunkPayload  `json:"relevant_chunks"`
	Answer         *string         `json:"answer"`
	Note           string          `json:"note,omitempty"`
	Metadata       metadataPayload `json:"metadata"`
}

type chunkPayload struct {
	Content        string               `json:"content"`
	Metadata       domain.ChunkMetadata `json:"metadata"`
	RelevanceScore float64              `json:"relevance_score"`
}

type metadataPayload struct {
	TotalChunks int    `json:"total_chunks"`
	Title       string `json:"title"`
	ScrapedAt   string `json:"scraped_at"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func NewServer(p Pipeline, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{pipeline: p, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/retrieve", s.handleRetrieve)
	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": "pagequery: web retrieval and grounded answers",
		"endpoints": map[string]string{
			"/retrieve": "POST - retrieve information from a URL",
			"/healthz":  "GET - health check",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req retrieveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: decode request: %v", domain.ErrInvalidInput, err))
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	req.Query = strings.TrimSpace(req.Query)
	if req.URL == "" || req.Query == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: url and query are required", domain.ErrInvalidInput))
		return
	}

	useLLM := true
	if req.UseLLM != nil {
		useLLM = *req.UseLLM
	}

	resp, err := s.pipeline.Handle(r.Context(), pipeline.Request{
		URL:    req.URL,
		Query:  req.Query,
		TopK:   req.TopK,
		UseLLM: useLLM,
	})
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, transformResponse(resp))
}

func transformResponse(resp pipeline.Response) retrieveResponse {
	chunks := make([]chunkPayload, len(resp.Results))
	for i, result := range resp.Results {
		chunks[i] = chunkPayload{
			Content:        result.Chunk.Content,
			Metadata:       result.Chunk.Metadata,
			RelevanceScore: result.Score,
		}
	}

	out := retrieveResponse{
		Query:          resp.Query,
		URL:            resp.URL,
		RelevantChunks: chunks,
		Note:           resp.Note,
		Metadata: metadataPayload{
			TotalChunks: resp.Metadata.TotalChunks,
			Title:       resp.Metadata.Title,
			ScrapedAt:   resp.Metadata.ScrapedAt.Format(time.RFC3339),
		},
	}
	if resp.Answer != nil {
		out.Answer = &resp.Answer.Text
	}
	return out
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrScrape):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrEmbedding),
		errors.Is(err, domain.ErrIndex),
		errors.Is(err, domain.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func kindForError(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrScrape):
		return "scrape_error"
	case errors.Is(err, domain.ErrEmbedding):
		return "embedding_error"
	case errors.Is(err, domain.ErrIndex):
		return "index_error"
	case errors.Is(err, domain.ErrGeneration):
		return "generation_error"
	default:
		return "internal_error"
	}
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("api error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kindForError(err)})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("request body is required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is required")
		}
		return err
	}
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}
