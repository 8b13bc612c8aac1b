// Package answer assembles a bounded context window from ranked chunks and
// asks the language model for a grounded answer.
package answer

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/pagequery/pagequery/domain"
	"github.com/pagequery/pagequery/llm"
)

// NoRelevantContent is returned in place of a generated answer when
// retrieval produced nothing to ground one on. The model is not called.
const NoRelevantContent = "No relevant content was found on the page for this question."

type Synthesizer struct {
	client      llm.Client
	logger      *log.Logger
	model       string
	temperature float32
	maxChunks   int
	maxLength   int
}

func NewSynthesizer(client llm.Client, logger *log.Logger, model string, temperature float32, maxChunks, maxLength int) *Synthesizer {
	if logger == nil {
		logger = log.Default()
	}
	if maxChunks <= 0 {
		maxChunks = 5
	}
	if maxLength <= 0 {
		maxLength = 6000
	}

	return &Synthesizer{
		client:      client,
		logger:      logger,
		model:       model,
		temperature: temperature,
		maxChunks:   maxChunks,
		maxLength:   maxLength,
	}
}

// Synthesize builds the context window from results and generates an answer.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, results []domain.RankedResult) (domain.Answer, error) {
	if strings.TrimSpace(query) == "" {
		return domain.Answer{}, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}

	if len(results) == 0 {
		s.logger.Printf("no ranked results, skipping LLM call")
		return domain.Answer{Text: NoRelevantContent, Model: s.model, Temperature: s.temperature}, nil
	}

	window, used := BuildContext(results, s.maxChunks, s.maxLength)
	if len(used) == 0 {
		s.logger.Printf("no chunk fits the context budget, skipping LLM call")
		return domain.Answer{Text: NoRelevantContent, Model: s.model, Temperature: s.temperature}, nil
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: formatUserPrompt(query, window)},
	}

	text, err := s.client.Generate(ctx, messages)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Answer{}, fmt.Errorf("%w: model returned empty content", domain.ErrGeneration)
	}

	return domain.Answer{
		Text:        text,
		Sources:     used,
		Model:       s.model,
		Temperature: s.temperature,
	}, nil
}

// BuildContext picks chunks in descending relevance order (ascending chunk
// index on ties) until either budget is reached. A chunk that would overflow
// the length budget is skipped whole rather than truncated, so every chunk
// in the window is intact. Returns the joined context text and the chunks
// used, in selection order.
func BuildContext(results []domain.RankedResult, maxChunks, maxLength int) (string, []domain.RankedResult) {
	ordered := append([]domain.RankedResult(nil), results...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].Chunk.Index < ordered[j].Chunk.Index
	})

	var sb strings.Builder
	used := make([]domain.RankedResult, 0, maxChunks)
	remaining := maxLength

	for _, result := range ordered {
		if len(used) == maxChunks {
			break
		}
		length := len([]rune(result.Chunk.Content))
		if length > remaining {
			continue
		}

		if len(used) > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(result.Chunk.Content)
		used = append(used, result)
		remaining -= length
	}

	return sb.String(), used
}

const systemPrompt = `You are an expert information retrieval assistant.
Your task is to answer questions based ONLY on the provided context from web pages.

Guidelines:
- Provide accurate, concise answers
- Use information from the context provided
- If the context doesn't contain relevant information, say so
- Include specific details and examples when available
- Cite key points from the context
- Be objective and factual`

func formatUserPrompt(query, window string) string {
	var sb strings.Builder
	sb.WriteString("Context from web page:\n")
	sb.WriteString(window)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(query)
	sb.WriteString("\n\nPlease provide a comprehensive answer based on the context above.")
	return sb.String()
}
