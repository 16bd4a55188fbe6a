package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/archaeology-ai/archaeologist/services/llm"
)

// Translator converts a natural-language question into a Cypher query.
//
// Implementations must be safe for concurrent use. The executor calls
// Translate once per attempt; on retry the question arrives enriched
// with the previous failure's query and diagnostic.
type Translator interface {
	Translate(ctx context.Context, question string) (string, error)
}

// LLMTranslator generates Cypher with an LLM backend using a few-shot
// prompt over the graph schema.
//
// Generation runs at temperature zero: query generation wants the
// most likely completion, not a creative one.
type LLMTranslator struct {
	client llm.LLMClient
}

// NewLLMTranslator creates a translator backed by the given client.
func NewLLMTranslator(client llm.LLMClient) *LLMTranslator {
	return &LLMTranslator{client: client}
}

// Translate generates a Cypher query for the question.
func (t *LLMTranslator) Translate(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(cypherPromptTemplate, graphSchema, cypherExamples, question)

	temperature := float32(0.0)
	maxTokens := 512
	completion, err := t.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("cypher generation failed: %w", err)
	}

	query := extractCypher(completion)
	if query == "" {
		return "", fmt.Errorf("cypher generation produced no query")
	}

	return query, nil
}

// cypherKeywords marks the start of query text inside a completion that
// may carry prose or markdown around it.
var cypherKeywords = []string{"MATCH", "RETURN", "WHERE", "WITH", "OPTIONAL"}

// extractCypher pulls the query out of a raw completion. Models wrap
// queries in explanations and code fences; this keeps only the lines
// from the first query keyword to the next blank line.
func extractCypher(completion string) string {
	completion = strings.TrimSpace(completion)
	completion = strings.TrimPrefix(completion, "```cypher")
	completion = strings.TrimPrefix(completion, "```")
	completion = strings.TrimSuffix(completion, "```")

	var queryLines []string
	inQuery := false

	for _, line := range strings.Split(completion, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)

		if !inQuery {
			for _, kw := range cypherKeywords {
				if strings.HasPrefix(upper, kw) {
					inQuery = true
					break
				}
			}
		}

		if inQuery {
			if line == "" {
				break // End of query
			}
			queryLines = append(queryLines, line)
		}
	}

	return strings.Join(queryLines, " ")
}

// Compile-time interface compliance check.
var _ Translator = (*LLMTranslator)(nil)

// MockTranslator maps questions to canned queries by keyword, in rule
// order: file, class, then function/method, then a bounded default.
//
// It exists for tests and for running without any inference backend;
// the queries it emits are exactly the shapes MemoryStore supports.
type MockTranslator struct{}

// NewMockTranslator creates a deterministic keyword translator.
func NewMockTranslator() *MockTranslator {
	return &MockTranslator{}
}

// Translate maps the question to a canned query. It never fails.
func (t *MockTranslator) Translate(ctx context.Context, question string) (string, error) {
	lower := strings.ToLower(question)
	switch {
	case strings.Contains(lower, "file"):
		return "MATCH (f:File) RETURN f.id, f.path, f.language", nil
	case strings.Contains(lower, "class"):
		return "MATCH (c:Class) RETURN c.id, c.name, c.file_path", nil
	case strings.Contains(lower, "function"), strings.Contains(lower, "method"):
		return "MATCH (fn:Function) RETURN fn.id, fn.name, fn.args", nil
	default:
		return "MATCH (n) RETURN n.id LIMIT 10", nil
	}
}

// Compile-time interface compliance check.
var _ Translator = (*MockTranslator)(nil)

// fallbackTranslator delegates to primary and falls back to the
// deterministic translator when the inference backend is unavailable.
// Unavailability is transient and per-request: the next request tries
// the primary again.
type fallbackTranslator struct {
	primary  Translator
	fallback Translator
}

func (t *fallbackTranslator) Translate(ctx context.Context, question string) (string, error) {
	query, err := t.primary.Translate(ctx, question)
	if err == nil {
		return query, nil
	}

	if errors.Is(err, llm.ErrUnavailable) {
		slog.Warn("inference backend unavailable, using deterministic translation", "error", err)
		return t.fallback.Translate(ctx, question)
	}

	return "", err
}
