package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/store"
	"github.com/archaeology-ai/archaeologist/services/llm"
)

// Composer turns query results into a natural-language answer.
//
// Implementations must be safe for concurrent use and must only state
// facts supported by the rows they are given.
type Composer interface {
	Compose(ctx context.Context, question string, rows []store.Row) (string, error)
}

// ExtractNodeIDs collects the entity IDs present in result rows.
//
// A column grounds the answer when its name is "id" or ends in ".id" or
// "_id" and its value is a non-empty string. Duplicates collapse to the
// first occurrence, preserving row order. Rows whose identifier columns
// are null contribute nothing.
func ExtractNodeIDs(rows []store.Row) []string {
	seen := make(map[string]bool)
	ids := make([]string, 0)

	for _, row := range rows {
		for _, col := range row.Columns {
			if !isIdentifierColumn(col) {
				continue
			}
			id, ok := row.Values[col].(string)
			if !ok || id == "" {
				continue
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}

	return ids
}

// isIdentifierColumn reports whether a column name carries an entity ID
// by naming convention.
func isIdentifierColumn(col string) bool {
	return col == "id" || strings.HasSuffix(col, ".id") || strings.HasSuffix(col, "_id")
}

// formatRows renders result rows as numbered lines for prompt context
// and mock answers. Map values print their keys sorted so output is
// stable across runs.
func formatRows(rows []store.Row) string {
	if len(rows) == 0 {
		return "No results found."
	}

	var b strings.Builder
	for i, row := range rows {
		fmt.Fprintf(&b, "%d. ", i+1)
		for j, col := range row.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %s", col, formatValue(row.Values[col]))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatValue renders a single cell.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// LLMComposer writes answers with an LLM backend, feeding it the
// formatted rows as the only context it may draw on.
type LLMComposer struct {
	client llm.LLMClient
}

// NewLLMComposer creates a composer backed by the given client.
func NewLLMComposer(client llm.LLMClient) *LLMComposer {
	return &LLMComposer{client: client}
}

// Compose generates an answer grounded in the rows.
func (c *LLMComposer) Compose(ctx context.Context, question string, rows []store.Row) (string, error) {
	prompt := fmt.Sprintf(responsePromptTemplate, question, formatRows(rows))

	temperature := float32(0.2)
	maxTokens := 1024
	answer, err := c.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("answer generation failed: %w", err)
	}

	return strings.TrimSpace(answer), nil
}

// Compile-time interface compliance check.
var _ Composer = (*LLMComposer)(nil)

// mockAnswerPreviewLimit bounds how much formatted context a mock
// answer carries.
const mockAnswerPreviewLimit = 200

// MockComposer produces deterministic template answers for tests and
// inference-free operation.
type MockComposer struct{}

// NewMockComposer creates a deterministic composer.
func NewMockComposer() *MockComposer {
	return &MockComposer{}
}

// Compose renders a row-count answer with a bounded preview of the
// results. Empty rows produce an explicit not-found answer. Never fails.
func (c *MockComposer) Compose(ctx context.Context, question string, rows []store.Row) (string, error) {
	if len(rows) == 0 {
		return "I couldn't find any matching entities in the codebase.", nil
	}

	preview := formatRows(rows)
	if len(preview) > mockAnswerPreviewLimit {
		// Back up to a rune boundary so the cut never splits a
		// multi-byte character.
		cut := mockAnswerPreviewLimit
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}

	return fmt.Sprintf("I found %d result(s) in the codebase. %s", len(rows), preview), nil
}

// Compile-time interface compliance check.
var _ Composer = (*MockComposer)(nil)

// fallbackComposer delegates to primary and falls back to the
// deterministic composer when the inference backend is unavailable.
type fallbackComposer struct {
	primary  Composer
	fallback Composer
}

func (c *fallbackComposer) Compose(ctx context.Context, question string, rows []store.Row) (string, error) {
	answer, err := c.primary.Compose(ctx, question, rows)
	if err == nil {
		return answer, nil
	}

	if errors.Is(err, llm.ErrUnavailable) {
		slog.Warn("inference backend unavailable, using deterministic composition", "error", err)
		return c.fallback.Compose(ctx, question, rows)
	}

	return "", err
}
