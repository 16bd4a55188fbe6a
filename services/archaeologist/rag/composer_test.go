package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/store"
	"github.com/archaeology-ai/archaeologist/services/llm"
)

func row(columns []string, values map[string]any) store.Row {
	return store.Row{Columns: columns, Values: values}
}

func TestExtractNodeIDs(t *testing.T) {
	rows := []store.Row{
		row([]string{"c.id", "c.name"}, map[string]any{"c.id": "class:aaa", "c.name": "Calculator"}),
		row([]string{"c.id", "c.name"}, map[string]any{"c.id": "class:bbb", "c.name": "Stack"}),
		// Duplicate collapses to first occurrence.
		row([]string{"c.id", "c.name"}, map[string]any{"c.id": "class:aaa", "c.name": "Calculator"}),
	}

	ids := ExtractNodeIDs(rows)
	assert.Equal(t, []string{"class:aaa", "class:bbb"}, ids)
}

func TestExtractNodeIDs_ColumnNaming(t *testing.T) {
	rows := []store.Row{
		row([]string{"id"}, map[string]any{"id": "file:one"}),
		row([]string{"node_id"}, map[string]any{"node_id": "func:two"}),
		// "name" is not an identifier column even when it holds an ID-shaped string.
		row([]string{"name"}, map[string]any{"name": "class:not-an-id-column"}),
	}

	ids := ExtractNodeIDs(rows)
	assert.Equal(t, []string{"file:one", "func:two"}, ids)
}

func TestExtractNodeIDs_SkipsNullAndEmpty(t *testing.T) {
	rows := []store.Row{
		row([]string{"f.id"}, map[string]any{"f.id": nil}),
		row([]string{"f.id"}, map[string]any{"f.id": ""}),
		row([]string{"f.id"}, map[string]any{"f.id": 42}),
	}

	assert.Empty(t, ExtractNodeIDs(rows))
}

func TestIsIdentifierColumn(t *testing.T) {
	tests := []struct {
		col  string
		want bool
	}{
		{"id", true},
		{"c.id", true},
		{"node_id", true},
		{"name", false},
		{"identity", false},
		{"c.name", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isIdentifierColumn(tt.col), "column %q", tt.col)
	}
}

func TestFormatRows(t *testing.T) {
	rows := []store.Row{
		row([]string{"c.name", "c.docstring"}, map[string]any{"c.name": "Calculator", "c.docstring": nil}),
	}

	out := formatRows(rows)
	assert.Equal(t, "1. c.name: Calculator, c.docstring: null", out)
}

func TestFormatRows_Empty(t *testing.T) {
	assert.Equal(t, "No results found.", formatRows(nil))
}

func TestFormatValue_MapIsStable(t *testing.T) {
	v := map[string]any{"b": 2, "a": 1}
	assert.Equal(t, "{a=1, b=2}", formatValue(v))
}

func TestMockComposer_EmptyRows(t *testing.T) {
	composer := NewMockComposer()

	answer, err := composer.Compose(context.Background(), "anything?", nil)
	require.NoError(t, err)
	assert.Equal(t, "I couldn't find any matching entities in the codebase.", answer)
}

func TestMockComposer_WithRows(t *testing.T) {
	composer := NewMockComposer()
	rows := []store.Row{
		row([]string{"c.name"}, map[string]any{"c.name": "Calculator"}),
		row([]string{"c.name"}, map[string]any{"c.name": "Stack"}),
	}

	answer, err := composer.Compose(context.Background(), "classes?", rows)
	require.NoError(t, err)
	assert.Contains(t, answer, "I found 2 result(s)")
	assert.Contains(t, answer, "Calculator")
}

func TestMockComposer_PreviewBounded(t *testing.T) {
	composer := NewMockComposer()
	long := strings.Repeat("x", 500)
	rows := []store.Row{
		row([]string{"f.path"}, map[string]any{"f.path": long}),
	}

	answer, err := composer.Compose(context.Background(), "files?", rows)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(answer), mockAnswerPreviewLimit+len("I found 1 result(s) in the codebase. "))
}

func TestMockComposer_PreviewKeepsRunesIntact(t *testing.T) {
	composer := NewMockComposer()
	// Sweep the alignment of a run of 3-byte runes so at least one
	// preview cut lands mid-rune unless it backs up to a boundary.
	for pad := 0; pad < 3; pad++ {
		long := strings.Repeat("x", pad) + strings.Repeat("日本語のパス", 40)
		rows := []store.Row{
			row([]string{"f.path"}, map[string]any{"f.path": long}),
		}

		answer, err := composer.Compose(context.Background(), "files?", rows)
		require.NoError(t, err)
		assert.True(t, utf8.ValidString(answer), "truncation must not split a rune")
	}
}

func TestLLMComposer_Compose(t *testing.T) {
	client := &stubLLM{completion: "  The codebase defines one class, Calculator.  "}
	composer := NewLLMComposer(client)
	rows := []store.Row{
		row([]string{"c.id", "c.name"}, map[string]any{"c.id": "class:aaa", "c.name": "Calculator"}),
	}

	answer, err := composer.Compose(context.Background(), "What classes exist?", rows)
	require.NoError(t, err)
	assert.Equal(t, "The codebase defines one class, Calculator.", answer)

	// The prompt carries both the question and the formatted rows.
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "What classes exist?")
	assert.Contains(t, client.prompts[0], "Calculator")
}

func TestFallbackComposer_FallsBackWhenUnavailable(t *testing.T) {
	primary := &stubLLM{err: fmt.Errorf("%w: no model loaded", llm.ErrUnavailable)}
	composer := &fallbackComposer{
		primary:  NewLLMComposer(primary),
		fallback: NewMockComposer(),
	}

	answer, err := composer.Compose(context.Background(), "classes?", nil)
	require.NoError(t, err)
	assert.Equal(t, "I couldn't find any matching entities in the codebase.", answer)
}

func TestFallbackComposer_PropagatesOtherErrors(t *testing.T) {
	primary := &stubLLM{err: fmt.Errorf("context length exceeded")}
	composer := &fallbackComposer{
		primary:  NewLLMComposer(primary),
		fallback: NewMockComposer(),
	}

	_, err := composer.Compose(context.Background(), "classes?", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context length exceeded")
}
