package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/ast"
	"github.com/archaeology-ai/archaeologist/services/archaeologist/store"
)

// countingTranslator records every question it is asked to translate.
type countingTranslator struct {
	queries   []string
	questions []string
	err       error
}

func (t *countingTranslator) Translate(ctx context.Context, question string) (string, error) {
	t.questions = append(t.questions, question)
	if t.err != nil {
		return "", t.err
	}
	if len(t.queries) > 0 {
		q := t.queries[0]
		if len(t.queries) > 1 {
			t.queries = t.queries[1:]
		}
		return q, nil
	}
	return "MATCH (n) RETURN n.id LIMIT 10", nil
}

// rejectingStore rejects every query with a *store.QueryError.
type rejectingStore struct {
	store.GraphStore
	calls int
}

func (s *rejectingStore) Query(ctx context.Context, query string) ([]store.Row, error) {
	s.calls++
	return nil, &store.QueryError{Query: query, Message: "no such label"}
}

// brokenStore fails with an infrastructure error, not a query rejection.
type brokenStore struct {
	store.GraphStore
}

func (s *brokenStore) Query(ctx context.Context, query string) ([]store.Row, error) {
	return nil, fmt.Errorf("connection refused")
}

func TestExecutor_Execute_FirstAttemptSucceeds(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.UpsertEntities(ctx, []ast.Entity{ast.NewFileEntity("a.py", "python")}))

	translator := &countingTranslator{queries: []string{"MATCH (f:File) RETURN f.id, f.path"}}
	executor := NewExecutor(st, translator)

	result, err := executor.Execute(ctx, "What files are there?")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Attempts)
	assert.Len(t, result.Rows, 1)
	assert.Len(t, translator.questions, 1, "success should not trigger another translation")
}

func TestExecutor_Execute_EmptyRowsIsSuccess(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	translator := &countingTranslator{queries: []string{"MATCH (c:Class) RETURN c.id, c.name"}}
	executor := NewExecutor(st, translator)

	result, err := executor.Execute(ctx, "What classes are there?")
	require.NoError(t, err, "a query matching nothing is a success, not a failure")
	assert.Empty(t, result.Rows)
	assert.Equal(t, 1, result.Attempts)
}

func TestExecutor_Execute_RetryBound(t *testing.T) {
	ctx := context.Background()
	st := &rejectingStore{}
	translator := &countingTranslator{}
	executor := NewExecutor(st, translator, WithMaxRetries(2))

	_, err := executor.Execute(ctx, "anything")
	require.Error(t, err)

	var exhausted *TranslationExhaustedError
	require.True(t, errors.As(err, &exhausted))

	// Exactly maxRetries+1 attempts: the first, plus two corrections.
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, st.calls)
	assert.Len(t, translator.questions, 3)
	assert.Equal(t, "no such label", exhausted.LastMessage)
	assert.NotEmpty(t, exhausted.LastQuery)
}

func TestExecutor_Execute_ZeroRetries(t *testing.T) {
	ctx := context.Background()
	st := &rejectingStore{}
	executor := NewExecutor(st, &countingTranslator{}, WithMaxRetries(0))

	_, err := executor.Execute(ctx, "anything")

	var exhausted *TranslationExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 1, exhausted.Attempts, "zero retries means a single attempt")
}

func TestExecutor_Execute_RetryEnrichesQuestion(t *testing.T) {
	ctx := context.Background()
	st := &rejectingStore{}
	translator := &countingTranslator{}
	executor := NewExecutor(st, translator, WithMaxRetries(1))

	_, err := executor.Execute(ctx, "list the files")
	require.Error(t, err)
	require.Len(t, translator.questions, 2)

	// First attempt sees the raw question.
	assert.Equal(t, "list the files", translator.questions[0])

	// The correction attempt sees the failing query and the diagnostic,
	// plus the original question.
	enriched := translator.questions[1]
	assert.Contains(t, enriched, "list the files")
	assert.Contains(t, enriched, "no such label")
	assert.True(t, strings.Contains(enriched, "MATCH"),
		"enriched question should carry the failing query")
}

func TestExecutor_Execute_TranslationErrorAborts(t *testing.T) {
	ctx := context.Background()
	st := &rejectingStore{}
	translator := &countingTranslator{err: fmt.Errorf("prompt too long")}
	executor := NewExecutor(st, translator)

	_, err := executor.Execute(ctx, "anything")
	require.Error(t, err)

	var exhausted *TranslationExhaustedError
	assert.False(t, errors.As(err, &exhausted),
		"translation failures abort, they are not retried")
	assert.Equal(t, 0, st.calls)
}

func TestExecutor_Execute_InfrastructureErrorAborts(t *testing.T) {
	ctx := context.Background()
	translator := &countingTranslator{}
	executor := NewExecutor(&brokenStore{}, translator)

	_, err := executor.Execute(ctx, "anything")
	require.Error(t, err)

	var exhausted *TranslationExhaustedError
	assert.False(t, errors.As(err, &exhausted),
		"infrastructure failures abort, they are not retried")
	assert.Len(t, translator.questions, 1)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestTranslationExhaustedError_Message(t *testing.T) {
	err := &TranslationExhaustedError{Attempts: 3, LastQuery: "MATCH x", LastMessage: "bad syntax"}
	assert.Equal(t, "translation exhausted after 3 attempts: bad syntax", err.Error())
}

// cancelingStore cancels the execution context during its first Query
// call and then fails like a schema rejection would.
type cancelingStore struct {
	rejectingStore
	cancel context.CancelFunc
}

func (s *cancelingStore) Query(ctx context.Context, query string) ([]store.Row, error) {
	s.cancel()
	return s.rejectingStore.Query(ctx, query)
}

func TestExecutor_Execute_CanceledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	translator := &countingTranslator{}
	st := &rejectingStore{}
	executor := NewExecutor(st, translator)

	_, err := executor.Execute(ctx, "list all files")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	var exhausted *TranslationExhaustedError
	assert.False(t, errors.As(err, &exhausted),
		"cancellation must not be reported as exhaustion")
	assert.Empty(t, translator.questions, "no generation after cancellation")
	assert.Equal(t, 0, st.calls)
}

func TestExecutor_Execute_CancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	translator := &countingTranslator{}
	st := &cancelingStore{cancel: cancel}
	executor := NewExecutor(st, translator)

	_, err := executor.Execute(ctx, "list all files")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, translator.questions, 1, "retry budget must not be spent on a dead request")
	assert.Equal(t, 1, st.calls)
}
