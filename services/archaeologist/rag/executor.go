package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/store"
)

// DefaultMaxRetries is the number of corrective attempts granted after
// the first failed execution. The total attempt count is one higher.
const DefaultMaxRetries = 2

// TranslationExhaustedError reports that every translation attempt
// produced a query the store rejected.
//
// It carries the last failing query and diagnostic so API callers can
// surface something actionable instead of a generic apology.
type TranslationExhaustedError struct {
	// Attempts is the total number of generate-execute attempts made.
	Attempts int

	// LastQuery is the final query that failed.
	LastQuery string

	// LastMessage is the store diagnostic from the final attempt.
	LastMessage string
}

func (e *TranslationExhaustedError) Error() string {
	return fmt.Sprintf("translation exhausted after %d attempts: %s", e.Attempts, e.LastMessage)
}

// ExecutionResult is the output of a successful generate-execute loop.
type ExecutionResult struct {
	// Query is the Cypher query that executed successfully.
	Query string

	// Rows are the result rows. May be empty: a query matching nothing
	// is a success, not a failure.
	Rows []store.Row

	// Attempts is how many generate-execute attempts it took.
	Attempts int
}

// ExecutorOption configures an Executor instance.
type ExecutorOption func(*Executor)

// WithMaxRetries sets the number of corrective attempts after the first
// failed execution. Negative values are ignored.
func WithMaxRetries(n int) ExecutorOption {
	return func(e *Executor) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// Executor runs the generate-execute-retry loop.
//
// Description:
//
//	Each attempt translates the question and executes the result. When
//	the store rejects a query, the next attempt sees the question
//	enriched with the failing query and the store's diagnostic, giving
//	the translator the context to self-correct. Only store rejections
//	(*store.QueryError) are retried: translation failures and
//	infrastructure errors abort immediately, and an empty result set is
//	a success.
//
// Thread Safety:
//
//	Executor is safe for concurrent use.
type Executor struct {
	st         store.GraphStore
	translator Translator
	maxRetries int
}

// NewExecutor creates an Executor over the given store and translator.
func NewExecutor(st store.GraphStore, translator Translator, opts ...ExecutorOption) *Executor {
	e := &Executor{
		st:         st,
		translator: translator,
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute runs the loop for a question.
//
// Outputs:
//   - *ExecutionResult: The successful query, its rows, and the attempt
//     count. Never nil on success.
//   - error: A *TranslationExhaustedError when every attempt failed on a
//     store rejection; the translator's error when translation itself
//     failed; the context's error when canceled between attempts; or the
//     store's error for other infrastructure failures.
func (e *Executor) Execute(ctx context.Context, question string) (*ExecutionResult, error) {
	ctx, span := tracer.Start(ctx, "rag.Execute",
		trace.WithAttributes(attribute.Int("max_retries", e.maxRetries)))
	defer span.End()

	enriched := question

	var lastQuery, lastMessage string

	for attempt := 1; attempt <= e.maxRetries+1; attempt++ {
		// Abort before the next generation once the caller is gone; a
		// canceled question must never burn the retry budget.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		query, err := e.translator.Translate(ctx, enriched)
		if err != nil {
			return nil, fmt.Errorf("attempt %d: %w", attempt, err)
		}

		slog.Debug("generated query",
			slog.Int("attempt", attempt),
			slog.String("query", query))

		rows, err := e.st.Query(ctx, query)
		if err == nil {
			recordQueryOutcome(ctx, attempt, true)
			return &ExecutionResult{
				Query:    query,
				Rows:     rows,
				Attempts: attempt,
			}, nil
		}

		var qerr *store.QueryError
		if !errors.As(err, &qerr) {
			// Infrastructure failure; another translation won't help.
			return nil, fmt.Errorf("attempt %d: %w", attempt, err)
		}

		slog.Warn("query rejected by store",
			slog.Int("attempt", attempt),
			slog.String("query", query),
			slog.String("error", qerr.Message))

		lastQuery = query
		lastMessage = qerr.Message
		enriched = fmt.Sprintf(retryFeedbackTemplate, question, query, qerr.Message)
	}

	recordQueryOutcome(ctx, e.maxRetries+1, false)

	return nil, &TranslationExhaustedError{
		Attempts:    e.maxRetries + 1,
		LastQuery:   lastQuery,
		LastMessage: lastMessage,
	}
}
