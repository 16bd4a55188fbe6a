package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/store"
	"github.com/archaeology-ai/archaeologist/services/llm"
)

// QueryResponse is the grounded answer to a natural-language question.
type QueryResponse struct {
	// Response is the natural-language answer.
	Response string `json:"response"`

	// NodeIDs are the entity IDs grounding the answer, in first-seen
	// row order. Empty when the query matched nothing.
	NodeIDs []string `json:"node_ids"`

	// CypherQuery is the query that produced the answer.
	CypherQuery string `json:"cypher_query,omitempty"`

	// Attempts is how many generate-execute attempts the query took.
	Attempts int `json:"attempts"`
}

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithRetryBudget sets the executor's corrective attempt budget.
func WithRetryBudget(n int) ServiceOption {
	return func(s *Service) {
		s.maxRetries = n
	}
}

// Service is the question-answering pipeline: translate, execute,
// ground, compose.
//
// Description:
//
//	Service wires a Translator, Executor, and Composer over a GraphStore.
//	With an LLM client it translates and composes through the backend,
//	falling back per-request to the deterministic mock path whenever the
//	backend reports itself unavailable. With a nil client it runs the
//	deterministic path outright, which is how tests and offline setups
//	use it.
//
// Thread Safety:
//
//	Service is safe for concurrent use.
type Service struct {
	executor *Executor
	composer Composer

	maxRetries int
}

// NewService creates the question-answering pipeline.
//
// Inputs:
//   - st: The graph store to query. Must not be nil.
//   - client: The inference backend. May be nil for deterministic-only
//     operation.
//   - opts: Optional configuration (WithRetryBudget).
func NewService(st store.GraphStore, client llm.LLMClient, opts ...ServiceOption) *Service {
	s := &Service{
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(s)
	}

	var translator Translator
	var composer Composer

	if client != nil {
		translator = &fallbackTranslator{
			primary:  NewLLMTranslator(client),
			fallback: NewMockTranslator(),
		}
		composer = &fallbackComposer{
			primary:  NewLLMComposer(client),
			fallback: NewMockComposer(),
		}
	} else {
		slog.Info("no inference backend configured, running deterministic translation")
		translator = NewMockTranslator()
		composer = NewMockComposer()
	}

	s.executor = NewExecutor(st, translator, WithMaxRetries(s.maxRetries))
	s.composer = composer

	return s
}

// ProcessQuery answers a natural-language question end to end.
//
// Outputs:
//   - *QueryResponse: Answer, grounding IDs, and the executed query.
//     An empty result set still succeeds, with an explicit not-found
//     answer and no grounding IDs.
//   - error: A *TranslationExhaustedError when no attempt produced an
//     executable query, or the underlying failure for translation and
//     infrastructure errors.
func (s *Service) ProcessQuery(ctx context.Context, question string) (*QueryResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	ctx, span := tracer.Start(ctx, "rag.ProcessQuery",
		trace.WithAttributes(attribute.Int("question_length", len(question))))
	defer span.End()

	start := time.Now()

	result, err := s.executor.Execute(ctx, question)
	if err != nil {
		return nil, err
	}

	answer, err := s.composer.Compose(ctx, question, result.Rows)
	if err != nil {
		return nil, err
	}

	nodeIDs := ExtractNodeIDs(result.Rows)

	slog.Info("query answered",
		slog.Int("rows", len(result.Rows)),
		slog.Int("grounded_nodes", len(nodeIDs)),
		slog.Int("attempts", result.Attempts),
		slog.Duration("elapsed", time.Since(start)))

	return &QueryResponse{
		Response:    answer,
		NodeIDs:     nodeIDs,
		CypherQuery: result.Query,
		Attempts:    result.Attempts,
	}, nil
}
