// Package llm abstracts text-generation backends behind a single
// interface so the query engine never depends on a specific provider.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable indicates the inference backend cannot be reached or
// has no usable model. Callers treat this as a signal to fall back to
// deterministic translation rather than fail the request.
var ErrUnavailable = errors.New("llm backend unavailable")

// GenerationParams tunes a single generation request. Nil pointer fields
// mean "use the backend default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// unavailable classifies a transport failure. The caller's own
// cancellation is not a backend outage and must surface as-is so it
// never triggers the deterministic fallback.
func unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
