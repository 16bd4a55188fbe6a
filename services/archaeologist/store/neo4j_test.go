package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyQueryFailure_ServerErrorBecomesQueryError(t *testing.T) {
	err := classifyQueryFailure("MATCH (n:Module) RETURN n", errors.New("Unknown label `Module`"))

	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "MATCH (n:Module) RETURN n", qerr.Query)
	assert.Equal(t, "Unknown label `Module`", qerr.Message)
}

func TestClassifyQueryFailure_ContextErrorsSurfaceUnwrapped(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"canceled", context.Canceled},
		{"deadline exceeded", context.DeadlineExceeded},
		{"wrapped canceled", fmt.Errorf("run query: %w", context.Canceled)},
		{"wrapped deadline", fmt.Errorf("run query: %w", context.DeadlineExceeded)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyQueryFailure("MATCH (n) RETURN n.id", tt.err)

			var qerr *QueryError
			assert.False(t, errors.As(err, &qerr),
				"cancellation must not be classified as a correctable query rejection")
			assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
		})
	}
}
