package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnavailable_TransportErrorWrapsSentinel(t *testing.T) {
	err := unavailable(fmt.Errorf("dial tcp: connection refused"))
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestUnavailable_ContextErrorsSurfaceUnwrapped(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"canceled", context.Canceled},
		{"deadline exceeded", context.DeadlineExceeded},
		{"wrapped canceled", fmt.Errorf("Post \"/api/generate\": %w", context.Canceled)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := unavailable(tc.err)
			assert.False(t, errors.Is(err, ErrUnavailable),
				"caller cancellation is not a backend outage")
			assert.True(t, errors.Is(err, tc.err) || errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded))
		})
	}
}
