package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_ReturnsStoredLogger(t *testing.T) {
	l := NewNop()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}

func TestFromContext_FallsBackWhenMissing(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Same(t, l, FromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "debug",
		"WARNING": "warn",
		"error":   "error",
		"":        "info",
		"bogus":   "info",
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in).String(), "level %q", in)
	}
}
