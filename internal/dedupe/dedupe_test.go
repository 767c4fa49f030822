package dedupe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeenAndMark(t *testing.T) {
	r, err := New(16, nil, 0)
	require.NoError(t, err)

	ctx := context.Background()
	assert.False(t, r.Seen(ctx, "12345"))

	r.Mark(ctx, "12345")
	assert.True(t, r.Seen(ctx, "12345"))
	assert.False(t, r.Seen(ctx, "99999"))
}

func TestEvictionForgetsOldEntries(t *testing.T) {
	r, err := New(2, nil, 0)
	require.NoError(t, err)

	ctx := context.Background()
	r.Mark(ctx, "a")
	r.Mark(ctx, "b")
	r.Mark(ctx, "c")

	// capacity 2: the oldest entry is gone, recent ones remain
	assert.False(t, r.Seen(ctx, "a"))
	assert.True(t, r.Seen(ctx, "b"))
	assert.True(t, r.Seen(ctx, "c"))
}
