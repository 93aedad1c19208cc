package processed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	ok, err := s.IsProcessed(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.MarkProcessed(ctx, "a", time.Minute))
	require.NoError(t, s.MarkProcessed(ctx, "a", time.Minute))

	ok, err = s.IsProcessed(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = s.IsProcessed(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok, "expired keys are forgotten")

	require.NoError(t, s.MarkProcessed(ctx, "b", time.Minute))
	require.Len(t, s.keys, 1)
}
