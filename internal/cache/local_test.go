package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCache_SetGet(t *testing.T) {
	c := NewLocalCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, []string{"proj", "modA", "fileX"}, "value1", 0))

	v, ok := c.Get(ctx, []string{"proj", "modA", "fileX"})
	require.True(t, ok)
	assert.Equal(t, "value1", v)
}

func TestLocalCache_InvalidatePrefix(t *testing.T) {
	c := NewLocalCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, []string{"proj", "modA", "fileX"}, "v1", 0))
	require.NoError(t, c.Set(ctx, []string{"proj", "modB", "fileY"}, "v2", 0))

	require.NoError(t, c.Invalidate(ctx, []string{"proj", "modA"}))

	_, ok := c.Get(ctx, []string{"proj", "modA", "fileX"})
	assert.False(t, ok, "invalidated key must be gone")

	v, ok := c.Get(ctx, []string{"proj", "modB", "fileY"})
	require.True(t, ok, "sibling key must remain readable")
	assert.Equal(t, "v2", v)
}

func TestLocalCache_TTLExpiry(t *testing.T) {
	c := NewLocalCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, []string{"k"}, "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get(ctx, []string{"k"})
	assert.False(t, ok)
}

func TestLocalCache_Stats(t *testing.T) {
	c := NewLocalCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, []string{"a"}, 1, 0))
	require.NoError(t, c.Set(ctx, []string{"a", "b"}, 2, 0))
	require.NoError(t, c.Set(ctx, []string{"a", "b", "c"}, 3, 0))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.PerLevel[1].Count)
	assert.Equal(t, 1, stats.PerLevel[2].Count)
	assert.Equal(t, 1, stats.PerLevel[3].Count)
}

func TestLocalCache_Warmup(t *testing.T) {
	c := NewLocalCache()
	ctx := context.Background()

	err := c.Warmup(ctx, []WarmupEntry{
		{Key: []string{"hot", "path", "1"}, Value: "a"},
		{Key: []string{"hot", "path", "2"}, Value: "b"},
	})
	require.NoError(t, err)

	v, ok := c.Get(ctx, []string{"hot", "path", "1"})
	require.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestLocalCache_LastWriterWins(t *testing.T) {
	c := NewLocalCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, []string{"k"}, "first", 0))
	require.NoError(t, c.Set(ctx, []string{"k"}, "second", 0))

	v, ok := c.Get(ctx, []string{"k"})
	require.True(t, ok)
	assert.Equal(t, "second", v)
}
