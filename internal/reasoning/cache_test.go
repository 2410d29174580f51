package reasoning

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evocore/internal/modelapi"
)

func TestCache_StoreThenFindSimilar(t *testing.T) {
	embedder := modelapi.NewDeterministicStub(32)
	c := NewCache(embedder, 0.85)
	ctx := context.Background()

	embedding, err := c.Embed(ctx, "refactor the orchestrator")
	require.NoError(t, err)
	c.Store("refactor the orchestrator", embedding, ExecutionPlan{Steps: []PlanStep{{Type: "analysis", Description: "x"}}})

	item, hit, err := c.FindSimilar(ctx, "refactor the orchestrator")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, 1, item.AccessCount)
}

func TestCache_NoMatchBelowThreshold(t *testing.T) {
	embedder := modelapi.NewDeterministicStub(256)
	c := NewCache(embedder, 0.85)
	ctx := context.Background()

	embedding, err := c.Embed(ctx, "alpha request")
	require.NoError(t, err)
	c.Store("alpha request", embedding, ExecutionPlan{})

	_, hit, err := c.FindSimilar(ctx, "completely unrelated beta query")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCache_SaveLoadRoundTrip(t *testing.T) {
	embedder := modelapi.NewDeterministicStub(16)
	c := NewCache(embedder, 0.85)
	ctx := context.Background()

	embedding, err := c.Embed(ctx, "add a feature")
	require.NoError(t, err)
	c.Store("add a feature", embedding, ExecutionPlan{Steps: []PlanStep{{Type: "analysis", Description: "y"}}})

	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, c.Save(path))

	loaded := NewCache(embedder, 0.85)
	require.NoError(t, loaded.Load(path))

	_, hit, err := loaded.FindSimilar(ctx, "add a feature")
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestCache_EmbeddingMemoizationReused(t *testing.T) {
	embedder := modelapi.NewDeterministicStub(16)
	c := NewCache(embedder, 0.85)
	ctx := context.Background()

	a, err := c.Embed(ctx, "same request")
	require.NoError(t, err)
	b, err := c.Embed(ctx, "same request")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
