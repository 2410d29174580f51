package reasoning

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evocore/internal/modelapi"
)

func TestDecisionTree_LearnThenClassifyMatches(t *testing.T) {
	embedder := modelapi.NewDeterministicStub(32)
	tree := NewDecisionTree(0.9, 500)
	ctx := context.Background()

	embedding, err := embedder.Embed(ctx, []string{"fix the login bug"})
	require.NoError(t, err)

	tree.Learn("fix the login bug", embedding[0], []string{"debugger"}, "medium")
	pattern := tree.Classify("fix the login bug", embedding[0], 2)

	assert.False(t, pattern.IsNewPattern)
	assert.Equal(t, "medium", pattern.Complexity)
}

func TestDecisionTree_UnknownRequestFallsBackToKeywords(t *testing.T) {
	tree := NewDecisionTree(0.9, 500)
	embedding := make([]float32, 32)
	embedding[0] = 1

	pattern := tree.Classify("please optimize this slow query", embedding, 1)
	assert.True(t, pattern.IsNewPattern)
	assert.Equal(t, "optimization", pattern.Category)
	assert.Equal(t, "simple", pattern.Complexity)
}

func TestDecisionTree_ComplexityBuckets(t *testing.T) {
	assert.Equal(t, "simple", classifyComplexity("fix bug", 1))
	assert.Equal(t, "medium", classifyComplexity("please refactor this component to use the new interface cleanly", 3))
	assert.Equal(t, "complex", classifyComplexity("this is a very long and complicated request with many many many many many many words in it", 8))
}

func TestDecisionTree_PruneByScoreWhenOverCapacity(t *testing.T) {
	tree := NewDecisionTree(0.9, 2)
	embedder := modelapi.NewDeterministicStub(16)
	ctx := context.Background()

	for _, req := range []string{"request one", "request two", "request three"} {
		embedding, err := embedder.Embed(ctx, []string{req})
		require.NoError(t, err)
		tree.Learn(req, embedding[0], nil, "simple")
	}

	tree.mu.Lock()
	count := len(tree.patterns)
	tree.mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestDecisionTree_SaveLoadRoundTrip(t *testing.T) {
	tree := NewDecisionTree(0.9, 500)
	embedder := modelapi.NewDeterministicStub(16)
	ctx := context.Background()

	embedding, err := embedder.Embed(ctx, []string{"add a new test"})
	require.NoError(t, err)
	tree.Learn("add a new test", embedding[0], []string{"test_runner"}, "simple")

	path := filepath.Join(t.TempDir(), "patterns.json")
	require.NoError(t, tree.Save(path))

	loaded := NewDecisionTree(0.9, 500)
	require.NoError(t, loaded.Load(path))

	pattern := loaded.Classify("add a new test", embedding[0], 1)
	assert.False(t, pattern.IsNewPattern)
}
