package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine_RejectsOverlapGEChunkSize(t *testing.T) {
	_, err := NewEngine(100, 100)
	require.Error(t, err)

	_, err = NewEngine(100, 150)
	require.Error(t, err)

	_, err = NewEngine(100, 50)
	require.NoError(t, err)
}

func TestChunk_SmallFileSingleChunk(t *testing.T) {
	e, err := NewEngine(1000, 100)
	require.NoError(t, err)

	content := "package main\n\nfunc main() {}\n"
	chunks, err := e.Chunk(StrategyFixedSize, content, "main.go")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Metadata.Start)
	assert.Equal(t, len(content), chunks[0].Metadata.End)
}

func TestChunk_FixedSizeReproducesSourceWithOverlapRemoved(t *testing.T) {
	e, err := NewEngine(20, 5)
	require.NoError(t, err)
	content := strings.Repeat("abcdefghij", 10) // 100 chars

	chunks, err := e.Chunk(StrategyFixedSize, content, "f.txt")
	require.NoError(t, err)
	require.True(t, len(chunks) > 1)

	var rebuilt strings.Builder
	for i, c := range chunks {
		if i == 0 {
			rebuilt.WriteString(c.Content)
			continue
		}
		// remove the overlapping prefix shared with the previous chunk
		overlap := e.Overlap
		if overlap > len(c.Content) {
			overlap = len(c.Content)
		}
		rebuilt.WriteString(c.Content[overlap:])
	}
	assert.Equal(t, content, rebuilt.String())
}

func TestChunk_FunctionAwareSplitsOnDeclarators(t *testing.T) {
	e, err := NewEngine(1000, 50)
	require.NoError(t, err)
	content := "func A() {\n  doA()\n}\n\nfunc B() {\n  doB()\n}\n"

	chunks, err := e.Chunk(StrategyFunctionAware, content, "f.go")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Content, "func A")
	assert.Contains(t, chunks[1].Content, "func B")
}

func TestChunk_ParagraphAwareSplitsOnBlankLines(t *testing.T) {
	e, err := NewEngine(30, 5)
	require.NoError(t, err)
	content := "Para one is short.\n\nPara two is also short.\n\nPara three too."

	chunks, err := e.Chunk(StrategyParagraphAware, content, "f.md")
	require.NoError(t, err)
	assert.True(t, len(chunks) >= 2)
}

func TestChunk_SemanticAwareDispatchesByType(t *testing.T) {
	e, err := NewEngine(1000, 50)
	require.NoError(t, err)

	goChunks, err := e.Chunk(StrategySemanticAware, "func A() {}\n", "f.go")
	require.NoError(t, err)
	require.Len(t, goChunks, 1)
	assert.Equal(t, "function-aware", goChunks[0].Metadata.Type)

	docChunks, err := e.Chunk(StrategySemanticAware, "hello\n\nworld", "f.md")
	require.NoError(t, err)
	require.Len(t, docChunks, 1)
	assert.Equal(t, "paragraph-aware", docChunks[0].Metadata.Type)
}

func TestCreateSlidingWindow_UnderBudgetReturnsUnchanged(t *testing.T) {
	content := "short content"
	result := CreateSlidingWindow(content, 1000)
	assert.Equal(t, content, result.Content)
	assert.Equal(t, 1, result.TotalChunks)
}

func TestCreateSlidingWindow_OverBudgetCompressesMiddle(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("This is paragraph sentence one. More filler text here to pad it out.\n\n")
	}
	content := b.String()

	result := CreateSlidingWindow(content, 50)
	assert.True(t, EstimateTokens(result.Content) < EstimateTokens(content))
	assert.Contains(t, result.Content, "compressed")
	assert.True(t, strings.HasPrefix(result.Content, content[:1]))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.True(t, EstimateTokens("abcdefg") >= 1)
}
