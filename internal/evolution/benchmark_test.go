package evolution

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBenchmarkRunner_RunPersistsAndScoresSuites(t *testing.T) {
	dir := t.TempDir()
	runner := NewDeterministicSuiteRunner()
	runner.Seed = map[string]float64{"sweBench": 1.0, "humanEval": 0.5, "polyglot": 0.9}
	b := NewBenchmarkRunner(runner, filepath.Join(dir, "results"))

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results.Results, len(CanonicalSuites))
	assert.Equal(t, 100.0, results.ScoreBySuite("sweBench"))
	assert.Equal(t, 50.0, results.ScoreBySuite("humanEval"))
	assert.Equal(t, 90.0, results.ScoreBySuite("polyglot"))

	history, err := b.GetHistoricalResults(10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, results.RunID, history[0].RunID)
}

func TestBenchmarkRunner_RunInBranchRecordsBranch(t *testing.T) {
	b := NewBenchmarkRunner(NewDeterministicSuiteRunner(), "")
	results, err := b.RunInBranch(context.Background(), "evolution-abc-123")
	require.NoError(t, err)
	assert.Equal(t, "evolution-abc-123", results.Branch)
}

func TestCalculateImprovement_PositiveWhenCurrentScoresHigher(t *testing.T) {
	b := NewBenchmarkRunner(NewDeterministicSuiteRunner(), "")
	baseline := BenchmarkResults{Results: []BenchmarkResult{
		{Suite: "sweBench", Score: 80}, {Suite: "humanEval", Score: 80}, {Suite: "polyglot", Score: 80},
	}}
	current := BenchmarkResults{Results: []BenchmarkResult{
		{Suite: "sweBench", Score: 90}, {Suite: "humanEval", Score: 90}, {Suite: "polyglot", Score: 90},
	}}
	improvement := b.CalculateImprovement(baseline, current)
	assert.InDelta(t, 12.5, improvement, 0.001)
}

func TestCalculateImprovement_ZeroWhenBaselineAverageZero(t *testing.T) {
	b := NewBenchmarkRunner(NewDeterministicSuiteRunner(), "")
	baseline := BenchmarkResults{Results: []BenchmarkResult{{Suite: "sweBench", Score: 0}}}
	current := BenchmarkResults{Results: []BenchmarkResult{{Suite: "sweBench", Score: 50}}}
	assert.Equal(t, 0.0, b.CalculateImprovement(baseline, current))
}

func TestAverageScore_ExcludesZeroScoringSuites(t *testing.T) {
	r := BenchmarkResults{Results: []BenchmarkResult{
		{Suite: "a", Score: 0}, {Suite: "b", Score: 50}, {Suite: "c", Score: 100},
	}}
	assert.Equal(t, 75.0, averageScore(r))
}

func TestGetHistoricalResults_MissingDirReturnsEmpty(t *testing.T) {
	b := NewBenchmarkRunner(NewDeterministicSuiteRunner(), filepath.Join(t.TempDir(), "missing"))
	history, err := b.GetHistoricalResults(5)
	require.NoError(t, err)
	assert.Empty(t, history)
}
