package evolution

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHypothesisGenerator_ThresholdSourcesFireOnPoorProfile(t *testing.T) {
	g := NewHypothesisGenerator(nil, 10, filepath.Join(t.TempDir(), "hypotheses.json"))
	profile := PerformanceProfile{ResponseTimeMs: 2500, Accuracy: 0.5, TokenEfficiency: 0.4, MemoryUtilization: 0.9}

	hyps, err := g.Generate(context.Background(), "2026-08-01T00:00:00Z", HypothesisGenerationContext{CurrentMetrics: profile})
	require.NoError(t, err)

	types := map[HypothesisType]bool{}
	for _, h := range hyps {
		types[h.Type] = true
	}
	assert.True(t, types[HypothesisResponseTime])
	assert.True(t, types[HypothesisModelSelection])
	assert.True(t, types[HypothesisChunking])
	assert.True(t, types[HypothesisMemoryOptimization])
}

func TestHypothesisGenerator_HealthyProfileProducesNoThresholdHypotheses(t *testing.T) {
	g := NewHypothesisGenerator(nil, 10, filepath.Join(t.TempDir(), "hypotheses.json"))
	profile := PerformanceProfile{ResponseTimeMs: 500, Accuracy: 0.95, TokenEfficiency: 0.9, MemoryUtilization: 0.3}

	hyps, err := g.Generate(context.Background(), "2026-08-01T00:00:00Z", HypothesisGenerationContext{CurrentMetrics: profile})
	require.NoError(t, err)
	assert.Empty(t, hyps)
}

func TestHypothesisGenerator_CapsAtMaxHypothesesPerCycle(t *testing.T) {
	g := NewHypothesisGenerator(nil, 2, filepath.Join(t.TempDir(), "hypotheses.json"))
	profile := PerformanceProfile{ResponseTimeMs: 5000, Accuracy: 0.1, TokenEfficiency: 0.1, MemoryUtilization: 0.99}

	bottlenecks := []Bottleneck{
		{Component: "cache", Type: "latency", Severity: "high", Impact: 20},
		{Component: "vectorindex", Type: "latency", Severity: "high", Impact: 15},
	}
	hyps, err := g.Generate(context.Background(), "2026-08-01T00:00:00Z", HypothesisGenerationContext{CurrentMetrics: profile, Bottlenecks: bottlenecks})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(hyps), 2)
}

func TestHypothesisGenerator_PersistsAppendOnlyHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hypotheses.json")
	g := NewHypothesisGenerator(nil, 10, path)
	profile := PerformanceProfile{ResponseTimeMs: 3000}

	_, err := g.Generate(context.Background(), "cycle-1", HypothesisGenerationContext{CurrentMetrics: profile})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "cycle-2", HypothesisGenerationContext{CurrentMetrics: profile})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var history map[string][]Hypothesis
	require.NoError(t, json.Unmarshal(data, &history))
	assert.Len(t, history, 2)
	assert.Contains(t, history, "cycle-1")
	assert.Contains(t, history, "cycle-2")
}

func TestHypothesisGenerator_PatternReuseSuppressedAfterRecentFailure(t *testing.T) {
	g := NewHypothesisGenerator(nil, 10, filepath.Join(t.TempDir(), "hypotheses.json"))

	failedID := "h-failed"
	base := Hypothesis{ID: "h1", Type: HypothesisParameterTuning, TargetComponent: "cache", ProposedChanges: map[string]any{"ttl": 60.0}}
	history := []HistoricalRecord{
		{Hypothesis: base, Success: true, Improvement: 5},
		{Hypothesis: base, Success: true, Improvement: 7},
		{Hypothesis: Hypothesis{ID: failedID, Type: HypothesisParameterTuning, TargetComponent: "cache"}, Success: false},
	}

	hyps, err := g.Generate(context.Background(), "cycle-1", HypothesisGenerationContext{
		HistoricalMetrics: history,
		RecentFailures:    []string{failedID},
	})
	require.NoError(t, err)
	for _, h := range hyps {
		assert.NotEqual(t, "pattern-reuse", h.Source)
	}
}

func TestHypothesisGenerator_PatternReuseEmitsPerturbedVariant(t *testing.T) {
	g := NewHypothesisGenerator(nil, 10, filepath.Join(t.TempDir(), "hypotheses.json"))

	base := Hypothesis{ID: "h1", Type: HypothesisParameterTuning, TargetComponent: "cache", ProposedChanges: map[string]any{"ttl": 60.0}}
	history := []HistoricalRecord{
		{Hypothesis: base, Success: true, Improvement: 10},
		{Hypothesis: base, Success: true, Improvement: 20},
	}

	hyps, err := g.Generate(context.Background(), "cycle-1", HypothesisGenerationContext{HistoricalMetrics: history})
	require.NoError(t, err)

	var found bool
	for _, h := range hyps {
		if h.Source == "pattern-reuse" {
			found = true
			assert.InDelta(t, 12.0, h.ExpectedImprovement, 0.001) // 0.8 * mean(10,20)
		}
	}
	assert.True(t, found)
}

func TestHypothesisScore_WithinBounds(t *testing.T) {
	g := NewHypothesisGenerator(nil, 10, "")
	h := Hypothesis{ExpectedImprovement: 50, EstimatedDuration: 120, Risk: RiskMedium, Priority: PriorityHigh}
	score := g.score(h)
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, priorityScores[PriorityHigh]*(1.0))
}
