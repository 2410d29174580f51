package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolSelector_UpdateSuccessRate_CountersMonotonic(t *testing.T) {
	s := NewToolSelector(0.1, 0.2)
	pattern := Pattern{Category: "refactoring", Complexity: "medium"}
	ctx := RequestContext{ProjectType: "nodejs", CodeLanguage: "typescript"}

	for i := 0; i < 6; i++ {
		s.UpdateSuccessRate(pattern, ctx, "editor", true, 100)
	}
	for i := 0; i < 4; i++ {
		s.UpdateSuccessRate(pattern, ctx, "linter", false, 50)
	}

	editorQ := s.QValue(pattern, ctx, "editor")
	linterQ := s.QValue(pattern, ctx, "linter")
	assert.Greater(t, editorQ, linterQ)
	assert.GreaterOrEqual(t, editorQ, 0.0)
	assert.LessOrEqual(t, editorQ, 1.0)
}

func TestToolSelector_FailuresMonotonicallyDecreaseQValue(t *testing.T) {
	s := NewToolSelector(0.1, 0.3)
	pattern := Pattern{Category: "debugging", Complexity: "simple"}
	ctx := RequestContext{ProjectType: "go-module", CodeLanguage: "go"}

	prev := s.QValue(pattern, ctx, "debugger")
	for i := 0; i < 5; i++ {
		s.UpdateSuccessRate(pattern, ctx, "debugger", false, 10)
		cur := s.QValue(pattern, ctx, "debugger")
		assert.Less(t, cur, prev)
		prev = cur
	}
}

func TestToolSelector_AttemptsGrowMonotonically(t *testing.T) {
	s := NewToolSelector(0.1, 0.2)
	pattern := Pattern{Category: "testing", Complexity: "simple"}
	ctx := RequestContext{ProjectType: "go-module", CodeLanguage: "go"}

	s.UpdateSuccessRate(pattern, ctx, "test_runner", true, 20)
	s.mu.Lock()
	rec1 := *s.recordFor(StateKey(pattern, ctx), "test_runner")
	s.mu.Unlock()

	s.UpdateSuccessRate(pattern, ctx, "test_runner", false, 20)
	s.mu.Lock()
	rec2 := *s.recordFor(StateKey(pattern, ctx), "test_runner")
	s.mu.Unlock()

	assert.Greater(t, rec2.Attempts, rec1.Attempts)
	assert.Equal(t, rec1.Successes, rec2.Successes)
}

func TestToolSelector_SelectToolsFallsBackWhenEmpty(t *testing.T) {
	s := NewToolSelector(0, 0.2) // 0 selects the default exploration rate; exploitation threshold unreachable initially
	pattern := Pattern{Category: "unmapped_category", Complexity: "simple"}
	ctx := RequestContext{ProjectType: "go-module", CodeLanguage: "go"}

	tools := []ToolBrief{{Name: "editor", Category: "editor"}}
	selected := s.SelectTools(pattern, ctx, tools)
	assert.Equal(t, []string{"editor"}, selected)
}

func TestAdaptExplorationRate_DecaysOnHighSuccessLowDiversity(t *testing.T) {
	s := NewToolSelector(0.2, 0.2)
	s.AdaptExplorationRate(AdaptationSignal{SuccessRate: 0.9, DiversityScore: 0.1})
	assert.Less(t, s.ExplorationRate(), 0.2)
}

func TestAdaptExplorationRate_GrowsOnLowSuccess(t *testing.T) {
	s := NewToolSelector(0.1, 0.2)
	s.AdaptExplorationRate(AdaptationSignal{SuccessRate: 0.5, DiversityScore: 0.9})
	assert.Greater(t, s.ExplorationRate(), 0.1)
}
