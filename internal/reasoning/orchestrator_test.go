package reasoning

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evocore/internal/modelapi"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	embedder := modelapi.NewDeterministicStub(32)
	cache := NewCache(embedder, 0.85)
	tree := NewDecisionTree(0.9, 500)
	templates, err := NewTemplateStore(filepath.Join(t.TempDir(), "templates"))
	require.NoError(t, err)
	t.Cleanup(func() { templates.Close() })
	selector := NewToolSelector(0.1, 0.2)
	reasoner := modelapi.NewDeterministicStub(32)
	return NewOrchestrator(cache, tree, templates, selector, reasoner)
}

func TestCreateExecutionPlan_TemplateMatchPath(t *testing.T) {
	o := newTestOrchestrator(t)
	tools := []ToolBrief{{Name: "debugger", Description: "debugs code", Category: "debugger"}}

	plan, err := o.CreateExecutionPlan(context.Background(), "please debug this crashing issue with medium complexity", RequestContext{ProjectType: "go-module", CodeLanguage: "go"}, tools)
	require.NoError(t, err)
	assert.NotEmpty(t, plan.Steps)
}

func TestCreateExecutionPlan_CacheHitOnRepeatRequest(t *testing.T) {
	o := newTestOrchestrator(t)
	tools := []ToolBrief{{Name: "editor", Description: "edits files", Category: "editor"}}
	ctx := context.Background()
	reqCtx := RequestContext{ProjectType: "go-module", CodeLanguage: "go"}

	first, err := o.CreateExecutionPlan(ctx, "refactor the orchestrator module", reqCtx, tools)
	require.NoError(t, err)

	second, err := o.CreateExecutionPlan(ctx, "refactor the orchestrator module", reqCtx, tools)
	require.NoError(t, err)
	assert.NotNil(t, second.AdaptedAt)
	assert.Equal(t, len(first.Steps), len(second.Steps))
}

func TestCreateExecutionPlan_ConfidenceWithinBounds(t *testing.T) {
	o := newTestOrchestrator(t)
	tools := []ToolBrief{{Name: "editor", Description: "edits files", Category: "editor"}}

	plan, err := o.CreateExecutionPlan(context.Background(), "add a brand new feature for exports", RequestContext{ProjectType: "go-module", CodeLanguage: "go"}, tools)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, plan.Confidence, 0.0)
	assert.LessOrEqual(t, plan.Confidence, 1.0)
}
