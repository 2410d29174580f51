package reasoning

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateStore_BuiltinSetWhenDirEmpty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "templates")
	store, err := NewTemplateStore(dir)
	require.NoError(t, err)
	defer store.Close()

	tmpl, hit := store.FindMatch(Pattern{Category: "debugging", Complexity: "medium"})
	require.True(t, hit)
	assert.Equal(t, "debug_issue", tmpl.ID)
}

func TestTemplateStore_LoadsCustomTemplatesFromDisk(t *testing.T) {
	dir := t.TempDir()
	custom := PlanTemplate{
		ID: "custom_one", Name: "Custom One", Description: "a custom template",
		Category: "testing", Complexity: "simple",
		Plan: TemplatePlan{Steps: []PlanStep{{Type: "tool_use", Tool: "test_runner", Description: "run {{target}}"}}},
	}
	data, err := json.Marshal(custom)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom_one.json"), data, 0o644))

	store, err := NewTemplateStore(dir)
	require.NoError(t, err)
	defer store.Close()

	tmpl, hit := store.FindMatch(Pattern{Category: "testing", Complexity: "simple"})
	require.True(t, hit)
	assert.Equal(t, "custom_one", tmpl.ID)
}

func TestTemplateStore_NoMatchBelowScoreThreshold(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "templates")
	store, err := NewTemplateStore(dir)
	require.NoError(t, err)
	defer store.Close()

	_, hit := store.FindMatch(Pattern{Category: "unknown_category", Complexity: "unknown_complexity"})
	assert.False(t, hit)
}

func TestInstantiate_SubstitutesVariables(t *testing.T) {
	tmpl := &PlanTemplate{
		ID: "t1",
		Plan: TemplatePlan{Steps: []PlanStep{
			{Type: "tool_use", Tool: "editor", Description: "edit {{file}} now"},
		}},
	}
	plan := Instantiate(tmpl, map[string]string{"file": "main.go"})
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "edit main.go now", plan.Steps[0].Description)
}

func TestInstantiate_LeavesUnknownPlaceholderIntact(t *testing.T) {
	tmpl := &PlanTemplate{
		ID: "t1",
		Plan: TemplatePlan{Steps: []PlanStep{
			{Type: "tool_use", Tool: "editor", Description: "edit {{unknownvar}} now"},
		}},
	}
	plan := Instantiate(tmpl, map[string]string{})
	assert.Equal(t, "edit {{unknownvar}} now", plan.Steps[0].Description)
}
