package evolution

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeMutator_ParameterTuningGeneratesMutation(t *testing.T) {
	root := t.TempDir()
	componentDir := filepath.Join(root, "cache")
	require.NoError(t, os.MkdirAll(componentDir, 0o755))
	configPath := filepath.Join(componentDir, "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"ttl": 60, "name": "cache"}`), 0o644))

	m := NewCodeMutator(root, 5, filepath.Join(root, "backups"))
	h := Hypothesis{ID: "h1", Type: HypothesisParameterTuning, TargetComponent: "cache", ProposedChanges: map[string]any{"ttl": 120}}

	muts, err := m.GenerateMutations(h)
	require.NoError(t, err)
	require.Len(t, muts, 1)
	assert.Equal(t, configPath, muts[0].TargetFile)
	assert.Contains(t, muts[0].NewValue, `"ttl": 120`)
	assert.Contains(t, muts[0].RollbackData, `"ttl": 60`)
}

func TestCodeMutator_ArchitectureChangeAlwaysFailsValidation(t *testing.T) {
	root := t.TempDir()
	componentDir := filepath.Join(root, "reasoning")
	require.NoError(t, os.MkdirAll(componentDir, 0o755))
	srcPath := filepath.Join(componentDir, "orchestrator.go")
	require.NoError(t, os.WriteFile(srcPath, []byte("package reasoning\n"), 0o644))

	m := NewCodeMutator(root, 5, filepath.Join(root, "backups"))
	h := Hypothesis{ID: "h1", Type: HypothesisArchitectureChange, TargetComponent: "reasoning"}

	muts, err := m.GenerateMutations(h)
	require.NoError(t, err)
	require.Len(t, muts, 1)
	assert.Contains(t, muts[0].SafetyChecks, "unsupported-architecture-change")

	err = m.ApplyMutations(muts)
	require.Error(t, err)

	// Revert semantics: content must be unchanged since rollback data equals original.
	after, err := os.ReadFile(srcPath)
	require.NoError(t, err)
	assert.Equal(t, "package reasoning\n", string(after))
}

func TestCodeMutator_PromptOptimizationNormalizesBraces(t *testing.T) {
	root := t.TempDir()
	componentDir := filepath.Join(root, "modelapi")
	require.NoError(t, os.MkdirAll(componentDir, 0o755))
	promptPath := filepath.Join(componentDir, "prompt_template.txt")
	require.NoError(t, os.WriteFile(promptPath, []byte("Hello {name}, welcome to {place}"), 0o644))

	m := NewCodeMutator(root, 5, filepath.Join(root, "backups"))
	h := Hypothesis{ID: "h1", Type: HypothesisPromptOptimization, TargetComponent: "modelapi", ProposedChanges: map[string]any{"improvePrompts": true}}

	muts, err := m.GenerateMutations(h)
	require.NoError(t, err)
	require.Len(t, muts, 1)
	assert.Equal(t, "Hello {{name}}, welcome to {{place}}", muts[0].NewValue)
}

func TestCodeMutator_ApplyMutationsRevertsOnInvalidJSON(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "config.json")
	original := `{"valid": true}`
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	m := NewCodeMutator(root, 5, filepath.Join(root, "backups"))
	mut := Mutation{
		ID: "m1", HypothesisID: "h1", Type: "parameter-tuning",
		TargetFile: path, NewValue: `{not valid json`, RollbackData: original,
		SafetyChecks: []string{"syntax-validation"},
	}

	err := m.ApplyMutations([]Mutation{mut})
	require.Error(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(content))
}

func TestCodeMutator_GenerateMutationsCapsAtMaxPerHypothesis(t *testing.T) {
	root := t.TempDir()
	componentDir := filepath.Join(root, "cache")
	require.NoError(t, os.MkdirAll(componentDir, 0o755))
	for _, name := range []string{"a.json", "b.json", "c.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(componentDir, name), []byte(`{"ttl": 1}`), 0o644))
	}

	m := NewCodeMutator(root, 2, filepath.Join(root, "backups"))
	h := Hypothesis{ID: "h1", Type: HypothesisParameterTuning, TargetComponent: "cache", ProposedChanges: map[string]any{"ttl": 2}}

	muts, err := m.GenerateMutations(h)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(muts), 2)
}
