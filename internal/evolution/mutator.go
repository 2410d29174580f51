package evolution

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var configFileNames = map[string]bool{"config.json": true, "config.yaml": true, "config.yml": true}

// captureConfigFiles walks root and reads every file named per
// configFileNames, keyed by path relative to root (spec.md §3 "systemState
// captures configuration files keyed by path"). Used by RollbackManager's
// checkpointing. It selects by file name only, so it captures a subset of
// what parameterTuningMutations may edit: that function also picks any
// .json, .yaml or .yml file in the target and config directories.
func captureConfigFiles(root string) (map[string]string, error) {
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !configFileNames[d.Name()] {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		out[rel] = string(data)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("evolution: capture config files under %s: %w", root, err)
	}
	return out, nil
}

// jsonValueLiteral renders v as a JSON value literal so regex-substituted
// config values stay syntactically valid (a bare %v would leave strings
// unquoted). Falls back to a quoted fmt.Sprint on marshal failure.
func jsonValueLiteral(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(v))
	}
	return string(data)
}

// CodeMutator turns a Hypothesis into concrete, reversible file edits
// (spec.md §4.12), grounded on the teacher's backup-before-write discipline
// in internal/campaign/orchestrator_lifecycle.go (saveCampaign writes
// through a temp path) generalized to per-mutation backups.
type CodeMutator struct {
	repoRoot                string
	maxMutationsPerHypothesis int
	backupDir               string
}

// NewCodeMutator constructs a CodeMutator rooted at repoRoot, backing up
// pre-mutation file contents under backupDir.
func NewCodeMutator(repoRoot string, maxMutationsPerHypothesis int, backupDir string) *CodeMutator {
	return &CodeMutator{repoRoot: repoRoot, maxMutationsPerHypothesis: maxMutationsPerHypothesis, backupDir: backupDir}
}

// GenerateMutations dispatches on hypothesis type and returns up to
// maxMutationsPerHypothesis candidate mutations (spec.md §4.12).
func (m *CodeMutator) GenerateMutations(h Hypothesis) ([]Mutation, error) {
	var muts []Mutation
	var err error

	switch h.Type {
	case HypothesisParameterTuning, HypothesisResponseTime, HypothesisMemoryOptimization:
		muts, err = m.parameterTuningMutations(h)
	case HypothesisArchitectureChange:
		muts, err = m.architectureChangeMutations(h)
	case HypothesisPromptOptimization:
		muts, err = m.promptOptimizationMutations(h)
	case HypothesisModelSelection, HypothesisChunking:
		muts, err = m.modelOptimizationMutations(h)
	default:
		muts, err = m.parameterTuningMutations(h)
	}
	if err != nil {
		return nil, err
	}

	if m.maxMutationsPerHypothesis > 0 && len(muts) > m.maxMutationsPerHypothesis {
		muts = muts[:m.maxMutationsPerHypothesis]
	}
	return muts, nil
}

func (m *CodeMutator) targetDir(h Hypothesis) string {
	return filepath.Join(m.repoRoot, h.TargetComponent)
}

// findFiles walks targetDir plus an optional global dir, selecting files
// that satisfy pick.
func (m *CodeMutator) findFiles(dirs []string, pick func(name string) bool) ([]string, error) {
	var matches []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("evolution: read %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if pick(e.Name()) {
				matches = append(matches, filepath.Join(dir, e.Name()))
			}
		}
	}
	return matches, nil
}

func (m *CodeMutator) parameterTuningMutations(h Hypothesis) ([]Mutation, error) {
	dirs := []string{m.targetDir(h), filepath.Join(m.repoRoot, "config")}
	files, err := m.findFiles(dirs, func(name string) bool {
		ext := filepath.Ext(name)
		return configFileNames[name] || ext == ".json" || ext == ".yaml" || ext == ".yml"
	})
	if err != nil {
		return nil, err
	}

	var muts []Mutation
	for _, f := range files {
		original, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		content := string(original)
		changed := content
		for key, value := range h.ProposedChanges {
			replacement := fmt.Sprintf(`"%s": %s`, key, jsonValueLiteral(value))
			keyRe := regexp.MustCompile(fmt.Sprintf(`(["'])%s(["'])\s*:\s*[^,}]+`, regexp.QuoteMeta(key)))
			changed = keyRe.ReplaceAllString(changed, replacement)
		}
		if changed == content {
			continue
		}
		muts = append(muts, Mutation{
			ID: uuid.NewString(), HypothesisID: h.ID, Type: "parameter-tuning",
			TargetFile: f, NewValue: changed, RollbackData: content,
			SafetyChecks: []string{"syntax-validation", "schema-validation"},
		})
	}
	return muts, nil
}

// architectureChangeMutations implements the Open-Question resolution:
// architecture-change has no real AST transformer, so every mutation it
// proposes is marked with a safety check that always fails, forcing
// applyMutations to revert it rather than silently applying a no-op.
func (m *CodeMutator) architectureChangeMutations(h Hypothesis) ([]Mutation, error) {
	files, err := m.findFiles([]string{m.targetDir(h)}, func(name string) bool {
		return filepath.Ext(name) == ".go"
	})
	if err != nil {
		return nil, err
	}
	if len(files) > 3 {
		files = files[:3]
	}

	var muts []Mutation
	for _, f := range files {
		original, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		muts = append(muts, Mutation{
			ID: uuid.NewString(), HypothesisID: h.ID, Type: "architecture-change",
			TargetFile: f, NewValue: string(original), RollbackData: string(original),
			SafetyChecks: []string{"unsupported-architecture-change"},
		})
	}
	return muts, nil
}

func (m *CodeMutator) promptOptimizationMutations(h Hypothesis) ([]Mutation, error) {
	files, err := m.findFiles([]string{m.targetDir(h)}, func(name string) bool {
		lower := strings.ToLower(name)
		return strings.Contains(lower, "prompt") || strings.Contains(lower, "template")
	})
	if err != nil {
		return nil, err
	}

	bareVarRe := regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

	var muts []Mutation
	for _, f := range files {
		original, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		content := string(original)
		improve, _ := h.ProposedChanges["improvePrompts"].(bool)
		if !improve {
			continue
		}
		changed := bareVarRe.ReplaceAllString(content, "{{$1}}")
		if changed == content {
			continue
		}
		muts = append(muts, Mutation{
			ID: uuid.NewString(), HypothesisID: h.ID, Type: "prompt-optimization",
			TargetFile: f, NewValue: changed, RollbackData: content,
			SafetyChecks: []string{"format-validation"},
		})
	}
	return muts, nil
}

func (m *CodeMutator) modelOptimizationMutations(h Hypothesis) ([]Mutation, error) {
	files, err := m.findFiles([]string{m.targetDir(h), filepath.Join(m.repoRoot, "config")}, func(name string) bool {
		lower := strings.ToLower(name)
		return strings.Contains(lower, "model") || strings.Contains(lower, "config")
	})
	if err != nil {
		return nil, err
	}

	var muts []Mutation
	for _, f := range files {
		original, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		content := string(original)
		changed := content
		for key, value := range h.ProposedChanges {
			replacement := fmt.Sprintf(`"%s": %s`, key, jsonValueLiteral(value))
			keyRe := regexp.MustCompile(fmt.Sprintf(`(["'])%s(["'])\s*:\s*[^,}]+`, regexp.QuoteMeta(key)))
			changed = keyRe.ReplaceAllString(changed, replacement)
		}
		if changed == content {
			continue
		}
		muts = append(muts, Mutation{
			ID: uuid.NewString(), HypothesisID: h.ID, Type: "model-optimization",
			TargetFile: f, NewValue: changed, RollbackData: content,
			SafetyChecks: []string{"syntax-validation", "schema-validation"},
		})
	}
	return muts, nil
}

// ApplyMutations backs up, applies, then validates each mutation in order;
// on any validation failure it reverts that mutation and returns the error
// without applying subsequent mutations in the batch (spec.md §4.12, §5
// ordering guarantees).
func (m *CodeMutator) ApplyMutations(mutations []Mutation) error {
	for _, mut := range mutations {
		if err := m.backup(mut); err != nil {
			return err
		}
		if err := os.WriteFile(mut.TargetFile, []byte(mut.NewValue), 0o644); err != nil {
			return fmt.Errorf("evolution: apply mutation %s: %w", mut.ID, err)
		}
		if err := m.validate(mut); err != nil {
			if revertErr := m.Revert(mut); revertErr != nil {
				return fmt.Errorf("evolution: validation failed (%w) and revert failed: %v", err, revertErr)
			}
			return fmt.Errorf("evolution: mutation %s failed validation: %w", mut.ID, err)
		}
	}
	return nil
}

// Revert writes rollbackData back to targetFile for any mutation variant.
func (m *CodeMutator) Revert(mut Mutation) error {
	return os.WriteFile(mut.TargetFile, []byte(mut.RollbackData), 0o644)
}

func (m *CodeMutator) backup(mut Mutation) error {
	if m.backupDir == "" {
		return nil
	}
	if err := os.MkdirAll(m.backupDir, 0o755); err != nil {
		return fmt.Errorf("evolution: mkdir %s: %w", m.backupDir, err)
	}
	name := fmt.Sprintf("%s-%s", mut.ID, filepath.Base(mut.TargetFile))
	return os.WriteFile(filepath.Join(m.backupDir, name), []byte(mut.RollbackData), 0o644)
}

// validate dispatches each of a mutation's declared safety checks. Syntax
// validation is implemented for JSON; other checks are explicitly stubbed
// (accepting) as spec.md §4.12 allows, except the sentinel
// unsupported-architecture-change check, which always fails.
func (m *CodeMutator) validate(mut Mutation) error {
	for _, check := range mut.SafetyChecks {
		switch check {
		case "unsupported-architecture-change":
			return fmt.Errorf("architecture-change mutations have no transformer implementation")
		case "syntax-validation":
			if err := validateSyntax(mut.TargetFile, mut.NewValue); err != nil {
				return err
			}
		case "schema-validation", "type-check", "compile-check", "format-validation":
			// Stubbed: accepted by design until a real checker is wired.
		}
	}
	return nil
}

// validateSyntax dispatches by extension (spec.md §4.12: "Syntax validation
// dispatches by extension (TS/JS: parse; JSON: parse)"). JSON parses via
// encoding/json; TS/JS has no parser wired in (the corpus's AST/tree-sitter
// tooling is deliberately not adopted here, see DESIGN.md), so that branch
// is an explicit stub rather than a silent fallthrough to the default case.
func validateSyntax(path, content string) error {
	switch filepath.Ext(path) {
	case ".json":
		var v any
		if err := json.Unmarshal([]byte(content), &v); err != nil {
			return fmt.Errorf("invalid json: %w", err)
		}
	case ".ts", ".tsx", ".js", ".jsx":
		// Stubbed: accepted by design until a real TS/JS parser is wired.
	}
	return nil
}
