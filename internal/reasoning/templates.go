package reasoning

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"evocore/internal/logging"
)

// TemplateStore is the Plan Templates catalog (spec.md §4.7): loaded from a
// directory of JSON files, hot-reloaded on change, falling back to a
// built-in set when the directory is empty.
type TemplateStore struct {
	mu        sync.RWMutex
	dir       string
	templates map[string]*PlanTemplate
	watcher   *fsnotify.Watcher
}

// NewTemplateStore loads every template file in dir, materializing the
// built-in set if dir is empty or missing, and starts an fsnotify watch so
// edits to dir are picked up without a restart.
func NewTemplateStore(dir string) (*TemplateStore, error) {
	s := &TemplateStore{dir: dir, templates: make(map[string]*PlanTemplate)}
	if err := s.loadFromDisk(); err != nil {
		return nil, err
	}
	if len(s.templates) == 0 {
		for _, t := range builtinTemplates() {
			tmpl := t
			s.templates[tmpl.ID] = &tmpl
		}
	}
	if err := s.startWatch(); err != nil {
		logging.For(logging.CategoryReasoning).Warnw("template hot-reload disabled", "dir", dir, "error", err)
	}
	return s, nil
}

func (s *TemplateStore) loadFromDisk() error {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	loaded := make(map[string]*PlanTemplate)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, readErr := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if readErr != nil {
			logging.For(logging.CategoryReasoning).Warnw("skipping unreadable template", "file", e.Name(), "error", readErr)
			continue
		}
		var t PlanTemplate
		if jsonErr := json.Unmarshal(data, &t); jsonErr != nil {
			logging.For(logging.CategoryReasoning).Warnw("skipping malformed template", "file", e.Name(), "error", jsonErr)
			continue
		}
		loaded[t.ID] = &t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range loaded {
		s.templates[id] = t
	}
	return nil
}

func (s *TemplateStore) startWatch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		w.Close()
		return err
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return err
	}
	s.watcher = w
	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := s.loadFromDisk(); err != nil {
						logging.For(logging.CategoryReasoning).Warnw("template reload failed", "error", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logging.For(logging.CategoryReasoning).Warnw("template watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Close stops the filesystem watcher.
func (s *TemplateStore) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// FindMatch scores every template against pattern and returns the
// highest-scoring one at or above a score of 10 (spec.md §4.7).
func (s *TemplateStore) FindMatch(pattern Pattern) (*PlanTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *PlanTemplate
	bestScore := 9 // strictly below the "score >= 10" cutoff
	for _, t := range s.templates {
		score := scoreTemplate(t, pattern)
		if score > bestScore {
			bestScore = score
			best = t
		}
	}
	if best == nil {
		return nil, false
	}
	best.UsageCount++
	result := *best
	return &result, true
}

func scoreTemplate(t *PlanTemplate, pattern Pattern) int {
	score := 0
	if t.Category == pattern.Category {
		score += 50
	}
	if t.Complexity == pattern.Complexity {
		score += 20
	}
	for _, kw := range t.Keywords {
		for _, tt := range pattern.ToolTypes {
			if strings.EqualFold(kw, tt) {
				score += 10
			}
		}
	}
	lowerCat := strings.ToLower(pattern.Category)
	if strings.Contains(strings.ToLower(t.Name), lowerCat) || strings.Contains(strings.ToLower(t.Description), lowerCat) {
		score += 15
	}
	if pattern.PatternID != "" && strings.Contains(t.ID, pattern.PatternID) {
		score += 25
	}
	return score
}

// Instantiate substitutes "{{variable}}" occurrences in every step
// description with values, leaving unknown placeholders intact and logged.
func Instantiate(t *PlanTemplate, values map[string]string) ExecutionPlan {
	plan := ExecutionPlan{TemplateID: t.ID}
	for _, step := range t.Plan.Steps {
		plan.Steps = append(plan.Steps, PlanStep{
			Type:        step.Type,
			Tool:        step.Tool,
			Description: substituteVariables(step.Description, values),
			Confidence:  0.8,
		})
	}
	return plan
}

func substituteVariables(text string, values map[string]string) string {
	var b strings.Builder
	i := 0
	for i < len(text) {
		start := strings.Index(text[i:], "{{")
		if start < 0 {
			b.WriteString(text[i:])
			break
		}
		start += i
		b.WriteString(text[i:start])
		end := strings.Index(text[start:], "}}")
		if end < 0 {
			b.WriteString(text[start:])
			break
		}
		end += start
		name := strings.TrimSpace(text[start+2 : end])
		if v, ok := values[name]; ok {
			b.WriteString(v)
		} else {
			logging.For(logging.CategoryReasoning).Warnw("unresolved template placeholder", "variable", name)
			b.WriteString(text[start : end+2])
		}
		i = end + 2
	}
	return b.String()
}

// builtinTemplates is the minimum catalog materialized when no template
// files are found on disk (spec.md §4.7).
func builtinTemplates() []PlanTemplate {
	return []PlanTemplate{
		{
			ID: "refactor_component", Name: "Refactor Component",
			Description: "Restructure a component without changing its behavior",
			Category:    "refactoring", Complexity: "medium",
			Keywords: []string{"refactor", "restructure", "cleanup"},
			Plan: TemplatePlan{
				Steps: []PlanStep{
					{Type: "analysis", Description: "Identify the boundaries of {{component}}"},
					{Type: "tool_use", Tool: "editor", Description: "Apply the refactor to {{component}}"},
					{Type: "tool_use", Tool: "test_runner", Description: "Run the existing test suite for {{component}}"},
				},
				EstimatedDuration: 60,
				RollbackSteps:     []string{"git checkout -- {{component}}"},
			},
		},
		{
			ID: "add_feature", Name: "Add Feature",
			Description: "Implement a new feature end to end",
			Category:    "feature_addition", Complexity: "medium",
			Keywords: []string{"add", "implement", "feature"},
			Plan: TemplatePlan{
				Steps: []PlanStep{
					{Type: "analysis", Description: "Design the interface for {{feature}}"},
					{Type: "tool_use", Tool: "editor", Description: "Implement {{feature}}"},
					{Type: "tool_use", Tool: "test_runner", Description: "Add tests for {{feature}}"},
				},
				EstimatedDuration: 120,
			},
		},
		{
			ID: "debug_issue", Name: "Debug Issue",
			Description: "Diagnose and fix a reported bug",
			Category:    "debugging", Complexity: "medium",
			Keywords: []string{"bug", "fix", "debug"},
			Plan: TemplatePlan{
				Steps: []PlanStep{
					{Type: "analysis", Description: "Reproduce {{issue}}"},
					{Type: "tool_use", Tool: "debugger", Description: "Isolate the root cause of {{issue}}"},
					{Type: "tool_use", Tool: "editor", Description: "Apply the fix for {{issue}}"},
					{Type: "tool_use", Tool: "test_runner", Description: "Add a regression test for {{issue}}"},
				},
				EstimatedDuration: 90,
			},
		},
		{
			ID: "optimize_performance", Name: "Optimize Performance",
			Description: "Improve a slow code path's performance",
			Category:    "optimization", Complexity: "complex",
			Keywords: []string{"optimize", "performance", "speed"},
			Plan: TemplatePlan{
				Steps: []PlanStep{
					{Type: "analysis", Description: "Profile {{target}} to find the bottleneck"},
					{Type: "tool_use", Tool: "editor", Description: "Apply the optimization to {{target}}"},
					{Type: "tool_use", Tool: "benchmark_runner", Description: "Benchmark {{target}} before and after"},
				},
				EstimatedDuration: 150,
			},
		},
	}
}
