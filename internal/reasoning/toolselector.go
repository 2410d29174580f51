package reasoning

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// categoryToolCategories maps a request category to the tool categories
// preferred for it (spec.md §4.8's "category-based complement").
var categoryToolCategories = map[string][]string{
	"refactoring":      {"editor", "static_analysis"},
	"testing":          {"test_runner", "editor"},
	"debugging":        {"debugger", "editor"},
	"feature_addition": {"editor", "test_runner"},
	"optimization":     {"benchmark_runner", "editor"},
	"documentation":    {"editor"},
	"general":          {"editor"},
}

// ToolSelector implements spec.md §4.8's contextual Q-learning tool
// selection: one ToolSuccessRecord per (state, tool).
type ToolSelector struct {
	mu              sync.Mutex
	explorationRate float64
	learningRate    float64
	rng             *rand.Rand
	matrix          map[string]map[string]*ToolSuccessRecord
}

// NewToolSelector constructs a ToolSelector seeded for reproducible
// exploration decisions in tests (spec.md §9 separates the stochastic
// exploration policy from the underlying Q-learning update rule, which is
// deterministic).
func NewToolSelector(explorationRate, learningRate float64) *ToolSelector {
	if explorationRate <= 0 {
		explorationRate = 0.1
	}
	if learningRate <= 0 {
		learningRate = 0.2
	}
	return &ToolSelector{
		explorationRate: explorationRate,
		learningRate:    learningRate,
		rng:             rand.New(rand.NewSource(1)),
		matrix:          make(map[string]map[string]*ToolSuccessRecord),
	}
}

// StateKey builds the Q-learning state key (spec.md §4.8).
func StateKey(pattern Pattern, ctx RequestContext) string {
	return fmt.Sprintf("%s:%s:%s:%s", pattern.Category, ctx.ProjectType, ctx.CodeLanguage, pattern.Complexity)
}

func (s *ToolSelector) recordFor(state, tool string) *ToolSuccessRecord {
	byTool, ok := s.matrix[state]
	if !ok {
		byTool = make(map[string]*ToolSuccessRecord)
		s.matrix[state] = byTool
	}
	rec, ok := byTool[tool]
	if !ok {
		rec = &ToolSuccessRecord{Tool: tool, QValue: 0.5}
		byTool[tool] = rec
	}
	return rec
}

func effectiveQ(rec *ToolSuccessRecord, now time.Time) float64 {
	ageDays := 0.0
	if !rec.LastUsed.IsZero() {
		ageDays = now.Sub(rec.LastUsed).Hours() / 24
	}
	recency := math.Max(0, 1-ageDays/30)
	return 0.7*rec.QValue + 0.2*rec.successRate() + 0.05*recency + 0.05*(1-rec.ErrorRate)
}

// SelectTools implements spec.md §4.8's selectTools: explore/exploit over
// availableTools, merged with a category-based complement, deduplicated,
// falling back to the single highest-Q tool if the result would be empty.
func (s *ToolSelector) SelectTools(pattern Pattern, ctx RequestContext, availableTools []ToolBrief) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := StateKey(pattern, ctx)
	now := timeNow()
	selected := make(map[string]bool)

	for _, tool := range availableTools {
		rec := s.recordFor(state, tool.Name)
		if s.rng.Float64() < s.explorationRate {
			// Exploration weighted toward less-used tools.
			weight := 1.0 / float64(rec.Attempts+1) * 0.3
			if s.rng.Float64() < weight+0.01 {
				selected[tool.Name] = true
			}
			continue
		}
		if effectiveQ(rec, now) > 0.6 {
			selected[tool.Name] = true
		}
	}

	for _, cat := range categoryToolCategories[pattern.Category] {
		var bestTool string
		bestRate := -1.0
		for _, tool := range availableTools {
			if tool.Category != cat {
				continue
			}
			rec := s.recordFor(state, tool.Name)
			if rec.successRate() > bestRate {
				bestRate = rec.successRate()
				bestTool = tool.Name
			}
		}
		if bestTool != "" {
			selected[bestTool] = true
		}
	}

	if len(selected) == 0 && len(availableTools) > 0 {
		var bestTool string
		bestQ := -1.0
		for _, tool := range availableTools {
			rec := s.recordFor(state, tool.Name)
			if rec.QValue > bestQ {
				bestQ = rec.QValue
				bestTool = tool.Name
			}
		}
		if bestTool != "" {
			selected[bestTool] = true
		}
	}

	out := make([]string, 0, len(selected))
	for name := range selected {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// UpdateSuccessRate records a post-execution outcome and performs the
// Q-learning update (spec.md §4.8).
func (s *ToolSelector) UpdateSuccessRate(pattern Pattern, ctx RequestContext, tool string, success bool, execTimeMs float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := StateKey(pattern, ctx)
	rec := s.recordFor(state, tool)
	rec.Attempts++
	reward := 0.0
	if success {
		rec.Successes++
		reward = 1.0
	} else {
		rec.ErrorRate = 0.9*rec.ErrorRate + 0.1
	}
	if execTimeMs > 0 {
		if rec.AvgExecutionTime == 0 {
			rec.AvgExecutionTime = execTimeMs
		} else {
			rec.AvgExecutionTime = 0.8*rec.AvgExecutionTime + 0.2*execTimeMs
		}
	}
	rec.QValue += s.learningRate * (reward - rec.QValue)
	rec.LastUsed = timeNow()
}

// AdaptationSignal summarizes recent selector performance for
// AdaptExplorationRate.
type AdaptationSignal struct {
	SuccessRate   float64
	DiversityScore float64
}

// AdaptExplorationRate tunes the exploration/exploitation tradeoff
// periodically (spec.md §4.8).
func (s *ToolSelector) AdaptExplorationRate(signal AdaptationSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case signal.SuccessRate > 0.8 && signal.DiversityScore < 0.3:
		s.explorationRate = math.Max(0.01, s.explorationRate*0.9)
	case signal.SuccessRate < 0.6:
		s.explorationRate = math.Min(0.3, s.explorationRate*1.1)
	}
}

// ExplorationRate reports the current exploration rate.
func (s *ToolSelector) ExplorationRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.explorationRate
}

// QValue reports the current Q-value for (pattern, ctx, tool), mainly for
// tests and observability.
func (s *ToolSelector) QValue(pattern Pattern, ctx RequestContext, tool string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordFor(StateKey(pattern, ctx), tool).QValue
}

type persistedMatrix struct {
	Matrix   map[string]map[string]*ToolSuccessRecord `json:"matrix"`
	Metadata map[string]string                        `json:"metadata,omitempty"`
}

// Save persists the full state→tool→record matrix (spec.md §6:
// data/tool_selection_matrix.json).
func (s *ToolSelector) Save(path string) error {
	s.mu.Lock()
	matrix := s.matrix
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(persistedMatrix{Matrix: matrix}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load replaces the matrix with what is stored at path. A missing file is
// not an error.
func (s *ToolSelector) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var pm persistedMatrix
	if err := json.Unmarshal(data, &pm); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if pm.Matrix != nil {
		s.matrix = pm.Matrix
	}
	return nil
}
