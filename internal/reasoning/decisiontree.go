package reasoning

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"evocore/internal/modelapi"
)

var categoryKeywords = map[string][]string{
	"refactoring":       {"refactor", "restructure", "reorganize", "clean up", "simplify"},
	"testing":           {"test", "spec", "coverage", "assert", "mock"},
	"debugging":         {"bug", "fix", "debug", "error", "crash", "issue"},
	"feature_addition":  {"add", "implement", "create", "new feature", "support"},
	"optimization":      {"optimize", "speed up", "performance", "faster", "latency"},
	"documentation":     {"document", "readme", "comment", "docs"},
}

// classifyCategory returns the first keyword-set category that matches
// request, or "general" if none do (spec.md §4.6).
func classifyCategory(request string) string {
	lower := strings.ToLower(request)
	for _, cat := range []string{"refactoring", "testing", "debugging", "feature_addition", "optimization", "documentation"} {
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(lower, kw) {
				return cat
			}
		}
	}
	return "general"
}

// classifyComplexity buckets a request by word count and an estimated step
// count (spec.md §4.6).
func classifyComplexity(request string, stepCount int) string {
	wordCount := len(strings.Fields(request))
	switch {
	case wordCount < 10 && stepCount <= 2:
		return "simple"
	case wordCount < 25 && stepCount <= 5:
		return "medium"
	default:
		return "complex"
	}
}

// DecisionTree is the flat learned-pattern set of spec.md §4.6 — not an ML
// tree, a similarity-keyed list with a higher threshold than the Reasoning
// Cache.
type DecisionTree struct {
	mu                sync.Mutex
	similarityThreshold float64
	maxPatterns       int
	patterns          []*LearnedPattern
}

// NewDecisionTree constructs an empty DecisionTree.
func NewDecisionTree(similarityThreshold float64, maxPatterns int) *DecisionTree {
	if similarityThreshold <= 0 {
		similarityThreshold = 0.9
	}
	if maxPatterns <= 0 {
		maxPatterns = 500
	}
	return &DecisionTree{similarityThreshold: similarityThreshold, maxPatterns: maxPatterns}
}

// Classify matches request against stored patterns by embedding similarity;
// on no match it falls back to keyword-derived category/complexity.
func (t *DecisionTree) Classify(request string, embedding []float32, estimatedStepCount int) Pattern {
	t.mu.Lock()
	defer t.mu.Unlock()

	var best *LearnedPattern
	bestScore := t.similarityThreshold
	for _, p := range t.patterns {
		score, err := modelapi.CosineSimilarity(embedding, p.Embedding)
		if err != nil {
			continue
		}
		if score >= bestScore {
			bestScore = score
			best = p
		}
	}
	if best != nil {
		return Pattern{
			PatternID:    best.ID,
			Category:     best.Category,
			Complexity:   best.Complexity,
			ToolTypes:    best.ToolTypes,
			IsNewPattern: false,
		}
	}

	return Pattern{
		Category:     classifyCategory(request),
		Complexity:   classifyComplexity(request, estimatedStepCount),
		IsNewPattern: true,
	}
}

// Learn updates the most-similar existing pattern (similarity > 0.98) or
// appends a new one, then prunes to maxPatterns by a recency/usage score
// (spec.md §4.6).
func (t *DecisionTree) Learn(request string, embedding []float32, toolTypes []string, complexity string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := timeNow()
	var best *LearnedPattern
	bestScore := 0.98
	for _, p := range t.patterns {
		score, err := modelapi.CosineSimilarity(embedding, p.Embedding)
		if err != nil {
			continue
		}
		if score > bestScore {
			bestScore = score
			best = p
		}
	}

	if best != nil {
		best.UsageCount++
		best.LastUsed = now
		best.Complexity = complexity
		best.ToolTypes = unionStrings(best.ToolTypes, toolTypes)
	} else {
		t.patterns = append(t.patterns, &LearnedPattern{
			ID:         uuid.NewString(),
			Request:    request,
			Embedding:  embedding,
			Category:   classifyCategory(request),
			Complexity: complexity,
			ToolTypes:  toolTypes,
			UsageCount: 1,
			LastUsed:   now,
			CreatedAt:  now,
		})
	}

	if len(t.patterns) > t.maxPatterns {
		sort.Slice(t.patterns, func(i, j int) bool {
			return patternScore(t.patterns[i], now) > patternScore(t.patterns[j], now)
		})
		t.patterns = t.patterns[:t.maxPatterns]
	}
}

func patternScore(p *LearnedPattern, now time.Time) float64 {
	ageMillis := float64(now.Sub(p.CreatedAt).Milliseconds())
	return 0.7*float64(p.UsageCount) - 0.3*ageMillis
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Save writes the pattern set to path as a JSON array (spec.md §6:
// data/decision_trees/<name>.json).
func (t *DecisionTree) Save(path string) error {
	t.mu.Lock()
	patterns := make([]LearnedPattern, len(t.patterns))
	for i, p := range t.patterns {
		patterns[i] = *p
	}
	t.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(patterns, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load replaces the pattern set with what is stored at path. A missing
// file is not an error.
func (t *DecisionTree) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var patterns []LearnedPattern
	if err := json.Unmarshal(data, &patterns); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.patterns = make([]*LearnedPattern, len(patterns))
	for i := range patterns {
		p := patterns[i]
		t.patterns[i] = &p
	}
	return nil
}
