// Package reasoning implements the Reasoning Orchestrator and its four
// subsystems (spec.md §4.5-§4.9): a similarity-keyed reasoning cache, a flat
// learned-pattern "decision tree", a plan-template catalog, and a
// contextual Q-learning tool selector.
package reasoning

import "time"

// RequestContext describes the project the current request concerns,
// contributing to the tool selector's state key (spec.md §4.8).
type RequestContext struct {
	ProjectType  string // e.g. "nodejs", "go-module"
	CodeLanguage string // e.g. "typescript", "go"
}

// Pattern is the classification result used throughout the orchestrator:
// either a match against a LearnedPattern or a fresh keyword-derived guess.
type Pattern struct {
	PatternID   string
	Category    string
	Complexity  string
	ToolTypes   []string
	IsNewPattern bool
}

// CachedReasoningItem is one entry of the Reasoning Cache.
type CachedReasoningItem struct {
	Request     string    `json:"request"`
	Embedding   []float32 `json:"embedding"`
	Plan        ExecutionPlan `json:"plan"`
	AccessCount int       `json:"accessCount"`
	SuccessRate float64   `json:"successRate"`
	StoredAt    time.Time `json:"storedAt"`
}

// LearnedPattern is one entry of the Decision Tree's flat pattern set.
type LearnedPattern struct {
	ID         string    `json:"id"`
	Request    string    `json:"request"`
	Embedding  []float32 `json:"embedding"`
	Category   string    `json:"category"`
	Complexity string    `json:"complexity"`
	ToolTypes  []string  `json:"toolTypes"`
	UsageCount int       `json:"usageCount"`
	LastUsed   time.Time `json:"lastUsed"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PlanStep is one step of an ExecutionPlan.
type PlanStep struct {
	Type        string  `json:"type"` // "tool_use", "analysis", "generation"
	Tool        string  `json:"tool,omitempty"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// ExecutionPlan is the output of createExecutionPlan (spec.md §4.9).
type ExecutionPlan struct {
	Steps          []PlanStep `json:"steps"`
	Reasoning      string     `json:"reasoning,omitempty"`
	ReasoningTrace []string   `json:"reasoningTrace,omitempty"`
	TemplateID     string     `json:"templateId,omitempty"`
	PatternID      string     `json:"patternId,omitempty"`
	Confidence     float64    `json:"confidence"`
	AdaptedAt      *time.Time `json:"adaptedAt,omitempty"`
}

// TemplateVariable describes one substitutable slot in a PlanTemplate.
type TemplateVariable struct {
	Type     string      `json:"type"`
	Required bool        `json:"required"`
	Default  interface{} `json:"default,omitempty"`
}

// TemplatePlan is the plan body a PlanTemplate instantiates.
type TemplatePlan struct {
	Steps             []PlanStep `json:"steps"`
	EstimatedDuration int        `json:"estimatedDuration"` // minutes
	RollbackSteps     []string   `json:"rollbackSteps,omitempty"`
}

// PlanTemplate is a parametric plan catalog entry (spec.md §4.7).
type PlanTemplate struct {
	ID          string                      `json:"id"`
	Name        string                      `json:"name"`
	Description string                      `json:"description"`
	Category    string                      `json:"category"`
	Keywords    []string                    `json:"keywords"`
	Complexity  string                      `json:"complexity"`
	Plan        TemplatePlan                `json:"plan"`
	Variables   map[string]TemplateVariable `json:"variables,omitempty"`
	Metadata    map[string]string           `json:"metadata,omitempty"`
	UsageCount  int                         `json:"usageCount"`
}

// ToolSuccessRecord is the per-(state,tool) Q-learning record (spec.md §4.8).
type ToolSuccessRecord struct {
	Tool             string    `json:"tool"`
	Attempts         int       `json:"attempts"`
	Successes        int       `json:"successes"`
	ErrorRate        float64   `json:"errorRate"`
	AvgExecutionTime float64   `json:"avgExecutionTime"`
	QValue           float64   `json:"qValue"`
	LastUsed         time.Time `json:"lastUsed"`
}

func (r *ToolSuccessRecord) successRate() float64 {
	if r.Attempts == 0 {
		return 0
	}
	return float64(r.Successes) / float64(r.Attempts)
}

// ToolBrief is a compact tool description available to the selector.
type ToolBrief struct {
	Name        string
	Description string
	Category    string
}
