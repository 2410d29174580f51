// Package modelapi defines the wire contracts to the three external model
// adapters evocore treats as opaque endpoints (spec.md §1, §6): embedding
// generation, plan reasoning, and free-form text generation. This package
// owns only the interfaces and request/response shapes; no concrete
// transport is implemented here, since the adapters themselves are out of
// scope for this repository.
package modelapi

import (
	"context"
	"fmt"
	"math"
)

// Embedder turns text into dense vectors. Implementations must be
// deterministic enough that cosine similarity between two calls on the
// same input within a process lifetime is stable (spec.md §9).
type Embedder interface {
	// Embed returns one embedding per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions reports the embedding width this Embedder produces.
	Dimensions() int
}

// ReasonRequest is the payload sent to the external reasoning model when no
// cached plan, learned pattern, or plan template can answer a request.
type ReasonRequest struct {
	Prompt  string       `json:"prompt"`
	System  string       `json:"system,omitempty"`
	Tools   []ToolBrief  `json:"tools,omitempty"`
}

// ToolBrief is a compact tool description passed to the reasoning model.
type ToolBrief struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ReasonResponse carries the structured plan the reasoning model proposes.
type ReasonResponse struct {
	PlanData       PlanData `json:"planData"`
	ReasoningTrace []string `json:"reasoningTrace,omitempty"`
}

// PlanData is the minimal structured shape a reasoning response must carry.
type PlanData struct {
	Steps     []PlanStepData `json:"steps"`
	Reasoning string         `json:"reasoning,omitempty"`
}

// PlanStepData is one step of a proposed plan, as returned by the model.
type PlanStepData struct {
	Type        string `json:"type"` // e.g. "tool_use", "analysis", "generation"
	Tool        string `json:"tool,omitempty"`
	Description string `json:"description"`
}

// Reasoner produces a structured execution plan for a request.
type Reasoner interface {
	Reason(ctx context.Context, req ReasonRequest) (ReasonResponse, error)
}

// GenerateRequest is a free-form text-generation request (e.g. for code
// generation hand-off, §1's "generateCode(spec)" adapter).
type GenerateRequest struct {
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Generator produces free-form text from a prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// ModelAPI bundles all three adapters, the shape most callers want injected.
type ModelAPI interface {
	Embedder
	Reasoner
	Generator
}

// CosineSimilarity is the shared similarity measure every similarity-keyed
// store in this repository (Reasoning Cache, Decision Tree) is built on.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("modelapi: vector dimension mismatch: %d != %d", len(a), len(b))
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}
