package modelapi

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
)

// DeterministicStub is a local, dependency-free implementation of ModelAPI.
// It is not a model: it exists so evocore's own tests, dry runs, and the
// reasoning/evolution end-to-end scenarios in spec.md §8 can run without a
// live model endpoint, while still producing embeddings whose similarity is
// stable across calls (spec.md §9, "Embedding generation").
type DeterministicStub struct {
	dims int
}

// NewDeterministicStub creates a stub producing embeddings of the given
// dimensionality.
func NewDeterministicStub(dims int) *DeterministicStub {
	if dims <= 0 {
		dims = 256
	}
	return &DeterministicStub{dims: dims}
}

func (s *DeterministicStub) Dimensions() int { return s.dims }

// Embed hashes each text into a PRNG seed so the same text always yields the
// same unit vector within (and across) process runs.
func (s *DeterministicStub) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = seedVector(t, s.dims)
	}
	return out, nil
}

func seedVector(text string, dims int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := int64(h.Sum64())
	rng := rand.New(rand.NewSource(seed))

	v := make([]float32, dims)
	var sumSq float64
	for i := range v {
		x := rng.NormFloat64()
		v[i] = float32(x)
		sumSq += x * x
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// Reason synthesizes a minimal plan from the request without calling any
// external model: one analysis step followed by one tool_use step per
// offered tool, capped at three. This is a deliberately conservative
// fallback so the Reasoning Orchestrator has something to instantiate when
// neither the cache, the decision tree, nor a plan template produced a hit.
func (s *DeterministicStub) Reason(ctx context.Context, req ReasonRequest) (ReasonResponse, error) {
	steps := []PlanStepData{{
		Type:        "analysis",
		Description: fmt.Sprintf("Analyze request: %s", truncate(req.Prompt, 80)),
	}}
	max := len(req.Tools)
	if max > 3 {
		max = 3
	}
	for i := 0; i < max; i++ {
		steps = append(steps, PlanStepData{
			Type:        "tool_use",
			Tool:        req.Tools[i].Name,
			Description: fmt.Sprintf("Use %s to address request", req.Tools[i].Name),
		})
	}
	return ReasonResponse{
		PlanData: PlanData{
			Steps:     steps,
			Reasoning: "deterministic stub plan: no external model configured",
		},
		ReasoningTrace: []string{"fallback:deterministic-stub"},
	}, nil
}

// Generate returns a templated acknowledgement; it is not a code generator.
func (s *DeterministicStub) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return fmt.Sprintf("// deterministic stub response for: %s", truncate(req.Prompt, 120)), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
