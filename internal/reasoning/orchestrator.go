package reasoning

import (
	"context"
	"fmt"
	"sync"

	"evocore/internal/modelapi"
)

// Orchestrator implements spec.md §4.9's createExecutionPlan flow, wiring
// the Reasoning Cache, Decision Tree, Plan Templates, and Tool Selector
// together with a fallback to the external reasoning model.
type Orchestrator struct {
	Cache     *Cache
	Tree      *DecisionTree
	Templates *TemplateStore
	Selector  *ToolSelector
	Reasoner  modelapi.Reasoner
}

// NewOrchestrator wires the four reasoning subsystems.
func NewOrchestrator(cache *Cache, tree *DecisionTree, templates *TemplateStore, selector *ToolSelector, reasoner modelapi.Reasoner) *Orchestrator {
	return &Orchestrator{Cache: cache, Tree: tree, Templates: templates, Selector: selector, Reasoner: reasoner}
}

// CreateExecutionPlan runs the 7-step flow of spec.md §4.9.
func (o *Orchestrator) CreateExecutionPlan(ctx context.Context, request string, reqCtx RequestContext, availableTools []ToolBrief) (ExecutionPlan, error) {
	// Step 1: cache hit short-circuits everything else.
	if cached, hit, err := o.Cache.FindSimilar(ctx, request); err != nil {
		return ExecutionPlan{}, fmt.Errorf("reasoning: cache lookup: %w", err)
	} else if hit {
		plan := cached.Plan
		plan = adaptCachedPlan(plan, availableTools)
		return plan, nil
	}

	// Step 2: compute the embedding once, shared by the tree and the cache store.
	embedding, err := o.Cache.Embed(ctx, request)
	if err != nil {
		return ExecutionPlan{}, fmt.Errorf("reasoning: embed request: %w", err)
	}

	// Step 3: classify.
	pattern := o.Tree.Classify(request, embedding, estimatedStepCount(request))

	// Step 4: tool selection.
	selectedTools := o.Selector.SelectTools(pattern, reqCtx, availableTools)

	// Step 5: template match, else external reasoning model.
	var plan ExecutionPlan
	if tmpl, hit := o.Templates.FindMatch(pattern); hit {
		plan = Instantiate(tmpl, templateValues(request))
	} else {
		briefs := toolBriefsFor(selectedTools, availableTools)
		resp, reasonErr := o.Reasoner.Reason(ctx, modelapi.ReasonRequest{
			Prompt: request,
			System: "Produce a structured execution plan.",
			Tools:  briefs,
		})
		if reasonErr != nil {
			return ExecutionPlan{}, fmt.Errorf("reasoning: external reasoner: %w", reasonErr)
		}
		plan = planFromResponse(resp)
	}

	// Step 6: attach trace metadata.
	plan.PatternID = pattern.PatternID
	plan.Confidence = confidenceFor(plan, o.Selector, pattern, reqCtx)

	// Step 7: store and learn in parallel.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); o.Cache.Store(request, embedding, plan) }()
	go func() { defer wg.Done(); o.Tree.Learn(request, embedding, selectedTools, pattern.Complexity) }()
	wg.Wait()

	return plan, nil
}

func adaptCachedPlan(plan ExecutionPlan, availableTools []ToolBrief) ExecutionPlan {
	available := make(map[string]bool, len(availableTools))
	for _, t := range availableTools {
		available[t.Name] = true
	}
	adapted := plan
	adapted.Steps = make([]PlanStep, len(plan.Steps))
	for i, step := range plan.Steps {
		adapted.Steps[i] = step
		if step.Type == "tool_use" && !available[step.Tool] {
			adapted.Steps[i].Description = step.Description + " (tool unavailable, review required)"
		}
	}
	now := timeNow()
	adapted.AdaptedAt = &now
	return adapted
}

func estimatedStepCount(request string) int {
	// A coarse proxy used only for the complexity fallback classifier: one
	// step per clause, roughly.
	count := 1
	for _, r := range request {
		if r == ',' || r == ';' || r == '\n' {
			count++
		}
	}
	return count
}

func templateValues(request string) map[string]string {
	return map[string]string{
		"component": request,
		"feature":   request,
		"issue":     request,
		"target":    request,
	}
}

func toolBriefsFor(names []string, available []ToolBrief) []modelapi.ToolBrief {
	byName := make(map[string]ToolBrief, len(available))
	for _, t := range available {
		byName[t.Name] = t
	}
	var briefs []modelapi.ToolBrief
	for _, n := range names {
		if t, ok := byName[n]; ok {
			briefs = append(briefs, modelapi.ToolBrief{Name: t.Name, Description: t.Description})
		}
	}
	return briefs
}

func planFromResponse(resp modelapi.ReasonResponse) ExecutionPlan {
	plan := ExecutionPlan{
		Reasoning:      resp.PlanData.Reasoning,
		ReasoningTrace: resp.ReasoningTrace,
	}
	for _, step := range resp.PlanData.Steps {
		plan.Steps = append(plan.Steps, PlanStep{Type: step.Type, Tool: step.Tool, Description: step.Description})
	}
	return plan
}

// confidenceFor computes the mean per-step confidence: a tool_use step's
// confidence is the tool's historical success rate; any other step is 0.8
// (spec.md §4.9).
func confidenceFor(plan ExecutionPlan, selector *ToolSelector, pattern Pattern, reqCtx RequestContext) float64 {
	if len(plan.Steps) == 0 {
		return 0
	}
	state := StateKey(pattern, reqCtx)
	var sum float64
	for _, step := range plan.Steps {
		if step.Type == "tool_use" && step.Tool != "" {
			selector.mu.Lock()
			rec, ok := selector.matrix[state][step.Tool]
			selector.mu.Unlock()
			if ok {
				sum += rec.successRate()
				continue
			}
		}
		sum += 0.8
	}
	return sum / float64(len(plan.Steps))
}
