package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

var riskScores = map[RiskLevel]float64{RiskLow: 1, RiskMedium: 0.6, RiskHigh: 0.3}
var priorityScores = map[PriorityLevel]float64{PriorityLow: 0.3, PriorityMedium: 0.6, PriorityHigh: 1}

var severityToPriority = map[string]PriorityLevel{"low": PriorityLow, "medium": PriorityMedium, "high": PriorityHigh}
var severityToRisk = map[string]RiskLevel{"low": RiskLow, "medium": RiskMedium, "high": RiskHigh}

// ExternalReasoner is the stubbed "call out to a reasoning model for
// hypothesis suggestions" source (spec.md §4.11 source 3). Wired as an
// interface so production code can point it at a real model adapter while
// tests use a no-op.
type ExternalReasoner interface {
	SuggestHypotheses(ctx context.Context, profile PerformanceProfile) ([]Hypothesis, error)
}

// NoopExternalReasoner always returns no suggestions, matching the
// "stubbed in source" status quo the spec explicitly calls out.
type NoopExternalReasoner struct{}

func (NoopExternalReasoner) SuggestHypotheses(ctx context.Context, profile PerformanceProfile) ([]Hypothesis, error) {
	return nil, nil
}

// HypothesisGenerator combines the four hypothesis sources and ranks the
// result (spec.md §4.11), grounded on the teacher's pattern-matching style
// in internal/perception/semantic_classifier.go for the keyword/threshold
// dispatch shape.
type HypothesisGenerator struct {
	external              ExternalReasoner
	maxHypothesesPerCycle int
	historyPath           string

	weightImpact      float64
	weightFeasibility float64
	weightRisk        float64

	// Thresholds for source 1 (spec.md §4.11), exported so a caller (tests,
	// or an operator tuning sensitivity) can override the defaults without
	// a constructor that grows a parameter per knob.
	ResponseTimeThresholdMs    float64
	AccuracyThreshold          float64
	TokenEfficiencyThreshold   float64
	MemoryUtilizationThreshold float64
}

// NewHypothesisGenerator constructs a HypothesisGenerator. The ranking
// weights are an equal 1/3 split; thresholds default to spec.md
// §4.11's values (responseTime>2000ms, accuracy<0.8, tokenEfficiency<0.6,
// memory>0.8).
func NewHypothesisGenerator(external ExternalReasoner, maxHypothesesPerCycle int, historyPath string) *HypothesisGenerator {
	if external == nil {
		external = NoopExternalReasoner{}
	}
	return &HypothesisGenerator{
		external:                   external,
		maxHypothesesPerCycle:      maxHypothesesPerCycle,
		historyPath:                historyPath,
		weightImpact:               1.0 / 3,
		weightFeasibility:          1.0 / 3,
		weightRisk:                 1.0 / 3,
		ResponseTimeThresholdMs:    2000,
		AccuracyThreshold:          0.8,
		TokenEfficiencyThreshold:   0.6,
		MemoryUtilizationThreshold: 0.8,
	}
}

// Generate produces the ranked, capped hypothesis set for one cycle and
// appends it to the append-only history file (spec.md §4.11).
func (g *HypothesisGenerator) Generate(ctx context.Context, cycleTimestamp string, genCtx HypothesisGenerationContext) ([]Hypothesis, error) {
	var all []Hypothesis
	all = append(all, g.fromThresholds(genCtx.CurrentMetrics)...)
	all = append(all, g.fromPatternReuse(genCtx.HistoricalMetrics, genCtx.RecentFailures)...)

	external, err := g.external.SuggestHypotheses(ctx, genCtx.CurrentMetrics)
	if err != nil {
		return nil, fmt.Errorf("evolution: external reasoning source: %w", err)
	}
	for i := range external {
		if external[i].ID == "" {
			external[i].ID = uuid.NewString()
		}
		external[i].Source = "external-reasoning"
	}
	all = append(all, external...)
	all = append(all, g.fromBottlenecks(genCtx.Bottlenecks)...)

	for i := range all {
		all[i].Score = g.score(all[i])
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })

	if g.maxHypothesesPerCycle > 0 && len(all) > g.maxHypothesesPerCycle {
		all = all[:g.maxHypothesesPerCycle]
	}

	if err := g.appendHistory(cycleTimestamp, all); err != nil {
		return nil, err
	}
	return all, nil
}

func (g *HypothesisGenerator) score(h Hypothesis) float64 {
	impact := min1(h.ExpectedImprovement / 100)
	feasibility := max0(1 - h.EstimatedDuration/480)
	risk := riskScores[h.Risk]
	priority := priorityScores[h.Priority]
	return priority * (g.weightImpact*impact + g.weightFeasibility*feasibility + g.weightRisk*risk)
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// fromThresholds implements source 1: algorithmic thresholds over a
// synthesized PerformanceProfile (spec.md §4.11).
func (g *HypothesisGenerator) fromThresholds(p PerformanceProfile) []Hypothesis {
	var out []Hypothesis
	if p.ResponseTimeMs > g.ResponseTimeThresholdMs {
		out = append(out, Hypothesis{
			ID: uuid.NewString(), Type: HypothesisResponseTime, TargetComponent: "reasoning-orchestrator",
			ProposedChanges:     map[string]any{"strategy": "caching-and-batching"},
			ExpectedImprovement: 15, EstimatedDuration: 60, Risk: RiskLow, Priority: PriorityHigh, Source: "algorithmic",
		})
	}
	if p.Accuracy < g.AccuracyThreshold {
		out = append(out, Hypothesis{
			ID: uuid.NewString(), Type: HypothesisModelSelection, TargetComponent: "modelapi",
			ProposedChanges:     map[string]any{"strategy": "prompt-or-model-selection"},
			ExpectedImprovement: 10, EstimatedDuration: 90, Risk: RiskMedium, Priority: PriorityHigh, Source: "algorithmic",
		})
	}
	if p.TokenEfficiency < g.TokenEfficiencyThreshold {
		out = append(out, Hypothesis{
			ID: uuid.NewString(), Type: HypothesisChunking, TargetComponent: "chunking",
			ProposedChanges:     map[string]any{"strategy": "resize-chunks"},
			ExpectedImprovement: 8, EstimatedDuration: 45, Risk: RiskLow, Priority: PriorityMedium, Source: "algorithmic",
		})
	}
	if p.MemoryUtilization > g.MemoryUtilizationThreshold {
		out = append(out, Hypothesis{
			ID: uuid.NewString(), Type: HypothesisMemoryOptimization, TargetComponent: "cache",
			ProposedChanges:     map[string]any{"strategy": "evict-more-aggressively"},
			ExpectedImprovement: 12, EstimatedDuration: 30, Risk: RiskLow, Priority: PriorityMedium, Source: "algorithmic",
		})
	}
	return out
}

// fromPatternReuse implements source 2: clustering successful historical
// hypotheses by (type, targetComponent) and emitting perturbed variants
// (spec.md §4.11).
func (g *HypothesisGenerator) fromPatternReuse(history []HistoricalRecord, recentFailures []string) []Hypothesis {
	type clusterKey struct {
		typ    HypothesisType
		target string
	}
	failed := make(map[string]bool, len(recentFailures))
	for _, id := range recentFailures {
		failed[id] = true
	}

	clusters := map[clusterKey][]HistoricalRecord{}
	for _, rec := range history {
		if !rec.Success {
			continue
		}
		k := clusterKey{rec.Hypothesis.Type, rec.Hypothesis.TargetComponent}
		clusters[k] = append(clusters[k], rec)
	}

	failedKeys := map[clusterKey]bool{}
	for _, rec := range history {
		if !rec.Success && failed[rec.Hypothesis.ID] {
			failedKeys[clusterKey{rec.Hypothesis.Type, rec.Hypothesis.TargetComponent}] = true
		}
	}

	var out []Hypothesis
	for k, recs := range clusters {
		if len(recs) < 2 {
			continue
		}
		if failedKeys[k] {
			continue
		}
		meanImprovement := 0.0
		for _, r := range recs {
			meanImprovement += r.Improvement
		}
		meanImprovement /= float64(len(recs))

		base := recs[len(recs)-1].Hypothesis
		variant := base
		variant.ID = uuid.NewString()
		variant.ExpectedImprovement = meanImprovement * 0.8
		variant.Source = "pattern-reuse"
		variant.ProposedChanges = perturb(base.ProposedChanges, 0.1)
		out = append(out, variant)
	}
	return out
}

// perturb returns a copy of changes with every float64 value scaled by
// exactly 1+pct or 1-pct, the sign chosen by the parity of the key's
// length, avoiding any dependency on a disallowed time/random source.
// Values of any other type are copied unchanged.
func perturb(changes map[string]any, pct float64) map[string]any {
	out := make(map[string]any, len(changes))
	for k, v := range changes {
		f, ok := v.(float64)
		if !ok {
			out[k] = v
			continue
		}
		sign := 1.0
		if len(k)%2 == 0 {
			sign = -1.0
		}
		out[k] = f * (1 + sign*pct)
	}
	return out
}

// fromBottlenecks implements source 4: one tailored hypothesis per
// identified bottleneck (spec.md §4.11).
func (g *HypothesisGenerator) fromBottlenecks(bottlenecks []Bottleneck) []Hypothesis {
	var out []Hypothesis
	for _, b := range bottlenecks {
		priority, ok := severityToPriority[b.Severity]
		if !ok {
			priority = PriorityMedium
		}
		risk, ok := severityToRisk[b.Severity]
		if !ok {
			risk = RiskMedium
		}
		out = append(out, Hypothesis{
			ID:                  uuid.NewString(),
			Type:                HypothesisParameterTuning,
			TargetComponent:     b.Component,
			ProposedChanges:     map[string]any{"addresses": b.Type},
			ExpectedImprovement: b.Impact,
			EstimatedDuration:   60,
			Risk:                risk,
			Priority:            priority,
			Source:              "bottleneck",
		})
	}
	return out
}

func (g *HypothesisGenerator) appendHistory(cycleTimestamp string, hypotheses []Hypothesis) error {
	if g.historyPath == "" {
		return nil
	}
	history := map[string][]Hypothesis{}
	if data, err := os.ReadFile(g.historyPath); err == nil {
		_ = json.Unmarshal(data, &history)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("evolution: read %s: %w", g.historyPath, err)
	}

	history[cycleTimestamp] = hypotheses

	if err := os.MkdirAll(filepath.Dir(g.historyPath), 0o755); err != nil {
		return fmt.Errorf("evolution: mkdir for %s: %w", g.historyPath, err)
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("evolution: marshal hypothesis history: %w", err)
	}
	return os.WriteFile(g.historyPath, data, 0o644)
}
