// Package evolution implements the Darwinian Evolution Engine (spec.md
// §4.10-§4.14): benchmark, then hypothesize, then test each hypothesis in
// an isolated git branch, then merge whatever improved.
package evolution

import "time"

// BenchmarkResult is one suite's outcome within a BenchmarkResults run.
type BenchmarkResult struct {
	Suite  string  `json:"suite"`
	Passed int     `json:"passed"`
	Failed int     `json:"failed"`
	Total  int     `json:"total"`
	Score  float64 `json:"score"` // 100 * passed/total, or 0 if total == 0
}

// BenchmarkResults is the full output of one BenchmarkRunner.Run call.
type BenchmarkResults struct {
	RunID     string            `json:"runId"`
	Timestamp time.Time         `json:"timestamp"`
	Results   []BenchmarkResult `json:"results"`
	Branch    string            `json:"branch,omitempty"`
}

// ScoreBySuite returns the score of the named suite, or 0 if absent.
func (r BenchmarkResults) ScoreBySuite(suite string) float64 {
	for _, res := range r.Results {
		if res.Suite == suite {
			return res.Score
		}
	}
	return 0
}

// HypothesisType tags the family of change a Hypothesis proposes.
type HypothesisType string

const (
	HypothesisResponseTime      HypothesisType = "response-time"
	HypothesisPromptOptimization HypothesisType = "prompt-optimization"
	HypothesisModelSelection    HypothesisType = "model-optimization"
	HypothesisChunking          HypothesisType = "chunking"
	HypothesisMemoryOptimization HypothesisType = "memory-optimization"
	HypothesisParameterTuning   HypothesisType = "parameter-tuning"
	HypothesisArchitectureChange HypothesisType = "architecture-change"
)

// RiskLevel and PriorityLevel are the fixed severity/priority vocabularies
// the ranking formula maps through (spec.md §4.11).
type RiskLevel string
type PriorityLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"

	PriorityLow    PriorityLevel = "low"
	PriorityMedium PriorityLevel = "medium"
	PriorityHigh   PriorityLevel = "high"
)

// Hypothesis is a proposed, typed change with an expected improvement
// (spec.md §4.11, GLOSSARY).
type Hypothesis struct {
	ID                  string            `json:"id"`
	Type                HypothesisType    `json:"type"`
	TargetComponent     string            `json:"targetComponent"`
	ProposedChanges     map[string]any    `json:"proposedChanges"`
	ExpectedImprovement float64           `json:"expectedImprovement"` // percent
	EstimatedDuration   float64           `json:"estimatedDuration"`   // minutes
	Risk                RiskLevel         `json:"risk"`
	Priority            PriorityLevel     `json:"priority"`
	Source              string            `json:"source"` // "algorithmic" | "pattern-reuse" | "external-reasoning" | "bottleneck"
	Score               float64           `json:"score"`
}

// Mutation is a concrete file/config edit executing a hypothesis, paired
// with rollback data (spec.md GLOSSARY).
type Mutation struct {
	ID            string   `json:"id"`
	HypothesisID  string   `json:"hypothesisId"`
	Type          string   `json:"type"` // "parameter-tuning" | "architecture-change" | "prompt-optimization" | "model-optimization"
	TargetFile    string   `json:"targetFile"`
	NewValue      string   `json:"newValue"`
	RollbackData  string   `json:"rollbackData"`
	SafetyChecks  []string `json:"safetyChecks"`
}

// TestResult is the outcome of testing one hypothesis in Phase 3 (spec.md
// §4.14, §8 invariant "rollbackRequired = ¬success").
type TestResult struct {
	HypothesisID     string   `json:"hypothesisId"`
	Branch           string   `json:"branch"`
	Success          bool     `json:"success"`
	Improvement      float64  `json:"improvement"`
	RollbackRequired bool     `json:"rollbackRequired"`
	Errors           []string `json:"errors,omitempty"`
}

// NewTestResult constructs a TestResult enforcing the rollbackRequired
// invariant at the single point of construction.
func NewTestResult(hypothesisID, branch string, success bool, improvement float64, errs []string) TestResult {
	return TestResult{
		HypothesisID:     hypothesisID,
		Branch:           branch,
		Success:          success,
		Improvement:      improvement,
		RollbackRequired: !success,
		Errors:           errs,
	}
}

// CyclePhase enumerates the Evolution Engine's strict state machine (spec.md
// §4.14, §8: "observed phase sequence is a prefix of benchmark,
// hypothesis-generation, testing, application, complete, or ends in failed").
type CyclePhase string

const (
	PhaseBenchmark            CyclePhase = "benchmark"
	PhaseHypothesisGeneration CyclePhase = "hypothesis-generation"
	PhaseTesting              CyclePhase = "testing"
	PhaseApplication          CyclePhase = "application"
	PhaseComplete             CyclePhase = "complete"
	PhaseFailed               CyclePhase = "failed"
)

// EvolutionCycle is one full run of the pipeline.
type EvolutionCycle struct {
	ID                  string           `json:"id"`
	Phase               CyclePhase       `json:"phase"`
	StartTime           time.Time        `json:"startTime"`
	EndTime             *time.Time       `json:"endTime,omitempty"`
	Duration            time.Duration    `json:"duration,omitempty"`
	Baseline            BenchmarkResults `json:"baseline"`
	Hypotheses          []Hypothesis     `json:"hypotheses,omitempty"`
	TestResults         []TestResult     `json:"testResults,omitempty"`
	AppliedImprovements []string         `json:"appliedImprovements,omitempty"`
	TotalImprovement    float64          `json:"totalImprovement"`
	Error               string           `json:"error,omitempty"`
}

// Checkpoint is a snapshot of repository state plus optional benchmark
// results (spec.md GLOSSARY, §4.13).
type Checkpoint struct {
	ID               string            `json:"id"`
	Branch           string            `json:"branch"`
	Commit           string            `json:"commit"`
	SystemState      map[string]string `json:"systemState,omitempty"`
	Description      string            `json:"description"`
	Timestamp        time.Time         `json:"timestamp"`
	BenchmarkResults *BenchmarkResults `json:"benchmarkResults,omitempty"`
}

// Branch is an experiment branch record (spec.md §4.13 createBranch).
type Branch struct {
	Name      string    `json:"name"`
	Commit    string    `json:"commit"`
	CreatedAt time.Time `json:"createdAt"`
	Type      string    `json:"type"` // "experiment"
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// EvolutionMetrics aggregates across completed cycles (spec.md §4.14).
type EvolutionMetrics struct {
	CyclesCompleted   int     `json:"cyclesCompleted"`
	TotalImprovements int     `json:"totalImprovements"`
	AverageImprovement float64 `json:"averageImprovement"`
	SuccessRate       float64 `json:"successRate"`
	RollbackRate      float64 `json:"rollbackRate"`
	AvgCycleDuration  time.Duration `json:"avgCycleDuration"`
	BestPerformance   float64 `json:"bestPerformance"`
}

// Bottleneck is an identified performance problem feeding hypothesis
// generation's fourth source (spec.md §4.11).
type Bottleneck struct {
	Component string  `json:"component"`
	Type      string  `json:"type"`
	Severity  string  `json:"severity"` // "low" | "medium" | "high"
	Impact    float64 `json:"impact"`
}

// PerformanceProfile is the synthesized metrics snapshot the algorithmic
// hypothesis source thresholds against (spec.md §4.11).
type PerformanceProfile struct {
	ResponseTimeMs   float64
	Accuracy         float64
	TokenEfficiency  float64
	MemoryUtilization float64
}

// HypothesisGenerationContext bundles everything Phase 2 assembles for the
// generator (spec.md §4.14 Phase 2).
type HypothesisGenerationContext struct {
	CurrentMetrics    PerformanceProfile
	HistoricalMetrics []HistoricalRecord
	SystemAnalysis    string
	RecentFailures    []string // hypothesis ids from the last 5 cycles' failed tests
	Bottlenecks       []Bottleneck
}

// HistoricalRecord is one past hypothesis outcome used for pattern-reuse
// clustering (spec.md §4.11 source 2).
type HistoricalRecord struct {
	Hypothesis Hypothesis
	Success    bool
	Improvement float64
	Timestamp  time.Time
}

// VerificationStep is one step of a RollbackManager verification plan
// (spec.md §4.13 createRollbackPlan/executeVerification).
type VerificationStep struct {
	Name       string        `json:"name"`
	Command    string        `json:"command"`
	Args       []string      `json:"args,omitempty"`
	WorkingDir string        `json:"workingDir"`
	Timeout    time.Duration `json:"timeout"`
}

// RollbackPlan bundles verification steps with a risk assessment (spec.md
// §4.13 createRollbackPlan).
type RollbackPlan struct {
	Mutations []Mutation          `json:"mutations"`
	Steps     []VerificationStep  `json:"steps"`
	Risk      RiskLevel           `json:"risk"`
}
