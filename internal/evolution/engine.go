package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"evocore/internal/logging"
)

// BottleneckDetector supplies the fourth hypothesis source's input. The
// default NoopBottleneckDetector reports none, leaving room for a real
// profiler to be wired in later without touching the engine.
type BottleneckDetector interface {
	Detect(ctx context.Context, current BenchmarkResults) ([]Bottleneck, error)
}

type NoopBottleneckDetector struct{}

func (NoopBottleneckDetector) Detect(ctx context.Context, current BenchmarkResults) ([]Bottleneck, error) {
	return nil, nil
}

// Engine orchestrates evolution cycles as the strict four-phase state
// machine from spec.md §4.14, grounded on the teacher's
// internal/campaign/orchestrator_phases.go phase-tracking-with-mutex shape,
// adapted to plain Go control flow (no datalog kernel in this domain).
type Engine struct {
	benchmarkRunner *BenchmarkRunner
	generator       *HypothesisGenerator
	mutator         *CodeMutator
	rollback        *RollbackManager
	bottlenecks     BottleneckDetector

	parallelHypotheses      int
	minImprovementThreshold float64
	autoApprovalThreshold   float64
	historyPath             string

	mu                 sync.Mutex
	running            bool
	cycleInProgress    bool
	currentPerformance BenchmarkResults
	metrics            EvolutionMetrics

	cronSched *cron.Cron
	cronEntry cron.EntryID
}

// EngineConfig bundles the tunables the Evolution Engine needs from
// config.EvolutionConfig without importing that package (keeps this
// package's dependency graph test-friendly).
type EngineConfig struct {
	ParallelHypotheses      int
	MinImprovementThreshold float64
	AutoApprovalThreshold   float64
	HistoryPath             string
	CronExpression          string
}

// NewEngine constructs an Engine from its collaborators and config.
func NewEngine(benchmarkRunner *BenchmarkRunner, generator *HypothesisGenerator, mutator *CodeMutator, rollback *RollbackManager, bottlenecks BottleneckDetector, cfg EngineConfig) *Engine {
	if bottlenecks == nil {
		bottlenecks = NoopBottleneckDetector{}
	}
	parallel := cfg.ParallelHypotheses
	if parallel <= 0 {
		parallel = 1
	}
	e := &Engine{
		benchmarkRunner:         benchmarkRunner,
		generator:               generator,
		mutator:                 mutator,
		rollback:                rollback,
		bottlenecks:             bottlenecks,
		parallelHypotheses:      parallel,
		minImprovementThreshold: cfg.MinImprovementThreshold,
		autoApprovalThreshold:   cfg.AutoApprovalThreshold,
		historyPath:             cfg.HistoryPath,
	}
	if history, err := e.loadCycleHistory(); err == nil {
		e.metrics = computeMetrics(history)
	}
	return e
}

// Start marks the engine running and, when cronExpr is non-empty,
// registers a recurring trigger invoking RunCycle (spec.md §4.14
// Scheduling).
func (e *Engine) Start(ctx context.Context, cronExpr string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("evolution: engine already running")
	}
	e.running = true

	if cronExpr != "" {
		sched := cron.New()
		id, err := sched.AddFunc(cronExpr, func() {
			if _, err := e.RunCycle(context.Background()); err != nil {
				logging.For(logging.CategoryEvolution).Errorw("scheduled cycle failed", "error", err)
			}
		})
		if err != nil {
			e.running = false
			return fmt.Errorf("evolution: invalid cron expression %q: %w", cronExpr, err)
		}
		sched.Start()
		e.cronSched = sched
		e.cronEntry = id
	}
	return nil
}

// Stop unregisters the scheduler. Any in-flight cycle is allowed to drain;
// Stop does not cancel it (spec.md §4.14, §5 cancellation semantics).
func (e *Engine) Stop() {
	e.mu.Lock()
	sched := e.cronSched
	e.cronSched = nil
	e.running = false
	e.mu.Unlock()

	if sched != nil {
		stopCtx := sched.Stop()
		<-stopCtx.Done()
	}
}

// IsRunning reports whether Start has been called without a matching Stop.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Metrics returns a snapshot of accumulated EvolutionMetrics.
func (e *Engine) Metrics() EvolutionMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}

func (e *Engine) beginCycle() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cycleInProgress {
		return fmt.Errorf("evolution: a cycle is already in progress")
	}
	e.cycleInProgress = true
	return nil
}

func (e *Engine) endCycle() {
	e.mu.Lock()
	e.cycleInProgress = false
	e.mu.Unlock()
}

// RunCycle executes one full evolution cycle. Overlapping invocations are
// rejected (spec.md §4.14 preconditions).
func (e *Engine) RunCycle(ctx context.Context) (*EvolutionCycle, error) {
	if err := e.beginCycle(); err != nil {
		return nil, err
	}
	defer e.endCycle()

	cycle := &EvolutionCycle{ID: uuid.NewString(), Phase: PhaseBenchmark, StartTime: time.Now()}
	log := logging.For(logging.CategoryEvolution)

	if err := e.runCyclePhases(ctx, cycle); err != nil {
		cycle.Phase = PhaseFailed
		cycle.Error = err.Error()
		now := time.Now()
		cycle.EndTime = &now
		cycle.Duration = now.Sub(cycle.StartTime)
		e.recordCompletion(cycle)
		log.Errorw("evolution cycle failed", "cycle", cycle.ID, "phase", cycle.Phase, "error", err)
		return cycle, err
	}

	cycle.Phase = PhaseComplete
	now := time.Now()
	cycle.EndTime = &now
	cycle.Duration = now.Sub(cycle.StartTime)
	e.recordCompletion(cycle)
	log.Infow("evolution cycle complete", "cycle", cycle.ID, "totalImprovement", cycle.TotalImprovement, "applied", len(cycle.AppliedImprovements))
	return cycle, nil
}

// Plan runs phases 1-2 only (benchmark + hypothesis-generation) and returns
// the resulting hypotheses without testing or applying anything. It exists
// for dry-run invocations that want to see what a cycle would propose
// without creating branches, applying mutations, or appending to the cycle
// history. The benchmark run is still persisted under the results
// directory, and the generator still records the hypotheses in its
// hypotheses history file.
func (e *Engine) Plan(ctx context.Context) (*EvolutionCycle, error) {
	if err := e.beginCycle(); err != nil {
		return nil, err
	}
	defer e.endCycle()

	cycle := &EvolutionCycle{ID: uuid.NewString(), Phase: PhaseBenchmark, StartTime: time.Now()}

	baseline, err := e.benchmarkRunner.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("phase benchmark: %w", err)
	}
	cycle.Baseline = baseline

	cycle.Phase = PhaseHypothesisGeneration
	genCtx, err := e.buildGenerationContext(ctx, baseline)
	if err != nil {
		return nil, fmt.Errorf("phase hypothesis-generation: %w", err)
	}
	hypotheses, err := e.generator.Generate(ctx, cycle.StartTime.Format(time.RFC3339), genCtx)
	if err != nil {
		return nil, fmt.Errorf("phase hypothesis-generation: %w", err)
	}
	cycle.Hypotheses = hypotheses

	now := time.Now()
	cycle.EndTime = &now
	cycle.Duration = now.Sub(cycle.StartTime)
	return cycle, nil
}

func (e *Engine) runCyclePhases(ctx context.Context, cycle *EvolutionCycle) error {
	// Phase 1 — benchmark.
	if _, err := e.rollback.CreateCheckpoint(ctx, "pre-benchmark checkpoint for cycle "+cycle.ID, nil); err != nil {
		return fmt.Errorf("phase benchmark: checkpoint: %w", err)
	}
	baseline, err := e.benchmarkRunner.Run(ctx)
	if err != nil {
		return fmt.Errorf("phase benchmark: %w", err)
	}
	cycle.Baseline = baseline
	e.mu.Lock()
	e.currentPerformance = baseline
	e.mu.Unlock()

	// Phase 2 — hypothesis-generation.
	cycle.Phase = PhaseHypothesisGeneration
	genCtx, err := e.buildGenerationContext(ctx, baseline)
	if err != nil {
		return fmt.Errorf("phase hypothesis-generation: %w", err)
	}
	hypotheses, err := e.generator.Generate(ctx, cycle.StartTime.Format(time.RFC3339), genCtx)
	if err != nil {
		return fmt.Errorf("phase hypothesis-generation: %w", err)
	}
	cycle.Hypotheses = hypotheses

	// Phase 3 — testing.
	cycle.Phase = PhaseTesting
	results, err := e.testHypotheses(ctx, cycle.ID, baseline, hypotheses)
	if err != nil {
		return fmt.Errorf("phase testing: %w", err)
	}
	cycle.TestResults = results

	// Phase 4 — application.
	cycle.Phase = PhaseApplication
	if err := e.applyResults(ctx, cycle); err != nil {
		return fmt.Errorf("phase application: %w", err)
	}

	return nil
}

func (e *Engine) buildGenerationContext(ctx context.Context, baseline BenchmarkResults) (HypothesisGenerationContext, error) {
	history, err := e.loadCycleHistory()
	if err != nil {
		return HypothesisGenerationContext{}, err
	}

	cutoff := time.Now().AddDate(0, 0, -30)
	var historical []HistoricalRecord
	for _, c := range history {
		if c.StartTime.Before(cutoff) {
			continue
		}
		byID := map[string]Hypothesis{}
		for _, h := range c.Hypotheses {
			byID[h.ID] = h
		}
		for _, tr := range c.TestResults {
			h, ok := byID[tr.HypothesisID]
			if !ok {
				continue
			}
			historical = append(historical, HistoricalRecord{
				Hypothesis: h, Success: tr.Success, Improvement: tr.Improvement, Timestamp: c.StartTime,
			})
		}
	}

	recent := history
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	var recentFailures []string
	for _, c := range recent {
		for _, tr := range c.TestResults {
			if !tr.Success {
				recentFailures = append(recentFailures, tr.HypothesisID)
			}
		}
	}

	bottlenecks, err := e.bottlenecks.Detect(ctx, baseline)
	if err != nil {
		return HypothesisGenerationContext{}, err
	}

	return HypothesisGenerationContext{
		CurrentMetrics:    profileFromBenchmark(baseline),
		HistoricalMetrics: historical,
		SystemAnalysis:    fmt.Sprintf("baseline avg score %.2f across %d suites", averageScore(baseline), len(baseline.Results)),
		RecentFailures:    recentFailures,
		Bottlenecks:       bottlenecks,
	}, nil
}

// profileFromBenchmark derives a PerformanceProfile from benchmark suite
// scores. spec.md's three canonical suites (sweBench, humanEval, polyglot)
// are all correctness-style scores rather than being split along the
// accuracy/latency/efficiency axes the threshold source checks, so this
// mapping — an implementer's choice, since spec.md leaves the profile's
// construction to the implementation — assigns each threshold dimension to
// one suite: sweBench tracks accuracy, polyglot tracks both token
// efficiency and inverse memory pressure, and humanEval maps to response
// time on a 0-3000ms scale.
func profileFromBenchmark(r BenchmarkResults) PerformanceProfile {
	sweBench := r.ScoreBySuite("sweBench")
	humanEval := r.ScoreBySuite("humanEval")
	polyglot := r.ScoreBySuite("polyglot")
	return PerformanceProfile{
		ResponseTimeMs:    (100 - humanEval) * 30,
		Accuracy:          sweBench / 100,
		TokenEfficiency:   polyglot / 100,
		MemoryUtilization: 1 - polyglot/100,
	}
}

// testHypotheses partitions hypotheses into parallelHypotheses-sized
// batches and tests every hypothesis in a batch concurrently (spec.md
// §4.14 Phase 3), grounded on golang.org/x/sync/errgroup for
// bounded-concurrency fan-out.
func (e *Engine) testHypotheses(ctx context.Context, cycleID string, baseline BenchmarkResults, hypotheses []Hypothesis) ([]TestResult, error) {
	var all []TestResult
	for start := 0; start < len(hypotheses); start += e.parallelHypotheses {
		end := start + e.parallelHypotheses
		if end > len(hypotheses) {
			end = len(hypotheses)
		}
		batch := hypotheses[start:end]

		results := make([]TestResult, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, h := range batch {
			i, h := i, h
			g.Go(func() error {
				results[i] = e.testOneHypothesis(gctx, baseline, h)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		all = append(all, results...)
	}
	_ = cycleID
	return all, nil
}

// testOneHypothesis implements spec.md §4.14 Phase 3 steps 1-5 for a single
// hypothesis. Exceptions are converted to a failed, rollback-required
// TestResult rather than aborting the batch (spec.md Phase 3 "settled
// results are collected regardless of batch-mate failures").
func (e *Engine) testOneHypothesis(ctx context.Context, baseline BenchmarkResults, h Hypothesis) TestResult {
	log := logging.For(logging.CategoryEvolution)

	branch, err := e.rollback.CreateBranch(ctx, h.ID)
	if err != nil {
		return NewTestResult(h.ID, "", false, 0, []string{err.Error()})
	}

	mutations, err := e.mutator.GenerateMutations(h)
	if err != nil {
		e.cleanupBranch(ctx, branch.Name)
		return NewTestResult(h.ID, branch.Name, false, 0, []string{err.Error()})
	}

	if err := e.rollback.ApplyMutations(ctx, e.mutator, mutations, branch.Name); err != nil {
		e.cleanupBranch(ctx, branch.Name)
		return NewTestResult(h.ID, branch.Name, false, 0, []string{err.Error()})
	}

	current, err := e.benchmarkRunner.RunInBranch(ctx, branch.Name)
	if err != nil {
		e.cleanupBranch(ctx, branch.Name)
		return NewTestResult(h.ID, branch.Name, false, 0, []string{err.Error()})
	}

	improvement := e.benchmarkRunner.CalculateImprovement(baseline, current)
	success := improvement > 0 && improvement >= e.minImprovementThreshold

	if !success {
		log.Infow("hypothesis failed threshold, cleaning up branch", "hypothesis", h.ID, "improvement", improvement)
		e.cleanupBranch(ctx, branch.Name)
	}

	return NewTestResult(h.ID, branch.Name, success, improvement, nil)
}

func (e *Engine) cleanupBranch(ctx context.Context, branch string) {
	if branch == "" {
		return
	}
	if err := e.rollback.DeleteBranch(ctx, branch); err != nil {
		logging.For(logging.CategoryEvolution).Warnw("failed to clean up experiment branch", "branch", branch, "error", err)
	}
}

// applyResults implements spec.md §4.14 Phase 4: successful results sorted
// by improvement descending (ties broken by hypothesis id per §5 ordering
// guarantees), auto-merging those at or above autoApprovalThreshold.
func (e *Engine) applyResults(ctx context.Context, cycle *EvolutionCycle) error {
	var successes []TestResult
	for _, tr := range cycle.TestResults {
		if tr.Success {
			successes = append(successes, tr)
		}
	}
	sort.Slice(successes, func(i, j int) bool {
		if successes[i].Improvement != successes[j].Improvement {
			return successes[i].Improvement > successes[j].Improvement
		}
		return successes[i].HypothesisID < successes[j].HypothesisID
	})

	for _, tr := range successes {
		if tr.Improvement < e.autoApprovalThreshold {
			logging.For(logging.CategoryEvolution).Infow("improvement below auto-approval threshold, deferred for manual review", "hypothesis", tr.HypothesisID, "improvement", tr.Improvement)
			continue
		}

		if _, err := e.rollback.CreateCheckpoint(ctx, "pre-improvement checkpoint for "+tr.HypothesisID, nil); err != nil {
			return err
		}
		if err := e.rollback.MergeToMain(ctx, tr.Branch); err != nil {
			return err
		}

		current, err := e.benchmarkRunner.Run(ctx)
		if err != nil {
			return err
		}
		e.mu.Lock()
		e.currentPerformance = current
		e.mu.Unlock()

		cycle.AppliedImprovements = append(cycle.AppliedImprovements, tr.HypothesisID)
		cycle.TotalImprovement += tr.Improvement
	}
	return nil
}

func (e *Engine) loadCycleHistory() ([]EvolutionCycle, error) {
	if e.historyPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(e.historyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("evolution: read %s: %w", e.historyPath, err)
	}
	var history []EvolutionCycle
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("evolution: unmarshal %s: %w", e.historyPath, err)
	}
	return history, nil
}

// recordCompletion appends the cycle to history and recomputes
// EvolutionMetrics (spec.md §4.14 terminal bookkeeping). Persistence
// failures are logged, not propagated, so a history-write hiccup never
// masks the cycle's own success/failure outcome.
func (e *Engine) recordCompletion(cycle *EvolutionCycle) {
	history, err := e.loadCycleHistory()
	if err != nil {
		logging.For(logging.CategoryEvolution).Errorw("failed to load cycle history", "error", err)
		history = nil
	}
	history = append(history, *cycle)

	if e.historyPath != "" {
		if err := os.MkdirAll(filepath.Dir(e.historyPath), 0o755); err == nil {
			if data, err := json.MarshalIndent(history, "", "  "); err == nil {
				_ = os.WriteFile(e.historyPath, data, 0o644)
			}
		}
	}

	e.mu.Lock()
	e.metrics = computeMetrics(history)
	e.mu.Unlock()
}

func computeMetrics(history []EvolutionCycle) EvolutionMetrics {
	var m EvolutionMetrics
	var totalDuration time.Duration
	var totalTests, successfulTests, rollbacks int
	var improvementSum float64
	var best float64

	for _, c := range history {
		if c.Phase != PhaseComplete {
			continue
		}
		m.CyclesCompleted++
		totalDuration += c.Duration
		m.TotalImprovements += len(c.AppliedImprovements)
		improvementSum += c.TotalImprovement
		if avg := averageScore(c.Baseline); avg > best {
			best = avg
		}
		for _, tr := range c.TestResults {
			totalTests++
			if tr.Success {
				successfulTests++
			}
			if tr.RollbackRequired {
				rollbacks++
			}
		}
	}

	if m.CyclesCompleted > 0 {
		m.AverageImprovement = improvementSum / float64(m.CyclesCompleted)
		m.AvgCycleDuration = totalDuration / time.Duration(m.CyclesCompleted)
	}
	if totalTests > 0 {
		m.SuccessRate = float64(successfulTests) / float64(totalTests)
		m.RollbackRate = float64(rollbacks) / float64(totalTests)
	}
	m.BestPerformance = best
	return m
}
