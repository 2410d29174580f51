package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// CanonicalSuites are the three benchmark suites CalculateImprovement
// averages over (spec.md §3, §4.10).
var CanonicalSuites = []string{"sweBench", "humanEval", "polyglot"}

// SuiteRunner executes one named benchmark suite and returns its result.
// Production wiring and tests each supply their own implementation; the
// Evolution Engine never assumes a particular suite's internals.
type SuiteRunner interface {
	RunSuite(ctx context.Context, suite string, branch string) (BenchmarkResult, error)
}

// DeterministicSuiteRunner is a reproducible stand-in SuiteRunner for tests
// and for environments with no real benchmark harness wired in yet. It
// derives pass/fail counts from a seed so repeated runs against the same
// branch name are stable, rather than rolling dice on every call.
type DeterministicSuiteRunner struct {
	TotalCases int
	// Seed maps a suite name to a base pass rate in [0,1]; suites absent
	// from the map default to 0.8.
	Seed map[string]float64
}

// NewDeterministicSuiteRunner returns a DeterministicSuiteRunner with a
// sane default case count and neutral seed.
func NewDeterministicSuiteRunner() *DeterministicSuiteRunner {
	return &DeterministicSuiteRunner{TotalCases: 50, Seed: map[string]float64{}}
}

func (d *DeterministicSuiteRunner) RunSuite(ctx context.Context, suite string, branch string) (BenchmarkResult, error) {
	rate, ok := d.Seed[suite]
	if !ok {
		rate = 0.8
	}
	total := d.TotalCases
	if total <= 0 {
		total = 1
	}
	passed := int(rate * float64(total))
	if passed > total {
		passed = total
	}
	failed := total - passed
	score := 0.0
	if total > 0 {
		score = 100 * float64(passed) / float64(total)
	}
	return BenchmarkResult{Suite: suite, Passed: passed, Failed: failed, Total: total, Score: score}, nil
}

// BenchmarkRunner executes the canonical suites and persists each run,
// grounded on the teacher's append-only JSON-history-under-a-data-root
// convention (internal/campaign/orchestrator_lifecycle.go's saveCampaign).
type BenchmarkRunner struct {
	runner    SuiteRunner
	resultsDir string
}

// NewBenchmarkRunner constructs a BenchmarkRunner persisting results under
// resultsDir (one JSON file per run, named by run UUID).
func NewBenchmarkRunner(runner SuiteRunner, resultsDir string) *BenchmarkRunner {
	return &BenchmarkRunner{runner: runner, resultsDir: resultsDir}
}

// Run executes the canonical suites against the working tree (no branch
// switch) and persists the result.
func (b *BenchmarkRunner) Run(ctx context.Context) (BenchmarkResults, error) {
	return b.run(ctx, "")
}

// RunInBranch executes the canonical suites with the named branch recorded
// against the result, for use from within an isolated hypothesis test.
func (b *BenchmarkRunner) RunInBranch(ctx context.Context, branch string) (BenchmarkResults, error) {
	return b.run(ctx, branch)
}

func (b *BenchmarkRunner) run(ctx context.Context, branch string) (BenchmarkResults, error) {
	results := make([]BenchmarkResult, 0, len(CanonicalSuites))
	for _, suite := range CanonicalSuites {
		res, err := b.runner.RunSuite(ctx, suite, branch)
		if err != nil {
			return BenchmarkResults{}, fmt.Errorf("evolution: run suite %s: %w", suite, err)
		}
		results = append(results, res)
	}

	out := BenchmarkResults{
		RunID:     uuid.NewString(),
		Timestamp: time.Now(),
		Results:   results,
		Branch:    branch,
	}
	if err := b.persist(out); err != nil {
		return BenchmarkResults{}, err
	}
	return out, nil
}

func (b *BenchmarkRunner) persist(r BenchmarkResults) error {
	if b.resultsDir == "" {
		return nil
	}
	if err := os.MkdirAll(b.resultsDir, 0o755); err != nil {
		return fmt.Errorf("evolution: mkdir %s: %w", b.resultsDir, err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("evolution: marshal benchmark results: %w", err)
	}
	path := filepath.Join(b.resultsDir, r.RunID+".json")
	return os.WriteFile(path, data, 0o644)
}

// averageScore is avg(r) per spec.md §4.10: the mean of every suite score
// that is strictly positive. A suite scoring exactly 0 (total==0, or every
// case failed) is excluded from the average rather than dragging it down
// to exactly 0, matching the spec's "mean of scores > 0" definition.
func averageScore(r BenchmarkResults) float64 {
	sum, n := 0.0, 0
	for _, res := range r.Results {
		if res.Score > 0 {
			sum += res.Score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// CalculateImprovement returns the percentage change in average score from
// baseline to current: (avg(current)-avg(baseline))/avg(baseline)*100, or 0
// if the baseline average is 0 (spec.md §4.10).
func (b *BenchmarkRunner) CalculateImprovement(baseline, current BenchmarkResults) float64 {
	base := averageScore(baseline)
	if base == 0 {
		return 0
	}
	cur := averageScore(current)
	return (cur - base) / base * 100
}

// GetHistoricalResults returns up to limit persisted BenchmarkResults, most
// recent first.
func (b *BenchmarkRunner) GetHistoricalResults(limit int) ([]BenchmarkResults, error) {
	if b.resultsDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(b.resultsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("evolution: read %s: %w", b.resultsDir, err)
	}

	var all []BenchmarkResults
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(b.resultsDir, e.Name()))
		if err != nil {
			continue
		}
		var r BenchmarkResults
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		all = append(all, r)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
