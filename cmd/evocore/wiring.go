package main

import (
	"evocore/internal/config"
	"evocore/internal/evolution"
)

// buildEngine assembles an evolution.Engine from configuration. The default
// wiring uses a DeterministicSuiteRunner and a stubbed external reasoner
// and bottleneck detector; production deployments wire real
// implementations of evolution.SuiteRunner, evolution.ExternalReasoner, and
// evolution.BottleneckDetector without touching this file's shape.
func buildEngine(cfg *config.Config) *evolution.Engine {
	ec := cfg.Evolution

	benchmarkResultsPath := ec.BenchmarkResultsPath
	if benchmarkResultsPath == "" {
		benchmarkResultsPath = "data/benchmarks/results"
	}

	benchmarkRunner := evolution.NewBenchmarkRunner(evolution.NewDeterministicSuiteRunner(), benchmarkResultsPath)
	generator := evolution.NewHypothesisGenerator(nil, ec.MaxHypothesesPerCycle, ec.HypothesesHistoryPath)
	mutator := evolution.NewCodeMutator(ec.RepoPath, ec.MaxMutationsPerHyp, ec.BackupPath)
	rollback := evolution.NewRollbackManager(ec.RepoPath, ec.BackupPath, ec.MaxCheckpoints, ec.AutoCleanup)

	autoApproval := ec.AutoApprovalThreshold
	if bypassApproval {
		autoApproval = 0
	}

	return evolution.NewEngine(benchmarkRunner, generator, mutator, rollback, nil, evolution.EngineConfig{
		ParallelHypotheses:      ec.ParallelHypotheses,
		MinImprovementThreshold: ec.MinImprovementThreshold,
		AutoApprovalThreshold:   autoApproval,
		HistoryPath:             ec.HistoryPath,
		CronExpression:          ec.CronExpression,
	})
}
