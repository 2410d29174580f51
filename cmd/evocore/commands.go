package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"evocore/internal/evolution"
	"evocore/internal/logging"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "start the evolution engine's cron-scheduled cycle loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := buildEngine(appConfig)
		ctx := cmd.Context()
		log := logging.For(logging.CategoryCLI)

		cronExpr := appConfig.Evolution.CronExpression
		if dryRun {
			cronExpr = ""
		}
		if err := engine.Start(ctx, cronExpr); err != nil {
			return err
		}
		log.Infow("evolution engine started", "cron", cronExpr)

		<-ctx.Done()

		engine.Stop()
		log.Infow("evolution engine stopped")
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "signal a running evolution engine process to stop",
	RunE: func(cmd *cobra.Command, args []string) error {
		// The engine's lifecycle is process-scoped (spec.md §5 "the
		// Evolution Engine serializes cycles ... per process"); stopping a
		// separately-running process is an operational action (sending a
		// signal to that process), not something this invocation can do
		// in-process.
		fmt.Println("send SIGTERM to the running `evocore start` process to stop it gracefully")
		return nil
	},
}

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "run a single evolution cycle synchronously",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := buildEngine(appConfig)

		if dryRun {
			cycle, err := engine.Plan(cmd.Context())
			if cycle == nil {
				return err
			}
			if jsonOut {
				return printJSON(cycle)
			}
			fmt.Printf("planned cycle %s: %d hypotheses generated (dry run, nothing tested or applied)\n", cycle.ID, len(cycle.Hypotheses))
			for _, h := range cycle.Hypotheses {
				fmt.Printf("  [%s] %s on %s (expected improvement %.1f%%, risk=%s)\n", h.ID, h.Type, h.TargetComponent, h.ExpectedImprovement, h.Risk)
			}
			return err
		}

		cycle, err := engine.RunCycle(cmd.Context())
		if cycle == nil {
			return err
		}
		if jsonOut {
			return printJSON(cycle)
		}
		printCycleSummary(cycle)
		return err
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "report whether this invocation's evolution engine is running (a separate `start` process is not detected)",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := buildEngine(appConfig)
		status := map[string]any{"running": engine.IsRunning()}
		if jsonOut {
			return printJSON(status)
		}
		fmt.Printf("running: %v\n", status["running"])
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "print accumulated evolution metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := buildEngine(appConfig)
		metrics := engine.Metrics()
		if jsonOut {
			return printJSON(metrics)
		}
		fmt.Printf("cycles completed:    %d\n", metrics.CyclesCompleted)
		fmt.Printf("total improvements:  %d\n", metrics.TotalImprovements)
		fmt.Printf("average improvement: %.2f%%\n", metrics.AverageImprovement)
		fmt.Printf("success rate:        %.2f%%\n", metrics.SuccessRate*100)
		fmt.Printf("rollback rate:       %.2f%%\n", metrics.RollbackRate*100)
		fmt.Printf("avg cycle duration:  %s\n", metrics.AvgCycleDuration)
		fmt.Printf("best performance:    %.2f\n", metrics.BestPerformance)
		return nil
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "print historical benchmark results",
	RunE: func(cmd *cobra.Command, args []string) error {
		benchmarkRunner := evolution.NewBenchmarkRunner(evolution.NewDeterministicSuiteRunner(), appConfig.Evolution.BenchmarkResultsPath)
		history, err := benchmarkRunner.GetHistoricalResults(historyLimit)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(history)
		}
		for _, r := range history {
			fmt.Printf("%s  branch=%q  suites=%d\n", r.Timestamp.Format("2006-01-02T15:04:05Z07:00"), r.Branch, len(r.Results))
		}
		return nil
	},
}

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "run the benchmark suite once and record it as a baseline",
	RunE: func(cmd *cobra.Command, args []string) error {
		benchmarkRunner := evolution.NewBenchmarkRunner(evolution.NewDeterministicSuiteRunner(), appConfig.Evolution.BenchmarkResultsPath)
		results, err := benchmarkRunner.Run(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(results)
		}
		for _, r := range results.Results {
			fmt.Printf("%-24s passed=%d failed=%d score=%.2f\n", r.Suite, r.Passed, r.Failed, r.Score)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "maximum number of historical results to print")
}

func printCycleSummary(cycle *evolution.EvolutionCycle) {
	fmt.Printf("cycle %s: phase=%s duration=%s\n", cycle.ID, cycle.Phase, cycle.Duration)
	fmt.Printf("  hypotheses tested: %d\n", len(cycle.TestResults))
	fmt.Printf("  applied:           %d\n", len(cycle.AppliedImprovements))
	fmt.Printf("  total improvement: %.2f%%\n", cycle.TotalImprovement)
	if cycle.Error != "" {
		fmt.Printf("  error: %s\n", cycle.Error)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

