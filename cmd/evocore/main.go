// Package main implements the evocore CLI, a thin command tree over the
// Evolution Engine and Reasoning Orchestrator.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"evocore/internal/config"
	"evocore/internal/logging"
)

var (
	cfgFile        string
	jsonOut        bool
	verbose        bool
	dryRun         bool
	bypassApproval bool

	appConfig *config.Config

	rootCmd = &cobra.Command{
		Use:   "evocore",
		Short: "evocore - a self-improving development assistant",
		Long: `evocore runs a Darwinian evolution loop over its own reasoning
subsystems: it benchmarks itself, hypothesizes improvements, tests each one
in an isolated branch, and merges whatever actually helped.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cobra.OnInitialize(nil)
			initViper()

			level := "info"
			if verbose {
				level = "debug"
			}
			if err := logging.Init(level, viper.GetString("logging.format")); err != nil {
				return fmt.Errorf("init logging: %w", err)
			}

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			appConfig = cfg

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			cmd.SetContext(ctx)
			cmd.Root().PersistentPostRunE = func(*cobra.Command, []string) error {
				cancel()
				return nil
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/evocore.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit JSON output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "report planned actions without applying them")
	rootCmd.PersistentFlags().BoolVar(&bypassApproval, "bypass-approval", false, "merge all successful hypotheses regardless of auto-approval threshold")

	rootCmd.AddCommand(
		startCmd,
		stopCmd,
		cycleCmd,
		statusCmd,
		metricsCmd,
		historyCmd,
		baselineCmd,
	)
}

func initViper() {
	viper.SetConfigFile(cfgFile)
	viper.SetEnvPrefix("EVOCORE")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
