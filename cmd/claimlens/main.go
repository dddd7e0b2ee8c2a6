package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openmedicaid/claimlens/internal/config"
	"github.com/openmedicaid/claimlens/internal/logger"
)

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "claimlens",
		Short: "Descriptive statistics and narrative insights over Medicaid claims aggregates",
		Long: `claimlens turns pre-aggregated Medicaid provider spending data into chart
series, templated insights, z-score outliers and federal matching analysis.

Run "claimlens serve" for the HTTP service, or one of the report commands
to print a single computation as JSON.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			c.cfg = cfg

			logger.Init(cfg.Logging.Level, cfg.Logging.Format)
			if c.configPath != "" {
				logger.Debug("Configuration loaded from %s", c.configPath)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to configuration file (defaults plus CLAIMLENS_* env when empty)")

	root.AddCommand(c.serveCmd())
	root.AddCommand(c.reportCmd())
	root.AddCommand(c.insightsCmd())
	root.AddCommand(c.outliersCmd())
	root.AddCommand(c.federalCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
