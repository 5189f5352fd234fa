package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clinimatch/clinimatch/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "clinimatch",
	Short: "Clinical trial matching service",
	Long:  "Matches patient profiles to clinical trials: queries ClinicalTrials.gov, filters by status and proximity, translates medical jargon into plain language via Claude, and caches results.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
