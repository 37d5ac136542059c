package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/price-sentry/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "price-sentry",
	Short: "Tiered price extraction for travel checkout pages",
	Long:  "Resolves the booking total on a page through cascading tiers: site selectors, semantic markup, visual heuristics, user confirmations, and an optional model fallback.",
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
