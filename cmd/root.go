package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/skill-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "skill-engine",
	Short: "Skill DSL execution engine and benchmark harness",
	Long:  "Parses free-text material descriptions into structured attributes using declarative skill DSLs, generates labeled benchmark datasets from those DSLs, and scores engine output against them.",
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
