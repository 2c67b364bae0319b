package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lendsight/engage-cli/internal/config"
	"github.com/lendsight/engage-cli/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "engage-cli",
	Short: "Lead engagement analysis pipeline",
	Long:  "Joins lead lists with conversation transcripts, runs recipe-driven processors and schema-validated Claude extraction, writes CSV results and a run summary.",
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

// initStore opens the run-history database configured in store.path.
func initStore() (store.Store, error) {
	return store.NewSQLite(cfg.Store.Path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
