package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lendsight/engage-cli/internal/processor"
	"github.com/lendsight/engage-cli/internal/recipe"
	"github.com/lendsight/engage-cli/internal/runner"
	"github.com/lendsight/engage-cli/internal/store"
	"github.com/lendsight/engage-cli/pkg/anthropic"
)

var runCmd = &cobra.Command{
	Use:   "run <recipe.yaml>",
	Short: "Execute an analysis recipe over its lead list",
	Long: "Loads the recipe, ingests leads and transcripts, runs the processor chain " +
		"and the extraction step for every lead, and writes results.csv plus summary.txt " +
		"to a timestamped output directory. Individual lead failures degrade to defaults; " +
		"only ingestion failure aborts the run.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rec, err := recipe.Load(args[0])
		if err != nil {
			return err
		}
		if err := rec.Validate(processor.Names()); err != nil {
			return err
		}

		var client anthropic.Client
		if len(rec.LLM.ExpectedLLMKeys) > 0 {
			if cfg.Anthropic.Key == "" {
				return eris.New("run: ENGAGE_ANTHROPIC_KEY is required for recipes with llm_config")
			}
			client = anthropic.NewClient(cfg.Anthropic.Key)
		}

		var st store.Store
		if s, err := initStore(); err != nil {
			zap.L().Warn("run history disabled", zap.Error(err))
		} else {
			st = s
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		report, err := runner.New(cfg, rec, client, st).Run(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, report.Summary.Render())
		fmt.Fprintf(os.Stdout, "Results: %s\n", report.CSVPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
