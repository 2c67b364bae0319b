package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lendsight/engage-cli/internal/processor"
	"github.com/lendsight/engage-cli/internal/recipe"
)

var recipeCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Inspect and validate analysis recipes",
}

var recipeShowCmd = &cobra.Command{
	Use:   "show <recipe.yaml>",
	Short: "Print a recipe's resolved configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := recipe.Load(args[0])
		if err != nil {
			return err
		}
		formatRecipe(os.Stdout, rec)
		return nil
	},
}

var recipeValidateCmd = &cobra.Command{
	Use:   "validate <recipe.yaml>",
	Short: "Check a recipe against the processor registry and key schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := recipe.Load(args[0])
		if err != nil {
			return err
		}
		if err := rec.Validate(processor.Names()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: OK (%d processors, %d llm keys, %d columns)\n",
			rec.RecipeName, len(rec.Processors), len(rec.LLM.ExpectedLLMKeys), len(rec.OutputColumns))
		return nil
	},
}

func init() {
	recipeCmd.AddCommand(recipeShowCmd)
	recipeCmd.AddCommand(recipeValidateCmd)
	rootCmd.AddCommand(recipeCmd)
}

func formatRecipe(out io.Writer, rec *recipe.Recipe) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Recipe:\t%s (v%d)\n", rec.RecipeName, rec.Version)
	_, _ = fmt.Fprintf(w, "Input:\t%s", rec.DataInput.Type)
	if rec.DataInput.Path != "" {
		_, _ = fmt.Fprintf(w, " %s", rec.DataInput.Path)
	}
	_, _ = fmt.Fprintln(w)
	if rec.DataInput.TranscriptsDir != "" {
		_, _ = fmt.Fprintf(w, "Transcripts:\t%s\n", rec.DataInput.TranscriptsDir)
	}

	_, _ = fmt.Fprintln(w, "Processors:")
	for i, p := range rec.Processors {
		_, _ = fmt.Fprintf(w, "  %d.\t%s\n", i+1, p.Name)
	}

	if len(rec.LLM.ExpectedLLMKeys) > 0 {
		_, _ = fmt.Fprintf(w, "Prompt:\t%s\n", rec.LLM.PromptFile)
		_, _ = fmt.Fprintln(w, "Extracted keys:")
		for name, spec := range rec.LLM.ExpectedLLMKeys {
			line := fmt.Sprintf("  %s\t%s", name, spec.Type)
			if len(spec.EnumValues) > 0 {
				line += " (" + strings.Join(spec.EnumValues, " | ") + ")"
			}
			_, _ = fmt.Fprintln(w, line)
		}
	}

	_, _ = fmt.Fprintf(w, "Columns:\t%s\n", strings.Join(rec.OutputColumns, ", "))
	_ = w.Flush()
}
