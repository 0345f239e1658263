package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/sift/internal/config"
	"github.com/MikeSquared-Agency/sift/internal/report"
)

func newReportCmd() *cobra.Command {
	var (
		input     string
		sentiment string
		batchID   string
		noLLM     bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build a category report with representative examples from a JSON file",
		Example: `  sift report --input convs.json --sentiment "frustrated customers"
  cat convs.json | sift report --input - --no-llm`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			setupLogging(cfg.LogLevel, os.Stderr)
			logger := logFor(cmd)

			comps, err := buildComponents(cfg, noLLM, logger)
			if err != nil {
				return err
			}
			convs, err := readConversations(input, cmd.InOrStdin(), logger)
			if err != nil {
				return err
			}

			r, err := comps.builder.Build(cmd.Context(), convs, report.Options{BatchID: batchID, Sentiment: sentiment})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), r)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "conversation JSON file, or - for stdin")
	cmd.Flags().StringVar(&sentiment, "sentiment", "", "sentiment the examples should illustrate")
	cmd.Flags().StringVar(&batchID, "batch-id", "", "identifier recorded on the report")
	cmd.Flags().BoolVar(&noLLM, "no-llm", false, "rank examples by rules only and skip translation")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
