package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/sift/internal/api"
	"github.com/MikeSquared-Agency/sift/internal/classifier"
	"github.com/MikeSquared-Agency/sift/internal/config"
	"github.com/MikeSquared-Agency/sift/internal/filter"
)

func newClassifyCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify conversations and print per-category volume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			setupLogging(cfg.LogLevel, os.Stderr)
			logger := logFor(cmd)

			reg, err := loadTaxonomy(cfg.TaxonomyPath)
			if err != nil {
				return err
			}
			convs, err := readConversations(input, cmd.InOrStdin(), logger)
			if err != nil {
				return err
			}

			results := classifier.New(reg).ClassifyAll(convs)
			summary := classifier.Aggregate(results)
			if err := summary.Validate(); err != nil {
				logger.Warn("aggregate check failed", "error", err)
			}
			return writeJSON(cmd.OutOrStdout(), api.ClassifyResponse{Results: results, Summary: summary})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "conversation JSON file, or - for stdin")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newFilterCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "filter <kind> [query]",
		Short: "Run one filter query over conversations",
		Long: `Kinds: category, subcategory, custom_tag, agent, escalation, technical.
The query is required for every kind except escalation and technical.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			setupLogging(cfg.LogLevel, os.Stderr)
			logger := logFor(cmd)

			kind := filter.Kind(args[0])
			query := ""
			if len(args) == 2 {
				query = args[1]
			}
			if query == "" && kind != filter.KindEscalation && kind != filter.KindTechnical {
				return errors.New("filter " + args[0] + " needs a query")
			}

			reg, err := loadTaxonomy(cfg.TaxonomyPath)
			if err != nil {
				return err
			}
			convs, err := readConversations(input, cmd.InOrStdin(), logger)
			if err != nil {
				return err
			}

			matches, err := filter.New(reg, logger).Run(kind, convs, query)
			if err != nil {
				return err
			}
			if matches == nil {
				matches = []filter.Match{}
			}
			resp := api.FilterResponse{Kind: kind, Query: query, Count: len(matches), Matches: matches}
			if kind == filter.KindTechnical {
				resp.Troubleshooting = filter.SummarizeTechnical(matches)
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "conversation JSON file, or - for stdin")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// logFor tags log lines with the running command.
func logFor(cmd *cobra.Command) *slog.Logger {
	return slog.Default().With("command", cmd.Name())
}
