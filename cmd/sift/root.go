package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sift",
		Short: "Classify support conversations and pick representative examples",
		Long: `sift classifies customer-support conversations against a category taxonomy,
counts volume by primary category and selects representative verbatim
examples for reporting. It runs as a NATS/HTTP service or one-shot over a
JSON file.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newClassifyCmd())
	root.AddCommand(newFilterCmd())
	return root
}
