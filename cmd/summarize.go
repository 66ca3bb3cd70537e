package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	summarizeFile  string
	summarizeQuery string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [question...]",
	Short: "Answer several questions about a CSV file at once",
	Long: `Answer each question about the contents of a CSV file and print the answers
in the order the questions were given, each under the question in bold.

By default the whole table is summarized. Pass --sql to summarize the result of a query instead.

Examples:
  fileqa summarize --file companies.csv "Which sector dominates?" "What is the price range?"
  fileqa summarize --file companies.csv --sql "SELECT * FROM data_table WHERE sector = 'Tech'" "Summarize these companies"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		tbl, err := openCSV(ctx, summarizeFile)
		if err != nil {
			HandleError(err, "Failed to load CSV")
		}
		defer func() { _ = tbl.Close() }()

		data, err := tbl.Rows(ctx)
		if summarizeQuery != "" {
			data, err = tbl.Query(ctx, summarizeQuery)
		}
		if err != nil {
			HandleError(err, "Failed to read data")
		}

		svc, err := newService()
		if err != nil {
			HandleError(err, "Failed to create model client")
		}

		summary, err := svc.Summarize(ctx, data, args)
		if err != nil {
			HandleError(err, "Failed to generate summary")
		}
		fmt.Print(summary)
	},
}

func init() {
	summarizeCmd.Flags().StringVarP(&summarizeFile, "file", "f", "", "CSV file to summarize (required)")
	summarizeCmd.Flags().StringVarP(&summarizeQuery, "sql", "q", "", "Summarize the result of this query instead of the whole table")
	_ = summarizeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(summarizeCmd)
}
