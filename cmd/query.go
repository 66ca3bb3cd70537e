package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	queryFile   string
	queryString string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run SQL against a CSV file",
	Long: `Load a CSV file into data_table and execute the requested SQL against it.
Rows are printed as JSON objects. The SQL dialect follows --engine (DuckDB by default).

Examples:
  fileqa query --file companies.csv --sql "SELECT * FROM data_table LIMIT 5"
  fileqa query --file companies.csv --sql "SELECT COUNT(*) AS total FROM data_table"
  fileqa query --engine sqlite --file companies.csv --sql "SELECT name FROM data_table ORDER BY market_cap DESC"`,
	Run: func(cmd *cobra.Command, args []string) {
		if queryString == "" {
			HandleError(fmt.Errorf("query is required"), "Missing query parameter")
		}
		ctx := context.Background()

		tbl, err := openCSV(ctx, queryFile)
		if err != nil {
			HandleError(err, "Failed to load CSV")
		}
		defer func() { _ = tbl.Close() }()

		rs, err := tbl.Query(ctx, queryString)
		if err != nil {
			HandleError(err, "Failed to execute query")
		}

		printJSON(rs.Records())
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryFile, "file", "f", "", "CSV file to query (required)")
	queryCmd.Flags().StringVarP(&queryString, "sql", "q", "", "SQL query to execute (required)")
	_ = queryCmd.MarkFlagRequired("file")
	_ = queryCmd.MarkFlagRequired("sql")
	rootCmd.AddCommand(queryCmd)
}
