package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"fileqa/internal/table"
)

// SchemaOutput represents the schema information for a loaded CSV
type SchemaOutput struct {
	File        string         `json:"file"`
	TableName   string         `json:"table_name"`
	Engine      string         `json:"engine"`
	RowCount    int64          `json:"row_count"`
	ColumnCount int            `json:"column_count"`
	Columns     []table.Column `json:"columns"`
}

var schemaFile string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the table a CSV file loads into",
	Long: `Load a CSV file and print the resulting data_table schema as JSON:
column names (as the model sees them), inferred column types and the row count.

Examples:
  fileqa schema --file companies.csv
  fileqa schema --engine sqlite --file companies.csv`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		tbl, err := openCSV(ctx, schemaFile)
		if err != nil {
			HandleError(err, "Failed to load CSV")
		}
		defer func() { _ = tbl.Close() }()

		columns, err := tbl.Schema(ctx)
		if err != nil {
			HandleError(err, "Failed to read schema")
		}
		count, err := tbl.Count(ctx)
		if err != nil {
			HandleError(err, "Failed to count rows")
		}

		printJSON(SchemaOutput{
			File:        schemaFile,
			TableName:   table.Name,
			Engine:      tbl.Engine(),
			RowCount:    count,
			ColumnCount: len(columns),
			Columns:     columns,
		})
	},
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaFile, "file", "f", "", "CSV file to load (required)")
	_ = schemaCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(schemaCmd)
}
