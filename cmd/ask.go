package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fileqa/internal/document"
)

// AskOutput is the JSON printed by the ask command
type AskOutput struct {
	File     string           `json:"file"`
	Kind     string           `json:"kind"`
	Question string           `json:"question"`
	Answer   string           `json:"answer,omitempty"`
	SQL      string           `json:"sql,omitempty"`
	SQLError string           `json:"sql_error,omitempty"`
	Attempts int              `json:"attempts,omitempty"`
	Columns  []string         `json:"columns,omitempty"`
	Rows     []map[string]any `json:"rows,omitempty"`
}

var askFile string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about a text or CSV file",
	Long: `Ask a natural language question about a file and print the answer as JSON.

Text files (.txt, .md) are sent to the model together with the question.
CSV files are loaded into data_table; the model writes a SQL query which is executed
and, when it fails, corrected and retried up to max_sql_retries times.

Requires ANTHROPIC_API_KEY (or OPENAI_API_KEY with --provider openai).

Examples:
  fileqa ask --file article.txt "Can you give me a short summary?"
  fileqa ask --file companies.csv "Which company has the highest market cap?"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		question := args[0]
		ctx := context.Background()

		doc, err := loadDocument(askFile)
		if err != nil {
			HandleError(err, "Failed to read file")
		}

		svc, err := newService()
		if err != nil {
			HandleError(err, "Failed to create model client")
		}

		out := AskOutput{File: doc.Name, Kind: doc.Kind.String(), Question: question}

		if doc.Kind == document.KindText {
			out.Answer, err = svc.AnswerText(ctx, doc.Text(), question)
			if err != nil {
				HandleError(err, "Error during API call")
			}
			printJSON(out)
			return
		}

		tbl, err := openTable(ctx, doc)
		if err != nil {
			HandleError(err, "Failed to load CSV")
		}
		defer func() { _ = tbl.Close() }()

		ans, err := svc.AnswerTable(ctx, tbl, question)
		if err != nil {
			HandleError(err, "Error during API call")
		}

		out.SQL = ans.SQL
		out.SQLError = ans.ExecError
		out.Attempts = ans.Attempts
		if ans.Result != nil {
			out.Columns = ans.Result.Columns
			out.Rows = ans.Result.Records()
		}
		printJSON(out)

		if out.SQLError != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error executing SQL query: %s\n", out.SQLError)
		}
	},
}

func init() {
	askCmd.Flags().StringVarP(&askFile, "file", "f", "", "File to ask about (.txt, .md or .csv)")
	_ = askCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(askCmd)
}
