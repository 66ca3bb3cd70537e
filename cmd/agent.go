package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fileqa/internal/agent"
	"fileqa/internal/finance"
	"fileqa/internal/table"
)

var agentFile string

var agentCmd = &cobra.Command{
	Use:   "agent [question]",
	Short: "Ask the tool-using agent about a CSV file",
	Long: `Ask a question and let the agent decide which tools to call: it can write SQL
from the question, fix SQL that failed, run SQL against data_table, summarize query
results and look up stock prices on Yahoo Finance.

With --file the CSV is loaded before the agent starts. Without it the agent may
load a CSV itself when the question names a file path.

Requires ANTHROPIC_API_KEY (or OPENAI_API_KEY with --provider openai).

Examples:
  fileqa agent --file companies.csv "Show me the top 5 companies by market cap"
  fileqa agent --file companies.csv "What is the current stock price of the largest company?"
  fileqa agent "Load ./companies.csv and tell me how many rows it has"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		question := args[0]
		ctx := context.Background()

		var (
			tbl *table.Table
			err error
		)
		if agentFile != "" {
			tbl, err = openCSV(ctx, agentFile)
		} else {
			tbl, err = table.Open(cfg.Engine, logger)
		}
		if err != nil {
			HandleError(err, "Failed to prepare table")
		}
		defer func() { _ = tbl.Close() }()

		svc, err := newService()
		if err != nil {
			HandleError(err, "Failed to create model client")
		}

		// Create the agent using the factory with options
		fileAgent, err := agent.New(ctx,
			agent.WithProvider(cfg.Provider),
			agent.WithAPIKey(cfg.APIKey(cfg.Provider)),
			agent.WithModel(cfg.Model),
			agent.WithQA(svc),
			agent.WithTable(tbl),
			agent.WithScraper(finance.NewScraper(cfg.FinanceBaseURL, logger)),
			agent.WithFileLoading(true),
			agent.WithLogger(logger),
		)
		if err != nil {
			HandleError(err, "Failed to create agent")
		}

		answer, err := fileAgent.Run(ctx, question)
		if err != nil {
			HandleError(err, "Failed to generate response")
		}

		fmt.Println(answer)
	},
}

func init() {
	agentCmd.Flags().StringVarP(&agentFile, "file", "f", "", "CSV file to load before the agent starts")
	rootCmd.AddCommand(agentCmd)
}
