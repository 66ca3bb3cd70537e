package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"fileqa/internal/finance"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [symbol]",
	Short: "Fetch a stock quote from Yahoo Finance",
	Long: `Scrape the Yahoo Finance quote page for a ticker symbol and print the
price and daily change as JSON. This is the same lookup the agent's web_scraping tool uses.

Example:
  fileqa scrape AAPL`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		scraper := finance.NewScraper(cfg.FinanceBaseURL, logger)

		quote, err := scraper.Quote(context.Background(), args[0])
		if err != nil {
			HandleError(err, "Failed to scrape quote")
		}

		printJSON(struct {
			*finance.Quote
			Text string `json:"text"`
		}{quote, quote.String()})
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}
