package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the HTTP web server with HTMX interface.

The web server provides the browser-based File Q&A and CSV agent pages, a JSON API
under /api (including stored datasets), /healthz and Prometheus metrics at /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Starting File Q&A web server...\n")
		fmt.Printf("Provider: %s (%s)\n", cfg.Provider, cfg.Model)
		fmt.Printf("Engine: %s\n", cfg.Engine)
		fmt.Printf("Port: %d\n\n", cfg.Port)

		if err := StartServer(cfg); err != nil {
			HandleError(err, "Server failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 3000, "Port to run the server on")
}
