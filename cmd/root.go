package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"fileqa/internal/config"
)

var (
	cfgFile  string
	filePath string

	// cfg and logger are resolved before any command runs
	cfg    *config.Config
	logger = slog.Default()

	rootCmd = &cobra.Command{
		Use:   "fileqa",
		Short: "File Q&A - Ask questions about text and CSV files",
		Long: `File Q&A answers natural language questions about uploaded files using
hosted language models (Anthropic or OpenAI).

Text files (.txt, .md) are answered directly from their content. CSV files are
loaded into an in-memory SQL table (data_table) and questions are turned into SQL.

When run with --file and no command, it launches an interactive TUI.
Use subcommands for CLI mode with JSON output, or "serve" for the web interface.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			if SetupLogger != nil {
				l, err := SetupLogger(cfg.LogDir)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Warning: Failed to setup logger: %v\n", err)
				} else {
					logger = l
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// No file - nothing to ask about yet
			if filePath == "" {
				return cmd.Help()
			}
			return LaunchTUI(cfg, filePath)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./fileqa.yaml when present)")
	rootCmd.PersistentFlags().String("provider", config.ProviderAnthropic, "LLM provider (anthropic or openai)")
	rootCmd.PersistentFlags().String("model", "", "Model name (default depends on the provider)")
	rootCmd.PersistentFlags().String("engine", config.EngineDuckDB, "SQL engine for CSV files (duckdb or sqlite)")
	rootCmd.PersistentFlags().String("log-dir", ".", "Directory for err.log")
	rootCmd.Flags().StringVarP(&filePath, "file", "f", "", "File to open in the interactive TUI (.txt, .md or .csv)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// These variables will be set by main package
var (
	LaunchTUI   func(cfg *config.Config, path string) error
	StartServer func(cfg *config.Config) error
	SetupLogger func(logDir string) (*slog.Logger, error)
)
