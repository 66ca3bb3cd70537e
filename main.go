package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"fileqa/cmd"
)

var logger *slog.Logger

// setupLogger creates and configures the application logger
func setupLogger(logDir string) (*slog.Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logPath := filepath.Join(logDir, "err.log")

	// Create log file
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Create JSON handler for structured logging
	handler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true, // Include file:line information
	})

	logger = slog.New(handler)
	slog.SetDefault(logger)
	logger.Info("Application started", "version", "1.0", "log_dir", logDir)

	return logger, nil
}

func main() {
	cmd.SetupLogger = setupLogger
	cmd.LaunchTUI = launchTUI
	cmd.StartServer = StartServer

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
