package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"fileqa/internal/document"
	"fileqa/internal/llm"
	"fileqa/internal/qa"
	"fileqa/internal/table"
)

// HandleError prints error and exits
func HandleError(err error, message string) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, err)
	os.Exit(1)
}

// printJSON writes v as indented JSON to stdout
func printJSON(v any) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		HandleError(err, "Failed to encode JSON")
	}
	fmt.Println(string(output))
}

// loadDocument reads and classifies a file from disk
func loadDocument(path string) (*document.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return document.Read(path, f, cfg.MaxUploadBytes())
}

// openCSV loads a CSV file into a fresh table; the caller closes it
func openCSV(ctx context.Context, path string) (*table.Table, error) {
	doc, err := loadDocument(path)
	if err != nil {
		return nil, err
	}
	if doc.Kind != document.KindTable {
		return nil, fmt.Errorf("%s is not a CSV file", doc.Name)
	}
	return openTable(ctx, doc)
}

func openTable(ctx context.Context, doc *document.Document) (*table.Table, error) {
	tbl, err := table.Open(cfg.Engine, logger)
	if err != nil {
		return nil, err
	}
	if err := tbl.Load(ctx, doc.Reader()); err != nil {
		_ = tbl.Close()
		return nil, fmt.Errorf("failed to load %s: %w", doc.Name, err)
	}
	return tbl, nil
}

// newService builds the question-answering service for the configured provider
func newService() (*qa.Service, error) {
	c, err := llm.New(cfg.Provider, cfg.APIKey(cfg.Provider), cfg.Model, "", logger)
	if err != nil {
		return nil, err
	}
	return qa.New(c, logger, cfg.MaxSQLRetries), nil
}
