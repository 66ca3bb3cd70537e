package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fileqa/internal/agent"
	"fileqa/internal/config"
	"fileqa/internal/document"
	"fileqa/internal/finance"
	"fileqa/internal/llm"
	"fileqa/internal/qa"
	"fileqa/internal/table"
)

var (
	errNotTabular      = errors.New("the agent works on CSV files only")
	errUnknownProvider = errors.New("unknown provider")
)

// Credentials select the provider and key for one request
type Credentials struct {
	Provider string
	APIKey   string
}

// Answer is what the pages, the API and the TUI show for one question
type Answer struct {
	Kind        string           `json:"kind"`
	Question    string           `json:"question"`
	Text        string           `json:"answer,omitempty"`
	SQL         string           `json:"sql,omitempty"`
	Columns     []string         `json:"columns,omitempty"`
	Rows        []map[string]any `json:"rows,omitempty"`
	RowCount    int              `json:"row_count"`
	ColumnCount int              `json:"column_count"`
	SQLError    string           `json:"sql_error,omitempty"`
	Attempts    int              `json:"attempts,omitempty"`
	Prompt      string           `json:"prompt,omitempty"`

	Result *table.ResultSet `json:"-"`
}

// Markdown renders the answer for the terminal and for agent-style display
func (a *Answer) Markdown() string {
	if a.Kind != document.KindTable.String() {
		return a.Text
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### Generated SQL\n\n```sql\n%s\n```\n\n", a.SQL)
	switch {
	case a.SQLError != "":
		fmt.Fprintf(&b, "**Error executing SQL query:** %s\n\nNo results to display.\n", a.SQLError)
	case a.Result != nil:
		b.WriteString("### Query Results\n\n")
		b.WriteString(a.Result.Markdown())
		fmt.Fprintf(&b, "\nResult has %d rows and %d columns.\n", a.RowCount, a.ColumnCount)
	default:
		b.WriteString("No results to display.\n")
	}
	return b.String()
}

// AgentRunner runs the tool-calling agent against a loaded table
type AgentRunner func(ctx context.Context, tbl *table.Table, svc *qa.Service, creds Credentials, question string) (string, error)

// Asker answers questions about uploaded documents
type Asker struct {
	Config  *config.Config
	Logger  *slog.Logger
	Scraper *finance.Scraper

	// NewCompleter and RunAgent default to the hosted providers; tests replace them
	NewCompleter func(provider, apiKey, model string) (llm.Completer, error)
	RunAgent     AgentRunner
}

// NewAsker creates an Asker backed by the hosted providers
func NewAsker(cfg *config.Config, logger *slog.Logger) *Asker {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Asker{
		Config:  cfg,
		Logger:  logger,
		Scraper: finance.NewScraper(cfg.FinanceBaseURL, logger),
	}
	a.NewCompleter = func(provider, apiKey, model string) (llm.Completer, error) {
		return llm.New(provider, apiKey, model, "", logger)
	}
	a.RunAgent = a.runFantasyAgent
	return a
}

// Resolve fills in the configured provider and key where the request left them empty
func (a *Asker) Resolve(creds Credentials) (Credentials, error) {
	creds.Provider = strings.ToLower(strings.TrimSpace(creds.Provider))
	if creds.Provider == "" {
		creds.Provider = a.Config.Provider
	}
	if creds.Provider != config.ProviderAnthropic && creds.Provider != config.ProviderOpenAI {
		return creds, fmt.Errorf("%w %q", errUnknownProvider, creds.Provider)
	}
	creds.APIKey = strings.TrimSpace(creds.APIKey)
	if creds.APIKey == "" {
		creds.APIKey = a.Config.APIKey(creds.Provider)
	}
	if creds.APIKey == "" {
		return creds, fmt.Errorf("%s: %w", config.ProviderLabel(creds.Provider), llm.ErrMissingAPIKey)
	}
	return creds, nil
}

// MissingKeyMessage is shown when a question arrives without a usable key
func MissingKeyMessage(provider string) string {
	return fmt.Sprintf("Please provide your %s API key to proceed.", config.ProviderLabel(provider))
}

func (a *Asker) service(creds Credentials) (*qa.Service, error) {
	c, err := a.NewCompleter(creds.Provider, creds.APIKey, a.Config.ModelFor(creds.Provider))
	if err != nil {
		return nil, err
	}
	return qa.New(c, a.Logger, a.Config.MaxSQLRetries), nil
}

// OpenTable loads a CSV document into a fresh in-memory table
func (a *Asker) OpenTable(ctx context.Context, doc *document.Document) (*table.Table, error) {
	if doc.Kind != document.KindTable {
		return nil, errNotTabular
	}
	tbl, err := table.Open(a.Config.Engine, a.Logger)
	if err != nil {
		return nil, err
	}
	if err := tbl.Load(ctx, bytes.NewReader(doc.Data)); err != nil {
		_ = tbl.Close()
		return nil, fmt.Errorf("failed to load %s: %w", doc.Name, err)
	}
	return tbl, nil
}

// Ask answers question about doc. On a model failure the returned Answer still carries the prompt sent.
func (a *Asker) Ask(ctx context.Context, doc *document.Document, question string, creds Credentials) (*Answer, error) {
	creds, err := a.Resolve(creds)
	if err != nil {
		return nil, err
	}

	if doc.Kind == document.KindText {
		svc, err := a.service(creds)
		if err != nil {
			return nil, err
		}
		ans := &Answer{
			Kind:     document.KindText.String(),
			Question: question,
			Prompt:   qa.ArticlePrompt(doc.Text(), question),
		}
		ans.Text, err = svc.AnswerText(ctx, doc.Text(), question)
		return ans, err
	}

	tbl, err := a.OpenTable(ctx, doc)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tbl.Close() }()
	return a.AskTable(ctx, tbl, question, creds)
}

// AskTable answers question against an already loaded table
func (a *Asker) AskTable(ctx context.Context, tbl *table.Table, question string, creds Credentials) (*Answer, error) {
	creds, err := a.Resolve(creds)
	if err != nil {
		return nil, err
	}
	svc, err := a.service(creds)
	if err != nil {
		return nil, err
	}

	ta, err := svc.AnswerTable(ctx, tbl, question)
	ans := &Answer{
		Kind:     document.KindTable.String(),
		Question: question,
		SQL:      ta.SQL,
		Prompt:   ta.Prompt,
		SQLError: ta.ExecError,
		Attempts: ta.Attempts,
		Result:   ta.Result,
	}
	if err != nil {
		return ans, err
	}
	if ta.Result != nil {
		ans.Columns = ta.Result.Columns
		ans.Rows = ta.Result.Records()
		ans.RowCount, ans.ColumnCount = ta.Result.Shape()
	}
	return ans, nil
}

// AskAgent runs the multi-tool agent over a CSV document
func (a *Asker) AskAgent(ctx context.Context, doc *document.Document, question string, creds Credentials) (string, error) {
	creds, err := a.Resolve(creds)
	if err != nil {
		return "", err
	}
	tbl, err := a.OpenTable(ctx, doc)
	if err != nil {
		return "", err
	}
	defer func() { _ = tbl.Close() }()

	svc, err := a.service(creds)
	if err != nil {
		return "", err
	}
	return a.RunAgent(ctx, tbl, svc, creds, question)
}

func (a *Asker) runFantasyAgent(ctx context.Context, tbl *table.Table, svc *qa.Service, creds Credentials, question string) (string, error) {
	ag, err := agent.New(ctx,
		agent.WithProvider(creds.Provider),
		agent.WithAPIKey(creds.APIKey),
		agent.WithModel(a.Config.ModelFor(creds.Provider)),
		agent.WithQA(svc),
		agent.WithTable(tbl),
		agent.WithScraper(a.Scraper),
		agent.WithLogger(a.Logger),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create agent: %w", err)
	}
	return ag.Run(ctx, question)
}
