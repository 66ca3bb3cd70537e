package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"charm.land/fantasy"

	"fileqa/internal/finance"
	"fileqa/internal/qa"
	"fileqa/internal/table"
)

// TextToSQLInput is the input of text_to_sql
type TextToSQLInput struct {
	Query string `json:"query" description:"Natural language question about the data in data_table"`
}

// SQLInput is the input of preprocess_sql and execute_sql
type SQLInput struct {
	SQL string `json:"sql" description:"SQL query against data_table"`
}

// ScrapeInput is the input of web_scraping
type ScrapeInput struct {
	Symbol string `json:"symbol" description:"Stock ticker symbol, e.g. AAPL"`
}

// SummaryInput is the input of generate_summary
type SummaryInput struct {
	Questions []string `json:"questions" description:"Questions the summary report should answer"`
}

// LoadCSVInput is the input of load_csv
type LoadCSVInput struct {
	Path string `json:"path" description:"Path of a local CSV file to load into data_table"`
}

// DescribeInput is the input of describe_table
type DescribeInput struct{}

// toolset holds the dependencies shared by every tool
type toolset struct {
	qa          qa.Service
	table       *table.Table
	scraper     *finance.Scraper
	fileLoading bool
	logger      *slog.Logger
}

func newToolset(cfg *AgentConfig) *toolset {
	svc := *cfg.qa
	svc.Dialect = cfg.table.Dialect()
	return &toolset{
		qa:          svc,
		table:       cfg.table,
		scraper:     cfg.scraper,
		fileLoading: cfg.fileLoading,
		logger:      cfg.logger,
	}
}

// Tools returns the fantasy tools backed by this toolset
func (t *toolset) Tools() []fantasy.AgentTool {
	tools := []fantasy.AgentTool{
		fantasy.NewAgentTool("text_to_sql",
			"Convert a natural language question into a SQL query for data_table",
			func(ctx context.Context, in TextToSQLInput, _ fantasy.ToolCall) (fantasy.ToolResponse, error) {
				return respond(t.textToSQL(ctx, in))
			}),
		fantasy.NewAgentTool("preprocess_sql",
			"Check a SQL query against the data_table schema and return a corrected or optimized query",
			func(ctx context.Context, in SQLInput, _ fantasy.ToolCall) (fantasy.ToolResponse, error) {
				return respond(t.preprocessSQL(ctx, in))
			}),
		fantasy.NewAgentTool("execute_sql",
			"Execute a SQL query against data_table and return the result table",
			func(ctx context.Context, in SQLInput, _ fantasy.ToolCall) (fantasy.ToolResponse, error) {
				return fantasy.NewTextResponse(t.executeSQL(ctx, in)), nil
			}),
		fantasy.NewAgentTool("web_scraping",
			"Get the current stock price and daily change for a ticker symbol from the finance site",
			func(ctx context.Context, in ScrapeInput, _ fantasy.ToolCall) (fantasy.ToolResponse, error) {
				return fantasy.NewTextResponse(t.scraper.Describe(ctx, in.Symbol)), nil
			}),
		fantasy.NewAgentTool("generate_summary",
			"Answer a list of analytical questions over the whole of data_table and return a summary report",
			func(ctx context.Context, in SummaryInput, _ fantasy.ToolCall) (fantasy.ToolResponse, error) {
				return respond(t.generateSummary(ctx, in))
			}),
		fantasy.NewAgentTool("describe_table",
			"Show the columns, types and row count of data_table",
			func(ctx context.Context, _ DescribeInput, _ fantasy.ToolCall) (fantasy.ToolResponse, error) {
				return respond(t.describeTable(ctx))
			}),
	}

	if t.fileLoading {
		tools = append(tools, fantasy.NewAgentTool("load_csv",
			"Load a local CSV file into data_table, replacing the current data",
			func(ctx context.Context, in LoadCSVInput, _ fantasy.ToolCall) (fantasy.ToolResponse, error) {
				return respond(t.loadCSV(ctx, in))
			}))
	}
	return tools
}

// respond turns a tool failure into error text for the model instead of aborting the run
func respond(text string, err error) (fantasy.ToolResponse, error) {
	if err != nil {
		return fantasy.NewTextErrorResponse(err.Error()), nil
	}
	return fantasy.NewTextResponse(text), nil
}

func (t *toolset) textToSQL(ctx context.Context, in TextToSQLInput) (string, error) {
	if strings.TrimSpace(in.Query) == "" {
		return "", fmt.Errorf("query parameter is required")
	}
	columns, err := t.table.Columns(ctx)
	if err != nil {
		return "", err
	}
	query, _, err := t.qa.TextToSQL(ctx, in.Query, columns)
	if err != nil {
		t.logger.Error("text_to_sql tool failed", "error", err, "question", in.Query)
		return "", err
	}
	return query, nil
}

func (t *toolset) preprocessSQL(ctx context.Context, in SQLInput) (string, error) {
	if strings.TrimSpace(in.SQL) == "" {
		return "", fmt.Errorf("sql parameter is required")
	}
	columns, err := t.table.Columns(ctx)
	if err != nil {
		return "", err
	}
	query, err := t.qa.CorrectSQL(ctx, in.SQL, columns, "")
	if err != nil {
		t.logger.Error("preprocess_sql tool failed", "error", err, "sql", in.SQL)
		return "", err
	}
	return query, nil
}

func (t *toolset) executeSQL(ctx context.Context, in SQLInput) string {
	rs, err := t.table.Query(ctx, in.SQL)
	if err != nil {
		return fmt.Sprintf("Error executing SQL query: %v", err)
	}
	return rs.String()
}

func (t *toolset) generateSummary(ctx context.Context, in SummaryInput) (string, error) {
	data, err := t.table.Rows(ctx)
	if err != nil {
		return "", err
	}
	return t.qa.Summarize(ctx, data, in.Questions)
}

func (t *toolset) describeTable(ctx context.Context) (string, error) {
	schema, err := t.table.Schema(ctx)
	if err != nil {
		return "", err
	}
	count, err := t.table.Count(ctx)
	if err != nil {
		return "", err
	}

	cols := make([]string, len(schema))
	for i, c := range schema {
		cols[i] = fmt.Sprintf("%s (%s)", c.Name, c.Type)
	}
	return fmt.Sprintf("Table: %s\nColumns: %s\nRows: %d", table.Name, strings.Join(cols, ", "), count), nil
}

func (t *toolset) loadCSV(ctx context.Context, in LoadCSVInput) (string, error) {
	if !t.fileLoading {
		return "", fmt.Errorf("loading files is disabled")
	}
	if err := t.table.LoadFile(ctx, in.Path); err != nil {
		return "", err
	}
	t.logger.Info("Agent loaded CSV", "path", in.Path)
	return fmt.Sprintf("CSV file %s loaded successfully into %s.", in.Path, table.Name), nil
}
