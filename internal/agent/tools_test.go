package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileqa/internal/finance"
	"fileqa/internal/llm/llmtest"
	"fileqa/internal/qa"
	"fileqa/internal/table"
)

const companiesCSV = `name,market_cap,closing_price
Acme Corp,1200000,75.5
Globex,980000,42.25
Hooli,3100000,210
`

func setupTools(t *testing.T, fake *llmtest.Fake, opts ...AgentOption) *toolset {
	t.Helper()

	tbl, err := table.Open(table.EngineSQLite, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tbl.Close() })
	require.NoError(t, tbl.Load(context.Background(), strings.NewReader(companiesCSV)))

	base := []AgentOption{
		WithAPIKey("test-key"),
		WithTable(tbl),
		WithQA(qa.New(fake, nil, 2)),
	}
	cfg, err := buildConfig(append(base, opts...)...)
	require.NoError(t, err)
	return newToolset(cfg)
}

func TestBuildConfig(t *testing.T) {
	tbl, err := table.Open(table.EngineSQLite, nil)
	require.NoError(t, err)
	defer func() { _ = tbl.Close() }()
	svc := qa.New(llmtest.New("SELECT 1;"), nil, 2)

	t.Run("Defaults", func(t *testing.T) {
		cfg, err := buildConfig(WithAPIKey("k"), WithTable(tbl), WithQA(svc))
		require.NoError(t, err)
		assert.Equal(t, "anthropic", cfg.provider)
		assert.Equal(t, "claude-haiku-4-5", cfg.model)
		assert.Equal(t, defaultSystemPrompt, cfg.systemPrompt)
		assert.NotNil(t, cfg.scraper)
		assert.False(t, cfg.fileLoading)
	})

	t.Run("OpenAIDefaultModel", func(t *testing.T) {
		cfg, err := buildConfig(WithProvider("openai"), WithAPIKey("k"), WithTable(tbl), WithQA(svc))
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", cfg.model)
	})

	t.Run("APIKeyFromEnv", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "from-env")
		cfg, err := buildConfig(WithAPIKeyFromEnv(), WithProvider("openai"), WithTable(tbl), WithQA(svc))
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.apiKey)
	})

	t.Run("Errors", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		tests := []struct {
			name string
			opts []AgentOption
		}{
			{"missing key", []AgentOption{WithTable(tbl), WithQA(svc)}},
			{"missing env key", []AgentOption{WithAPIKeyFromEnv(), WithTable(tbl), WithQA(svc)}},
			{"empty key", []AgentOption{WithAPIKey("")}},
			{"empty model", []AgentOption{WithModel("")}},
			{"unknown provider", []AgentOption{WithProvider("cohere")}},
			{"missing table", []AgentOption{WithAPIKey("k"), WithQA(svc)}},
			{"missing qa", []AgentOption{WithAPIKey("k"), WithTable(tbl)}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := buildConfig(tt.opts...)
				assert.Error(t, err)
			})
		}
	})
}

func TestToolNames(t *testing.T) {
	names := func(ts *toolset) []string {
		var out []string
		for _, tool := range ts.Tools() {
			out = append(out, tool.Info().Name)
		}
		return out
	}

	ts := setupTools(t, llmtest.New("SELECT 1;"))
	assert.Equal(t, []string{"text_to_sql", "preprocess_sql", "execute_sql", "web_scraping", "generate_summary", "describe_table"}, names(ts))

	ts = setupTools(t, llmtest.New("SELECT 1;"), WithFileLoading(true))
	assert.Contains(t, names(ts), "load_csv")
}

func TestTextToSQLTool(t *testing.T) {
	fake := llmtest.New("SELECT name FROM data_table ORDER BY market_cap DESC LIMIT 2")
	ts := setupTools(t, fake)

	query, err := ts.textToSQL(context.Background(), TextToSQLInput{Query: "Top 2 companies by market cap"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM data_table ORDER BY market_cap DESC LIMIT 2;", query)

	prompt := fake.Requests()[0].Prompt
	assert.Contains(t, prompt, "SQLite")
	assert.Contains(t, prompt, "name, market_cap, closing_price")

	_, err = ts.textToSQL(context.Background(), TextToSQLInput{})
	assert.Error(t, err)
}

func TestPreprocessSQLTool(t *testing.T) {
	fake := llmtest.New("SELECT name FROM data_table WHERE closing_price > 50;")
	ts := setupTools(t, fake)

	query, err := ts.preprocessSQL(context.Background(), SQLInput{SQL: "select nam from data_table where closing_price > 50"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM data_table WHERE closing_price > 50;", query)
	assert.Contains(t, fake.Requests()[0].Prompt, "select nam from data_table")

	failing := setupTools(t, llmtest.Failing(errors.New("quota exceeded")))
	_, err = failing.preprocessSQL(context.Background(), SQLInput{SQL: "SELECT 1"})
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestExecuteSQLTool(t *testing.T) {
	ts := setupTools(t, llmtest.New("unused"))

	out := ts.executeSQL(context.Background(), SQLInput{SQL: "SELECT name FROM data_table WHERE closing_price > 50 ORDER BY name"})
	assert.Contains(t, out, "Acme Corp")
	assert.Contains(t, out, "Hooli")
	assert.NotContains(t, out, "Globex")

	out = ts.executeSQL(context.Background(), SQLInput{SQL: "SELECT nope FROM data_table"})
	assert.True(t, strings.HasPrefix(out, "Error executing SQL query: "), out)
}

func TestGenerateSummaryTool(t *testing.T) {
	fake := llmtest.New("Hooli leads.")
	ts := setupTools(t, fake)

	out, err := ts.generateSummary(context.Background(), SummaryInput{Questions: []string{"Who leads?"}})
	require.NoError(t, err)
	assert.Equal(t, "**Who leads?**\nHooli leads.\n\n", out)
	assert.Contains(t, fake.Requests()[0].Prompt, "Globex,980000,42.25")
}

func TestDescribeTableTool(t *testing.T) {
	ts := setupTools(t, llmtest.New("unused"))

	out, err := ts.describeTable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Table: data_table\nColumns: name (TEXT), market_cap (INTEGER), closing_price (REAL)\nRows: 3", out)
}

func TestWebScrapingTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote/HOOLI" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<fin-streamer data-field="regularMarketPrice">210.00</fin-streamer>
<fin-streamer data-field="regularMarketChange">+3.10</fin-streamer>
<fin-streamer data-field="regularMarketChangePercent">+1.50%</fin-streamer>`))
	}))
	defer srv.Close()

	ts := setupTools(t, llmtest.New("unused"), WithScraper(finance.NewScraper(srv.URL, nil)))
	assert.Equal(t, "Stock: HOOLI\nPrice: 210.00\nChange: +3.10 (+1.50%)", ts.scraper.Describe(context.Background(), "hooli"))
	assert.Equal(t, "Could not retrieve data for INITECH.", ts.scraper.Describe(context.Background(), "INITECH"))
}

func TestLoadCSVTool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.csv")
	require.NoError(t, os.WriteFile(path, []byte("ticker,volume\nHOOLI,100\nACME,50\n"), 0o644))

	disabled := setupTools(t, llmtest.New("unused"))
	_, err := disabled.loadCSV(context.Background(), LoadCSVInput{Path: path})
	assert.Error(t, err)

	ts := setupTools(t, llmtest.New("unused"), WithFileLoading(true))
	out, err := ts.loadCSV(context.Background(), LoadCSVInput{Path: path})
	require.NoError(t, err)
	assert.Contains(t, out, "loaded successfully")

	columns, err := ts.table.Columns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ticker", "volume"}, columns)

	_, err = ts.loadCSV(context.Background(), LoadCSVInput{Path: filepath.Join(t.TempDir(), "missing.csv")})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	tbl, err := table.Open(table.EngineSQLite, nil)
	require.NoError(t, err)
	defer func() { _ = tbl.Close() }()

	a, err := New(context.Background(),
		WithAPIKey("test-key"),
		WithTable(tbl),
		WithQA(qa.New(llmtest.New("SELECT 1;"), nil, 2)),
	)
	require.NoError(t, err)
	assert.NotNil(t, a.agent)
	assert.Equal(t, "SQLite", a.tools.qa.Dialect)
}
