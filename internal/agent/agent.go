package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"charm.land/fantasy"
	fanthropic "charm.land/fantasy/providers/anthropic"
	fopenai "charm.land/fantasy/providers/openai"

	"fileqa/internal/config"
	"fileqa/internal/finance"
	"fileqa/internal/metrics"
	"fileqa/internal/qa"
	"fileqa/internal/table"
)

const defaultSystemPrompt = `You are a data analyst assistant. The user's CSV file is loaded into a single SQL table named data_table.
Answer questions about it with the tools you have: turn the question into SQL with text_to_sql, check it with preprocess_sql, run it with execute_sql, and explain the result.
Use describe_table when you need the columns, generate_summary for broad overview questions, and web_scraping for current stock prices by ticker symbol.
Base every answer on tool output and say so when the data cannot answer the question.`

// AgentConfig holds the configuration for creating an agent
type AgentConfig struct {
	provider     string
	apiKey       string
	keyFromEnv   bool
	model        string
	systemPrompt string
	qa           *qa.Service
	table        *table.Table
	scraper      *finance.Scraper
	fileLoading  bool
	logger       *slog.Logger
}

// AgentOption is a functional option for configuring the agent
type AgentOption func(*AgentConfig) error

// WithProvider selects the model provider (anthropic or openai)
func WithProvider(provider string) AgentOption {
	return func(c *AgentConfig) error {
		switch provider {
		case config.ProviderAnthropic, config.ProviderOpenAI:
			c.provider = provider
			return nil
		default:
			return fmt.Errorf("unknown provider %q", provider)
		}
	}
}

// WithAPIKey sets the provider API key
func WithAPIKey(apiKey string) AgentOption {
	return func(c *AgentConfig) error {
		if apiKey == "" {
			return fmt.Errorf("API key cannot be empty")
		}
		c.apiKey = apiKey
		return nil
	}
}

// WithAPIKeyFromEnv reads the API key from the provider's environment variable
// (ANTHROPIC_API_KEY or OPENAI_API_KEY) once all options are applied
func WithAPIKeyFromEnv() AgentOption {
	return func(c *AgentConfig) error {
		c.keyFromEnv = true
		return nil
	}
}

// WithModel sets the model to use (default depends on the provider)
func WithModel(model string) AgentOption {
	return func(c *AgentConfig) error {
		if model == "" {
			return fmt.Errorf("model cannot be empty")
		}
		c.model = model
		return nil
	}
}

// WithSystemPrompt sets a custom system prompt
func WithSystemPrompt(prompt string) AgentOption {
	return func(c *AgentConfig) error {
		c.systemPrompt = prompt
		return nil
	}
}

// WithQA sets the service the SQL and summary tools use
func WithQA(svc *qa.Service) AgentOption {
	return func(c *AgentConfig) error {
		c.qa = svc
		return nil
	}
}

// WithTable sets the table the SQL tools run against
func WithTable(tbl *table.Table) AgentOption {
	return func(c *AgentConfig) error {
		c.table = tbl
		return nil
	}
}

// WithScraper sets the quote scraper behind web_scraping
func WithScraper(s *finance.Scraper) AgentOption {
	return func(c *AgentConfig) error {
		c.scraper = s
		return nil
	}
}

// WithFileLoading enables the load_csv tool, which reads files from the local disk
func WithFileLoading(enabled bool) AgentOption {
	return func(c *AgentConfig) error {
		c.fileLoading = enabled
		return nil
	}
}

// WithLogger sets the logger used by the agent and its tools
func WithLogger(logger *slog.Logger) AgentOption {
	return func(c *AgentConfig) error {
		c.logger = logger
		return nil
	}
}

// Agent answers questions about data_table with a tool-calling model
type Agent struct {
	agent  fantasy.Agent
	config *AgentConfig
	tools  *toolset
}

// New creates an agent. It uses the Options pattern for flexible configuration.
func New(ctx context.Context, opts ...AgentOption) (*Agent, error) {
	cfg, err := buildConfig(opts...)
	if err != nil {
		return nil, err
	}

	model, err := languageModel(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ts := newToolset(cfg)
	agent := fantasy.NewAgent(
		model,
		fantasy.WithSystemPrompt(cfg.systemPrompt),
		fantasy.WithTools(ts.Tools()...),
	)

	return &Agent{agent: agent, config: cfg, tools: ts}, nil
}

// Run asks the agent a question and returns its final answer
func (a *Agent) Run(ctx context.Context, question string) (string, error) {
	start := time.Now()
	a.config.logger.Info("Agent run started", "question", question, "provider", a.config.provider, "model", a.config.model)

	result, err := a.agent.Generate(ctx, fantasy.AgentCall{Prompt: question})
	metrics.AgentRuns.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		a.config.logger.Error("Agent run failed", "error", err, "question", question)
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	answer := result.Response.Content.Text()
	a.config.logger.Info("Agent run finished", "question", question, "duration_ms", time.Since(start).Milliseconds(), "response_length", len(answer))
	return answer, nil
}

func buildConfig(opts ...AgentOption) (*AgentConfig, error) {
	cfg := &AgentConfig{
		provider:     config.ProviderAnthropic,
		systemPrompt: defaultSystemPrompt,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.model == "" {
		cfg.model = config.DefaultModel(cfg.provider)
	}
	if cfg.apiKey == "" && cfg.keyFromEnv {
		env := "ANTHROPIC_API_KEY"
		if cfg.provider == config.ProviderOpenAI {
			env = "OPENAI_API_KEY"
		}
		cfg.apiKey = os.Getenv(env)
		if cfg.apiKey == "" {
			return nil, fmt.Errorf("%s environment variable not set", env)
		}
	}

	if cfg.apiKey == "" {
		return nil, fmt.Errorf("API key is required (use WithAPIKey or WithAPIKeyFromEnv)")
	}
	if cfg.table == nil {
		return nil, fmt.Errorf("table is required (use WithTable)")
	}
	if cfg.qa == nil {
		return nil, fmt.Errorf("QA service is required (use WithQA)")
	}
	if cfg.scraper == nil {
		cfg.scraper = finance.NewScraper("", cfg.logger)
	}
	return cfg, nil
}

func languageModel(ctx context.Context, cfg *AgentConfig) (fantasy.LanguageModel, error) {
	var (
		provider fantasy.Provider
		err      error
	)
	switch cfg.provider {
	case config.ProviderOpenAI:
		provider, err = fopenai.New(fopenai.WithAPIKey(cfg.apiKey))
	default:
		provider, err = fanthropic.New(fanthropic.WithAPIKey(cfg.apiKey))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", config.ProviderLabel(cfg.provider), err)
	}

	model, err := provider.LanguageModel(ctx, cfg.model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model %s: %w", cfg.model, err)
	}
	return model, nil
}
