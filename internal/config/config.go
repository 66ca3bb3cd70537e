package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	EngineDuckDB = "duckdb"
	EngineSQLite = "sqlite"

	maxSQLRetriesCap = 5
)

// Config is the resolved runtime configuration shared by the CLI, TUI and web server
type Config struct {
	Provider        string `mapstructure:"provider"`
	Model           string `mapstructure:"model"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	Engine          string `mapstructure:"engine"`
	MaxSQLRetries   int    `mapstructure:"max_sql_retries"`
	Port            int    `mapstructure:"port"`
	LogDir          string `mapstructure:"log_dir"`
	MaxUploadMB     int64  `mapstructure:"max_upload_mb"`
	MaxDatasets     int    `mapstructure:"max_datasets"`
	FinanceBaseURL  string `mapstructure:"finance_base_url"`
}

// flag name -> config key
var flagKeys = map[string]string{
	"provider": "provider",
	"model":    "model",
	"engine":   "engine",
	"port":     "port",
	"log-dir":  "log_dir",
}

// Load resolves configuration from flags, environment, an optional config file and defaults.
// A .env file in the working directory is loaded into the environment first when present.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetDefault("provider", ProviderAnthropic)
	v.SetDefault("model", "")
	v.SetDefault("engine", EngineDuckDB)
	v.SetDefault("max_sql_retries", 2)
	v.SetDefault("port", 3000)
	v.SetDefault("log_dir", ".")
	v.SetDefault("max_upload_mb", 32)
	v.SetDefault("max_datasets", 64)
	v.SetDefault("finance_base_url", "https://finance.yahoo.com")

	v.SetEnvPrefix("FILEQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic_api_key", "ANTHROPIC_API_KEY", "FILEQA_ANTHROPIC_API_KEY")
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY", "FILEQA_OPENAI_API_KEY")
	_ = v.BindEnv("max_sql_retries", "FILEQA_MAX_SQL_RETRIES", "AI_SQL_MAX_RETRIES")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("fileqa")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown provider %q (want %s or %s)", c.Provider, ProviderAnthropic, ProviderOpenAI)
	}

	c.Engine = strings.ToLower(strings.TrimSpace(c.Engine))
	switch c.Engine {
	case EngineDuckDB, EngineSQLite:
	default:
		return fmt.Errorf("unknown engine %q (want %s or %s)", c.Engine, EngineDuckDB, EngineSQLite)
	}

	if c.Model == "" {
		c.Model = DefaultModel(c.Provider)
	}

	// Cap retries to avoid excessive API calls
	if c.MaxSQLRetries < 0 {
		c.MaxSQLRetries = 0
	} else if c.MaxSQLRetries > maxSQLRetriesCap {
		c.MaxSQLRetries = maxSQLRetriesCap
	}

	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 32
	}
	if c.MaxDatasets <= 0 {
		c.MaxDatasets = 64
	}
	return nil
}

// APIKey returns the configured key for the given provider
func (c *Config) APIKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	default:
		return c.AnthropicAPIKey
	}
}

// ModelFor returns the configured model when it belongs to provider, otherwise the provider default.
// A model configured for Anthropic is never sent to OpenAI when a request switches provider.
func (c *Config) ModelFor(provider string) string {
	if provider == c.Provider && c.Model != "" {
		return c.Model
	}
	return DefaultModel(provider)
}

// MaxUploadBytes is the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// DefaultModel is the model used when none is configured
func DefaultModel(provider string) string {
	if provider == ProviderOpenAI {
		return "gpt-4o-mini"
	}
	return "claude-haiku-4-5"
}

// ProviderLabel is the human-readable provider name used in UI messages
func ProviderLabel(provider string) string {
	if provider == ProviderOpenAI {
		return "OpenAI"
	}
	return "Anthropic"
}
