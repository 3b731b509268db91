// Package config provides configuration for the agent orchestrator.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the orchestrator configuration.
type Config struct {
	// Server settings
	HTTPPort int
	RPCAddr  string

	// Database
	DatabaseDriver string
	DatabaseURL    string

	// Model endpoint
	LLMProvider        string
	LLMBaseURL         string
	LLMAPIKey          string
	DefaultModel       string
	DefaultTemperature *float64 // nil leaves the built-in default
	DefaultMaxTokens   int
	MockMode           bool

	// Orchestration loop
	MaxIterations     int
	HistoryLimit      int
	InvocationTimeout time.Duration
	ToolTimeout       time.Duration
	ParallelTools     bool
	ConfirmationTTL   time.Duration

	// Pipedream connected apps
	PipedreamMCPURL       string
	PipedreamTokenURL     string
	PipedreamClientID     string
	PipedreamClientSecret string
	PipedreamProjectID    string
	PipedreamEnvironment  string
	ConnectionCacheTTL    time.Duration

	// Built-in tool backends
	BraveAPIKey    string
	BraveBaseURL   string
	WeatherBaseURL string

	// Logging and metrics
	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
}

// Load reads configuration from an optional .env file, an optional config
// file and the environment, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		HTTPPort:              v.GetInt("http_port"),
		RPCAddr:               v.GetString("rpc_addr"),
		DatabaseDriver:        v.GetString("database_driver"),
		DatabaseURL:           v.GetString("database_url"),
		LLMProvider:           strings.ToLower(v.GetString("llm_provider")),
		LLMBaseURL:            v.GetString("llm_base_url"),
		LLMAPIKey:             firstNonEmpty(v.GetString("llm_api_key"), v.GetString("openai_api_key")),
		DefaultModel:          v.GetString("default_model"),
		DefaultTemperature:    optionalFloat(v, "default_temperature"),
		DefaultMaxTokens:      v.GetInt("default_max_tokens"),
		MockMode:              strings.EqualFold(v.GetString("agent_mode"), "MOCK"),
		MaxIterations:         v.GetInt("max_iterations"),
		HistoryLimit:          v.GetInt("history_limit"),
		InvocationTimeout:     time.Duration(v.GetInt("invocation_timeout_ms")) * time.Millisecond,
		ToolTimeout:           time.Duration(v.GetInt("tool_timeout_ms")) * time.Millisecond,
		ParallelTools:         v.GetBool("parallel_tools"),
		ConfirmationTTL:       time.Duration(v.GetInt("confirmation_ttl_ms")) * time.Millisecond,
		PipedreamMCPURL:       v.GetString("pipedream_mcp_url"),
		PipedreamTokenURL:     v.GetString("pipedream_token_url"),
		PipedreamClientID:     v.GetString("pipedream_client_id"),
		PipedreamClientSecret: v.GetString("pipedream_client_secret"),
		PipedreamProjectID:    v.GetString("pipedream_project_id"),
		PipedreamEnvironment:  v.GetString("pipedream_project_environment"),
		ConnectionCacheTTL:    time.Duration(v.GetInt("connection_cache_ttl_ms")) * time.Millisecond,
		BraveAPIKey:           firstNonEmpty(v.GetString("brave_search_api_key"), v.GetString("brave_ai_api_key")),
		BraveBaseURL:          v.GetString("brave_base_url"),
		WeatherBaseURL:        v.GetString("weather_base_url"),
		LogLevel:              v.GetString("log_level"),
		LogFormat:             v.GetString("log_format"),
		MetricsEnabled:        v.GetBool("metrics_enabled"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8080)
	v.SetDefault("rpc_addr", "")
	v.SetDefault("database_driver", "sqlite3")
	v.SetDefault("database_url", "file:agent.db?cache=shared&mode=rwc")
	v.SetDefault("llm_provider", "openai")
	v.SetDefault("llm_base_url", "")
	v.SetDefault("default_model", "gpt-4o")
	v.SetDefault("default_temperature", 0.7)
	v.SetDefault("default_max_tokens", 4096)
	v.SetDefault("agent_mode", "")
	v.SetDefault("max_iterations", 5)
	v.SetDefault("history_limit", 50)
	v.SetDefault("invocation_timeout_ms", 120000)
	v.SetDefault("tool_timeout_ms", 30000)
	v.SetDefault("parallel_tools", false)
	v.SetDefault("confirmation_ttl_ms", 24*60*60*1000)
	v.SetDefault("pipedream_mcp_url", "https://remote.mcp.pipedream.net")
	v.SetDefault("pipedream_token_url", "https://api.pipedream.com/v1/oauth/token")
	v.SetDefault("pipedream_project_environment", "development")
	v.SetDefault("connection_cache_ttl_ms", 5*60*1000)
	v.SetDefault("brave_base_url", "https://api.search.brave.com")
	v.SetDefault("weather_base_url", "https://wttr.in")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("metrics_enabled", true)
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}
	switch c.LLMProvider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLMProvider)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive")
	}
	return nil
}

// PipedreamEnabled reports whether connected-app credentials are configured.
func (c *Config) PipedreamEnabled() bool {
	return c.PipedreamClientID != "" && c.PipedreamClientSecret != "" && c.PipedreamProjectID != ""
}

func optionalFloat(v *viper.Viper, key string) *float64 {
	if !v.IsSet(key) {
		return nil
	}
	f := v.GetFloat64(key)
	return &f
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
