package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/locus/internal/cost"
)

// Reasoner providers.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Reasoner   ReasonerConfig   `yaml:"reasoner" mapstructure:"reasoner"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Maps       MapsConfig       `yaml:"maps" mapstructure:"maps"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts" mapstructure:"artifacts"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ReasonerConfig selects the language model provider.
type ReasonerConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// GeminiConfig holds Gemini API or Vertex AI settings.
type GeminiConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Vertex      bool   `yaml:"vertex" mapstructure:"vertex"`
	Project     string `yaml:"project" mapstructure:"project"`
	Location    string `yaml:"location" mapstructure:"location"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	FastModel   string `yaml:"fast_model" mapstructure:"fast_model"`
	ProModel    string `yaml:"pro_model" mapstructure:"pro_model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	FastModel string `yaml:"fast_model" mapstructure:"fast_model"`
	ProModel  string `yaml:"pro_model" mapstructure:"pro_model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// MapsConfig holds Google geocoding and places settings. Key may be empty
// when every request supplies its own.
type MapsConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	GeocodeBaseURL string  `yaml:"geocode_base_url" mapstructure:"geocode_base_url"`
	PlacesBaseURL  string  `yaml:"places_base_url" mapstructure:"places_base_url"`
	RadiusMeters   int     `yaml:"radius_meters" mapstructure:"radius_meters"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// JinaConfig holds Jina search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// RetryConfig is the stage retry policy.
type RetryConfig struct {
	MaxAttempts     int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialDelaySec int     `yaml:"initial_delay_secs" mapstructure:"initial_delay_secs"`
	MaxDelaySec     int     `yaml:"max_delay_secs" mapstructure:"max_delay_secs"`
	Jitter          float64 `yaml:"jitter" mapstructure:"jitter"`
}

// PipelineConfig configures run execution.
type PipelineConfig struct {
	RunTimeoutSecs               int    `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
	StageTimeoutSecs             int    `yaml:"stage_timeout_secs" mapstructure:"stage_timeout_secs"`
	ReformulateOnSchemaViolation bool   `yaml:"reformulate_on_schema_violation" mapstructure:"reformulate_on_schema_violation"`
	ProfilePath                  string `yaml:"profile_path" mapstructure:"profile_path"`
}

// ArtifactsConfig configures report files. An empty Dir disables them.
type ArtifactsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentRuns int `yaml:"max_concurrent_runs" mapstructure:"max_concurrent_runs"`
}

// MonitoringConfig configures failure and cost alerting. Rate thresholds
// are fractions of the runs finished in the lookback window, evaluated
// once at least MinRuns have finished.
type MonitoringConfig struct {
	Enabled               bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	MinRuns               int     `yaml:"min_runs" mapstructure:"min_runs"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	StageFailureThreshold float64 `yaml:"stage_failure_threshold" mapstructure:"stage_failure_threshold"`
	CostPerRunUSD         float64 `yaml:"cost_per_run_usd" mapstructure:"cost_per_run_usd"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CooldownMins          int     `yaml:"cooldown_mins" mapstructure:"cooldown_mins"`
}

// PricingConfig overrides model pricing (USD per million tokens). Models
// not listed keep their default rates.
type PricingConfig struct {
	Gemini map[string]cost.ModelRate `yaml:"gemini" mapstructure:"gemini"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LOCUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("reasoner.provider", ProviderGemini)
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.vertex", false)
	v.SetDefault("gemini.project", "")
	v.SetDefault("gemini.location", "us-central1")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("gemini.fast_model", "gemini-2.5-flash-lite")
	v.SetDefault("gemini.pro_model", "gemini-2.5-pro")
	v.SetDefault("gemini.timeout_secs", 0)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.fast_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.pro_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("maps.key", "")
	v.SetDefault("maps.geocode_base_url", "")
	v.SetDefault("maps.places_base_url", "")
	v.SetDefault("maps.radius_meters", 5000)
	v.SetDefault("maps.rate_limit", 10)
	v.SetDefault("perplexity.key", "")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.initial_delay_secs", 5)
	v.SetDefault("retry.max_delay_secs", 60)
	v.SetDefault("retry.jitter", 0.0)
	v.SetDefault("pipeline.run_timeout_secs", 1800)
	v.SetDefault("pipeline.stage_timeout_secs", 600)
	v.SetDefault("pipeline.reformulate_on_schema_violation", false)
	v.SetDefault("pipeline.profile_path", "")
	v.SetDefault("artifacts.dir", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("batch.max_concurrent_runs", 4)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.min_runs", 5)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.stage_failure_threshold", 0.10)
	v.SetDefault("monitoring.cost_per_run_usd", 0.0)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.cooldown_mins", 60)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Mode is the command name;
// "stages" needs nothing. The maps key is not checked here: a run whose
// request carries no key fails at the geo stage instead.
func (c *Config) Validate(mode string) error {
	if mode == "stages" {
		return nil
	}

	var problems []string
	switch c.Reasoner.Provider {
	case ProviderGemini:
		if c.Gemini.Vertex {
			if c.Gemini.Project == "" {
				problems = append(problems, "gemini.project is required for vertex")
			}
		} else if c.Gemini.Key == "" {
			problems = append(problems, "gemini.key is required")
		}
	case ProviderAnthropic:
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	default:
		problems = append(problems, "reasoner.provider must be gemini or anthropic")
	}
	if c.Retry.MaxAttempts < 1 {
		problems = append(problems, "retry.max_attempts must be at least 1")
	}
	if c.Pipeline.RunTimeoutSecs < 0 || c.Pipeline.StageTimeoutSecs < 0 {
		problems = append(problems, "pipeline timeouts must not be negative")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	case "batch":
		if c.Batch.MaxConcurrentRuns < 1 {
			problems = append(problems, "batch.max_concurrent_runs must be at least 1")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
