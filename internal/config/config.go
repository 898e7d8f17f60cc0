package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"newsroom/internal/core"
)

// Config holds all application configuration
type Config struct {
	App         App         `mapstructure:"app"`
	Logging     Logging     `mapstructure:"logging"`
	Mailbox     Mailbox     `mapstructure:"mailbox"`
	Poller      Poller      `mapstructure:"poller"`
	Redis       Redis       `mapstructure:"redis"`
	Analysis    Analysis    `mapstructure:"analysis"`
	Newsletter  Newsletter  `mapstructure:"newsletter"`
	LLM         LLM         `mapstructure:"llm"`
	Research    Research    `mapstructure:"research"`
	Database    Database    `mapstructure:"database"`
	Output      Output      `mapstructure:"output"`
	Server      Server      `mapstructure:"server"`
	Synthesizer Synthesizer `mapstructure:"synthesizer"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	ConfigFile string `mapstructure:"config_file"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Mailbox holds IMAP connection settings
type Mailbox struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Folder   string `mapstructure:"folder"`
}

// Address returns host:port for dialing.
func (m Mailbox) Address() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// Poller holds inbox polling configuration
type Poller struct {
	Interval  string `mapstructure:"interval"`
	TablePath string `mapstructure:"table_path"`
	RulesFile string `mapstructure:"rules_file"`
}

// Redis holds the optional seen-id store configuration
type Redis struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
	TTL       string `mapstructure:"ttl"`
}

// Analysis holds analysis loader configuration
type Analysis struct {
	Directory  string   `mapstructure:"directory"`
	Categories []string `mapstructure:"categories"`
}

// Newsletter holds draft/evaluate/refine configuration
type Newsletter struct {
	Iterations      int     `mapstructure:"iterations"`
	SectionWordsMin int     `mapstructure:"section_words_min"`
	SectionWordsMax int     `mapstructure:"section_words_max"`
	OutputPath      string  `mapstructure:"output_path"`
	DefaultScore    float64 `mapstructure:"default_score"`
}

// LLM holds model provider configuration
type LLM struct {
	OpenAI     OpenAIConfig    `mapstructure:"openai"`
	Anthropic  AnthropicConfig `mapstructure:"anthropic"`
	Gemini     GeminiConfig    `mapstructure:"gemini"`
	Drafter    DrafterConfig   `mapstructure:"drafter"`
	Evaluator  EvaluatorConfig `mapstructure:"evaluator"`
	MaxRetries int             `mapstructure:"max_retries"`
}

// OpenAIConfig holds OpenAI configuration
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	Timeout string `mapstructure:"timeout"`
}

// AnthropicConfig holds Anthropic configuration
type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	Version string `mapstructure:"version"`
	Timeout string `mapstructure:"timeout"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// DrafterConfig selects the drafting provider and its sampling settings
type DrafterConfig struct {
	Provider        string  `mapstructure:"provider"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	RefineMaxTokens int     `mapstructure:"refine_max_tokens"`
}

// EvaluatorConfig holds the scoring call settings
type EvaluatorConfig struct {
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	RetryMaxTokens int     `mapstructure:"retry_max_tokens"`
}

// Research holds browser sandbox configuration
type Research struct {
	APIKey       string   `mapstructure:"api_key"`
	BaseURL      string   `mapstructure:"base_url"`
	Model        string   `mapstructure:"model"`
	Temperature  float64  `mapstructure:"temperature"`
	Backoff      string   `mapstructure:"backoff"`
	Timeout      string   `mapstructure:"timeout"`
	KeywordsFile string   `mapstructure:"keywords_file"`
	ResultsFile  string   `mapstructure:"results_file"`
	Sources      []string `mapstructure:"sources"`
}

// Database holds relational store configuration
type Database struct {
	URL     string `mapstructure:"url"`
	Timeout string `mapstructure:"timeout"`
}

// Output holds publishing configuration
type Output struct {
	S3 S3Config `mapstructure:"s3"`
}

// S3Config holds the optional S3 copy of each newsletter
type S3Config struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
	Region string `mapstructure:"region"`
}

// Server holds HTTP server configuration
type Server struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORS         CORSConfig    `mapstructure:"cors"`
}

// CORSConfig holds CORS middleware settings
type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Synthesizer holds topic synthesizer configuration
type Synthesizer struct {
	Interval      string `mapstructure:"interval"`
	RateLimitWait string `mapstructure:"rate_limit_wait"`
	StatePath     string `mapstructure:"state_path"`
	Model         string `mapstructure:"model"`
}

// Load loads the configuration from .env files, the config file and the environment.
// Each call builds a fresh viper instance, so tests can load repeatedly.
func Load(configFile string) (*Config, error) {
	// .env.local overrides .env; neither overrides the real environment
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: Error loading %s file: %v\n", f, err)
			}
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".newsroom")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	bindEnvironmentVariables(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = v.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.debug", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("mailbox.host", "imap.gmail.com")
	v.SetDefault("mailbox.port", 993)
	v.SetDefault("mailbox.folder", "INBOX")

	v.SetDefault("poller.interval", "15s")
	v.SetDefault("poller.table_path", "email_database.csv")

	v.SetDefault("redis.key_prefix", "newsroom:seen:")
	v.SetDefault("redis.ttl", "0s")

	v.SetDefault("analysis.directory", "outputs/category_reports")
	v.SetDefault("analysis.categories", DefaultCategories())

	v.SetDefault("newsletter.iterations", 3)
	v.SetDefault("newsletter.section_words_min", 400)
	v.SetDefault("newsletter.section_words_max", 500)
	v.SetDefault("newsletter.output_path", "newsletter.txt")
	v.SetDefault("newsletter.default_score", core.DefaultScore)

	v.SetDefault("llm.openai.model", "gpt-4")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.openai.timeout", "120s")
	v.SetDefault("llm.anthropic.model", "claude-3-5-sonnet-latest")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com/")
	v.SetDefault("llm.anthropic.version", "2023-06-01")
	v.SetDefault("llm.anthropic.timeout", "120s")
	v.SetDefault("llm.gemini.model", "gemini-flash-lite-latest")
	v.SetDefault("llm.drafter.provider", "openai")
	v.SetDefault("llm.drafter.temperature", 0.7)
	v.SetDefault("llm.drafter.max_tokens", 4000)
	v.SetDefault("llm.drafter.refine_max_tokens", 1500)
	v.SetDefault("llm.evaluator.temperature", 0.0)
	v.SetDefault("llm.evaluator.max_tokens", 1000)
	v.SetDefault("llm.evaluator.retry_max_tokens", 100)
	v.SetDefault("llm.max_retries", 2)

	v.SetDefault("research.base_url", "https://api.scrapybara.com/v1")
	v.SetDefault("research.model", "claude-3-7-sonnet-20250219")
	v.SetDefault("research.temperature", 0.7)
	v.SetDefault("research.backoff", "10s")
	v.SetDefault("research.timeout", "300s")
	v.SetDefault("research.keywords_file", "keywords.json")
	v.SetDefault("research.results_file", "research_results.json")
	v.SetDefault("research.sources", []string{"AP News", "Reuters", "BBC News"})

	v.SetDefault("database.timeout", "10s")

	v.SetDefault("output.s3.prefix", "newsletters/")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "600s")
	v.SetDefault("server.cors.enabled", false)

	v.SetDefault("synthesizer.interval", "10s")
	v.SetDefault("synthesizer.rate_limit_wait", "20s")
	v.SetDefault("synthesizer.state_path", "outputs/category_reports/.processed.json")
	v.SetDefault("synthesizer.model", "gpt-4o-mini")
}

// DefaultCategories is the topic allow-list used when none is configured.
func DefaultCategories() []string {
	return []string{"tech", "sports", "global news", "us news", "finance"}
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables(v *viper.Viper) {
	bindEnvKeys(v, "llm.openai.api_key", []string{"OPENAI_API_KEY"})
	bindEnvKeys(v, "llm.anthropic.api_key", []string{"ANTHROPIC_API_KEY"})
	bindEnvKeys(v, "llm.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})
	bindEnvKeys(v, "research.api_key", []string{"SCRAPYBARA_API_KEY"})

	// Mailbox credentials keep the names the poller has always read
	bindEnvKeys(v, "mailbox.username", []string{"IMAP_USER", "EMAIL_USER", "USER_EMAIL"})
	bindEnvKeys(v, "mailbox.password", []string{"IMAP_PASSWORD", "APP_PASSWORD"})

	bindEnvKeys(v, "database.url", []string{"DATABASE_URL", "SUPABASE_DB_URL"})
	bindEnvKeys(v, "redis.url", []string{"REDIS_URL"})
	bindEnvKeys(v, "output.s3.bucket", []string{"NEWSROOM_S3_BUCKET"})
	bindEnvKeys(v, "output.s3.region", []string{"AWS_REGION"})

	bindEnvKeys(v, "app.debug", []string{"DEBUG", "NEWSROOM_DEBUG"})
	bindEnvKeys(v, "logging.level", []string{"LOG_LEVEL"})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(v *viper.Viper, viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			v.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	config.Poller.TablePath = expandPath(config.Poller.TablePath)
	config.Poller.RulesFile = expandPath(config.Poller.RulesFile)
	config.Analysis.Directory = expandPath(config.Analysis.Directory)
	config.Newsletter.OutputPath = expandPath(config.Newsletter.OutputPath)
	config.Research.KeywordsFile = expandPath(config.Research.KeywordsFile)
	config.Research.ResultsFile = expandPath(config.Research.ResultsFile)
	config.Synthesizer.StatePath = expandPath(config.Synthesizer.StatePath)

	if config.App.Debug {
		config.Logging.Level = "debug"
	}

	durations := map[string]string{
		"poller.interval":             config.Poller.Interval,
		"redis.ttl":                   config.Redis.TTL,
		"llm.openai.timeout":          config.LLM.OpenAI.Timeout,
		"llm.anthropic.timeout":       config.LLM.Anthropic.Timeout,
		"research.backoff":            config.Research.Backoff,
		"research.timeout":            config.Research.Timeout,
		"database.timeout":            config.Database.Timeout,
		"synthesizer.interval":        config.Synthesizer.Interval,
		"synthesizer.rate_limit_wait": config.Synthesizer.RateLimitWait,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig rejects settings no command could run with. Credentials are
// checked per command by the Validate* helpers.
func validateConfig(config *Config) error {
	var errors []string

	if config.Newsletter.Iterations < 0 {
		errors = append(errors, "newsletter.iterations must not be negative")
	}
	if config.Newsletter.SectionWordsMin < 0 || config.Newsletter.SectionWordsMax < 0 {
		errors = append(errors, "newsletter section word limits must not be negative")
	}
	if config.Newsletter.SectionWordsMax > 0 && config.Newsletter.SectionWordsMin > config.Newsletter.SectionWordsMax {
		errors = append(errors, fmt.Sprintf("newsletter.section_words_min (%d) is greater than section_words_max (%d)",
			config.Newsletter.SectionWordsMin, config.Newsletter.SectionWordsMax))
	}
	if s := config.Newsletter.DefaultScore; s < 1 || s > 10 {
		errors = append(errors, fmt.Sprintf("newsletter.default_score must be between 1 and 10, got %.1f", s))
	}

	switch config.LLM.Drafter.Provider {
	case "openai", "gemini":
	default:
		errors = append(errors, fmt.Sprintf("Unknown drafter provider: %s. Supported: openai, gemini", config.LLM.Drafter.Provider))
	}

	switch strings.ToLower(config.Logging.Format) {
	case "json", "text":
	default:
		errors = append(errors, fmt.Sprintf("Unknown logging format: %s. Supported: json, text", config.Logging.Format))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// ValidateNewsletter checks the keys needed to draft and evaluate.
func (c *Config) ValidateNewsletter() error {
	var missing []string
	switch c.LLM.Drafter.Provider {
	case "gemini":
		if c.LLM.Gemini.APIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	default:
		if c.LLM.OpenAI.APIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	}
	if c.LLM.Anthropic.APIKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	return missingErr(missing)
}

// ValidateSynthesizer checks the key needed to write topic analyses.
func (c *Config) ValidateSynthesizer() error {
	if c.LLM.OpenAI.APIKey == "" {
		return missingErr([]string{"OPENAI_API_KEY"})
	}
	return nil
}

// ValidateMailbox checks the IMAP login.
func (c *Config) ValidateMailbox() error {
	var missing []string
	if c.Mailbox.Username == "" {
		missing = append(missing, "IMAP_USER")
	}
	if c.Mailbox.Password == "" {
		missing = append(missing, "IMAP_PASSWORD")
	}
	return missingErr(missing)
}

// ValidateResearch checks the sandbox key.
func (c *Config) ValidateResearch() error {
	if c.Research.APIKey == "" {
		return missingErr([]string{"SCRAPYBARA_API_KEY"})
	}
	return nil
}

// ValidateDatabase checks the store connection string.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return missingErr([]string{"DATABASE_URL"})
	}
	return nil
}

func missingErr(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: set %s", core.ErrMissingCredentials, strings.Join(missing, ", "))
}

// Duration parses a duration that postProcessConfig already validated,
// returning def for empty values.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
