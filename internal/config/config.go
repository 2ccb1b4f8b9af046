package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// credentialEnv maps config keys to the environment variables that hold
// the third-party credentials.
var credentialEnv = map[string]string{
	"podio.client_id":     "PODIO_CLIENT_ID",
	"podio.client_secret": "PODIO_CLIENT_SECRET",
	"podio.username":      "PODIO_USERNAME",
	"podio.password":      "PODIO_PASSWORD",
	"openai.api_key":      "OPENAI_API_KEY",
	"gemini.api_key":      "GEMINI_API_KEY",
	"anthropic.api_key":   "ANTHROPIC_API_KEY",
	"smtp.password":       "SENDGRID_API_KEY",
}

// New creates a new configuration instance. configFile may be empty, in
// which case the standard search paths are used.
func New(configFile string) (*Config, error) {
	// A missing .env is normal outside of local development
	_ = godotenv.Load()

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/makerlab-autoreply/")
		v.AddConfigPath("$HOME/.makerlab-autoreply")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func bindEnv(v *viper.Viper) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("AUTOREPLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, env := range credentialEnv {
		if err := v.BindEnv(key, "AUTOREPLY_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Workspace (Podio) defaults
	v.SetDefault("podio.base_url", "https://api.podio.com")
	v.SetDefault("podio.app_id", 12703942)
	v.SetDefault("podio.page_size", 30)
	v.SetDefault("podio.timezone", "Local")
	v.SetDefault("podio.system_markers", []string{"GlobiMail Activated"})
	v.SetDefault("podio.item_url_format", "https://podio.com/illinois-makerlab/lab-operations/apps/uimakerlab-emails/items/%d")

	// Pipeline defaults
	v.SetDefault("pipeline.lookback_days", 7)
	v.SetDefault("pipeline.max_messages", 20)
	v.SetDefault("pipeline.max_body_chars", 1000)
	v.SetDefault("pipeline.comment_delay", "300ms")
	v.SetDefault("pipeline.page_delay", "500ms")
	v.SetDefault("pipeline.item_delay", "500ms")
	v.SetDefault("pipeline.noreply_patterns", []string{"noreply", "no-reply"})
	v.SetDefault("pipeline.blocked_domains", []string{})

	// Report defaults
	v.SetDefault("report.lookback_days", 30)
	v.SetDefault("report.output", "unreplied_emails.json")
	v.SetDefault("report.keywords", []string{
		"summer camp", "camp", "minecraft", "3d printing camp", "robot arm", "reachy",
		"generative ai", "adventures in 3d", "registration", "sign up", "signup", "enroll", "camper",
	})

	// LLM provider defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.max_retries", 0)
	v.SetDefault("llm.retry_backoff", "2s")
	v.SetDefault("llm.max_reply_words", 150)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 500)
	v.SetDefault("openai.temperature", 0.3)
	v.SetDefault("openai.top_p", 1.0)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 500)
	v.SetDefault("gemini.temperature", 0.3)
	v.SetDefault("gemini.top_p", 0.9)

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 500)
	v.SetDefault("bedrock.temperature", 0.3)
	v.SetDefault("bedrock.top_p", 0.9)

	// Anthropic defaults
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model_name", "claude-3-5-haiku-latest")
	v.SetDefault("anthropic.max_tokens", 500)
	v.SetDefault("anthropic.temperature", 0.3)

	// Mail relay defaults
	v.SetDefault("smtp.host", "smtp.sendgrid.net")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "apikey")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.starttls", true)
	v.SetDefault("smtp.timeout", "30s")
	v.SetDefault("smtp.from_name", "Illinois MakerLab")
	v.SetDefault("smtp.from_email", "uimakerlab@illinois.edu")
	v.SetDefault("smtp.reply_to", "uimakerlab@illinois.edu")

	// Knowledge defaults
	v.SetDefault("knowledge.site_root", ".")
	v.SetDefault("knowledge.facts_file", "")
	v.SetDefault("knowledge.summer_page_chars", 3000)
	v.SetDefault("knowledge.site_url", "https://makerlab.illinois.edu")

	// Ledger defaults
	v.SetDefault("ledger.type", "memory")
	v.SetDefault("ledger.ttl", "720h")
	v.SetDefault("ledger.cleanup_frequency", "1h")
	v.SetDefault("ledger.sqlite_path", "./data/autoreply_ledger.db")
	v.SetDefault("ledger.mysql_dsn", "user:password@tcp(localhost:3306)/autoreply")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Set overrides a configuration value
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 gets an int64 value from the configuration
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}
