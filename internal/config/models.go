package config

import (
	"fmt"
	"time"
)

// PodioConfig represents the configuration for the Podio workspace API
type PodioConfig struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	Username      string
	Password      string
	AppID         int64
	PageSize      int
	Location      *time.Location
	SystemMarkers []string
	ItemURLFormat string
}

// PipelineConfig represents the configuration for the triage pipeline
type PipelineConfig struct {
	LookbackDays    int
	MaxMessages     int
	MaxBodyChars    int
	CommentDelay    time.Duration
	PageDelay       time.Duration
	ItemDelay       time.Duration
	NoreplyPatterns []string
	BlockedDomains  []string
}

// ReportConfig represents the configuration for the unreplied report
type ReportConfig struct {
	LookbackDays int
	Output       string
	Keywords     []string
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider      string
	MaxRetries    int
	RetryBackoff  time.Duration
	MaxReplyWords int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// AnthropicConfig represents the configuration for the Anthropic API
type AnthropicConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float64
}

// SMTPConfig represents the configuration for the outbound mail relay
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	StartTLS  bool
	Timeout   time.Duration
	FromName  string
	FromEmail string
	ReplyTo   string
}

// KnowledgeConfig represents where the website knowledge is loaded from
type KnowledgeConfig struct {
	SiteRoot        string
	FactsFile       string
	SummerPageChars int
	SiteURL         string
}

// LedgerConfig represents the configuration for the dispatch ledger
type LedgerConfig struct {
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// GetPodio returns the Podio configuration
func (c *Config) GetPodio() (PodioConfig, error) {
	loc, err := time.LoadLocation(c.GetString("podio.timezone"))
	if err != nil {
		return PodioConfig{}, fmt.Errorf("invalid podio timezone: %w", err)
	}
	return PodioConfig{
		BaseURL:       c.GetString("podio.base_url"),
		ClientID:      c.GetString("podio.client_id"),
		ClientSecret:  c.GetString("podio.client_secret"),
		Username:      c.GetString("podio.username"),
		Password:      c.GetString("podio.password"),
		AppID:         c.GetInt64("podio.app_id"),
		PageSize:      c.GetInt("podio.page_size"),
		Location:      loc,
		SystemMarkers: c.GetStringSlice("podio.system_markers"),
		ItemURLFormat: c.GetString("podio.item_url_format"),
	}, nil
}

// GetPipeline returns the pipeline configuration
func (c *Config) GetPipeline() (PipelineConfig, error) {
	delays := make(map[string]time.Duration, 3)
	for _, key := range []string{"pipeline.comment_delay", "pipeline.page_delay", "pipeline.item_delay"} {
		d, err := c.GetDuration(key)
		if err != nil {
			return PipelineConfig{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		delays[key] = d
	}
	return PipelineConfig{
		LookbackDays:    c.GetInt("pipeline.lookback_days"),
		MaxMessages:     c.GetInt("pipeline.max_messages"),
		MaxBodyChars:    c.GetInt("pipeline.max_body_chars"),
		CommentDelay:    delays["pipeline.comment_delay"],
		PageDelay:       delays["pipeline.page_delay"],
		ItemDelay:       delays["pipeline.item_delay"],
		NoreplyPatterns: c.GetStringSlice("pipeline.noreply_patterns"),
		BlockedDomains:  c.GetStringSlice("pipeline.blocked_domains"),
	}, nil
}

// GetReport returns the unreplied report configuration
func (c *Config) GetReport() ReportConfig {
	return ReportConfig{
		LookbackDays: c.GetInt("report.lookback_days"),
		Output:       c.GetString("report.output"),
		Keywords:     c.GetStringSlice("report.keywords"),
	}
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	backoff, err := c.GetDuration("llm.retry_backoff")
	if err != nil {
		backoff = 2 * time.Second
	}
	return LLMConfig{
		Provider:      c.GetString("llm.provider"),
		MaxRetries:    c.GetInt("llm.max_retries"),
		RetryBackoff:  backoff,
		MaxReplyWords: c.GetInt("llm.max_reply_words"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetAnthropic returns the Anthropic configuration
func (c *Config) GetAnthropic() AnthropicConfig {
	return AnthropicConfig{
		APIKey:      c.GetString("anthropic.api_key"),
		ModelName:   c.GetString("anthropic.model_name"),
		MaxTokens:   c.GetInt("anthropic.max_tokens"),
		Temperature: c.GetFloat64("anthropic.temperature"),
	}
}

// GetSMTP returns the mail relay configuration
func (c *Config) GetSMTP() (SMTPConfig, error) {
	timeout, err := c.GetDuration("smtp.timeout")
	if err != nil {
		return SMTPConfig{}, fmt.Errorf("invalid smtp timeout: %w", err)
	}
	return SMTPConfig{
		Host:      c.GetString("smtp.host"),
		Port:      c.GetInt("smtp.port"),
		Username:  c.GetString("smtp.username"),
		Password:  c.GetString("smtp.password"),
		StartTLS:  c.GetBool("smtp.starttls"),
		Timeout:   timeout,
		FromName:  c.GetString("smtp.from_name"),
		FromEmail: c.GetString("smtp.from_email"),
		ReplyTo:   c.GetString("smtp.reply_to"),
	}, nil
}

// GetKnowledge returns the knowledge source configuration
func (c *Config) GetKnowledge() KnowledgeConfig {
	return KnowledgeConfig{
		SiteRoot:        c.GetString("knowledge.site_root"),
		FactsFile:       c.GetString("knowledge.facts_file"),
		SummerPageChars: c.GetInt("knowledge.summer_page_chars"),
		SiteURL:         c.GetString("knowledge.site_url"),
	}
}

// GetLedger returns the dispatch ledger configuration
func (c *Config) GetLedger() (LedgerConfig, error) {
	ttl, err := c.GetDuration("ledger.ttl")
	if err != nil {
		return LedgerConfig{}, fmt.Errorf("invalid ledger ttl: %w", err)
	}
	cleanup, err := c.GetDuration("ledger.cleanup_frequency")
	if err != nil {
		return LedgerConfig{}, fmt.Errorf("invalid ledger cleanup frequency: %w", err)
	}
	return LedgerConfig{
		Type:             c.GetString("ledger.type"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("ledger.sqlite_path"),
		MySQLDSN:         c.GetString("ledger.mysql_dsn"),
	}, nil
}
