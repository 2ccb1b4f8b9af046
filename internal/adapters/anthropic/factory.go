package anthropic

import (
	"fmt"

	"github.com/mikey/makerlab-autoreply/internal/config"
	"github.com/mikey/makerlab-autoreply/internal/core"
	"go.uber.org/zap"
)

// Factory creates new instances of AnthropicClient
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a new factory for AnthropicClient instances
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLLMClient creates a new AnthropicClient
func (f *Factory) CreateLLMClient() (core.LLMClient, error) {
	anthropicCfg := f.cfg.GetAnthropic()
	if anthropicCfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	return NewAnthropicClient(
		anthropicCfg.APIKey,
		anthropicCfg.ModelName,
		anthropicCfg.MaxTokens,
		anthropicCfg.Temperature,
		f.logger,
	), nil
}
