package factory

import (
	"fmt"

	"github.com/mikey/makerlab-autoreply/internal/adapters/anthropic"
	"github.com/mikey/makerlab-autoreply/internal/adapters/bedrock"
	"github.com/mikey/makerlab-autoreply/internal/adapters/gemini"
	"github.com/mikey/makerlab-autoreply/internal/adapters/openai"
	"github.com/mikey/makerlab-autoreply/internal/config"
	"github.com/mikey/makerlab-autoreply/internal/core"
	"go.uber.org/zap"
)

// LLMFactory creates LLM clients
type LLMFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger) *LLMFactory {
	return &LLMFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLLMClient creates a new LLM client for the configured provider
func (f *LLMFactory) CreateLLMClient() (core.LLMClient, error) {
	provider := f.cfg.GetLLM().Provider

	var (
		client core.LLMClient
		err    error
	)
	switch provider {
	case "openai":
		client, err = openai.NewFactory(f.cfg, f.logger).CreateLLMClient()
	case "gemini":
		client, err = gemini.NewFactory(f.cfg, f.logger).CreateLLMClient()
	case "bedrock":
		client, err = bedrock.NewFactory(f.cfg, f.logger).CreateLLMClient()
	case "anthropic":
		client, err = anthropic.NewFactory(f.cfg, f.logger).CreateLLMClient()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider, err)
	}

	f.logger.Info("Using LLM provider", zap.String("provider", provider), zap.String("model", client.ModelName()))
	return client, nil
}
