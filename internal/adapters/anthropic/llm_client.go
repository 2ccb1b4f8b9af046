package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// AnthropicClient is an implementation of the LLMClient interface using the Anthropic Messages API
type AnthropicClient struct {
	client      anthropic.Client
	modelName   string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// NewAnthropicClient creates a new Anthropic client. Extra request options
// are passed to the SDK, e.g. a base URL override.
func NewAnthropicClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float64,
	logger *zap.Logger,
	opts ...option.RequestOption,
) *AnthropicClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicClient{
		client:      anthropic.NewClient(opts...),
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

// ModelName returns the configured Claude model
func (c *AnthropicClient) ModelName() string {
	return c.modelName
}

// Complete sends one user turn under the system instruction and returns the first text block
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.modelName),
		MaxTokens:   int64(c.maxTokens),
		Temperature: anthropic.Float(c.temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create message with Anthropic: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			c.logger.Debug("Anthropic completion",
				zap.String("id", message.ID),
				zap.Int64("input_tokens", message.Usage.InputTokens),
				zap.Int64("output_tokens", message.Usage.OutputTokens),
				zap.Int64("cache_read_tokens", message.Usage.CacheReadInputTokens))
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Anthropic response")
}
