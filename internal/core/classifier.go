package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Classifier labels inbound messages and drafts replies with a hosted model
type Classifier struct {
	llmClient     LLMClient
	knowledge     string
	maxReplyWords int
	maxRetries    int
	retryBackoff  time.Duration
	logger        *zap.Logger
}

// NewClassifier creates a new classifier. knowledge is the website context
// the model is restricted to when drafting replies.
func NewClassifier(
	llmClient LLMClient,
	knowledge string,
	maxReplyWords int,
	maxRetries int,
	retryBackoff time.Duration,
	logger *zap.Logger,
) *Classifier {
	return &Classifier{
		llmClient:     llmClient,
		knowledge:     knowledge,
		maxReplyWords: maxReplyWords,
		maxRetries:    maxRetries,
		retryBackoff:  retryBackoff,
		logger:        logger,
	}
}

// Classify returns a well-formed result for msg. An error is returned only
// when the model could not be reached; malformed responses are downgraded
// to NeedsHuman.
func (c *Classifier) Classify(ctx context.Context, msg *InboundMessage) (*ClassificationResult, error) {
	systemPrompt := SystemPrompt(c.maxReplyWords)
	userPrompt := UserPrompt(msg, c.knowledge)

	responseText, err := c.complete(ctx, systemPrompt, userPrompt, msg.ItemID)
	if err != nil {
		return nil, err
	}

	result := ParseClassification(responseText, c.llmClient.ModelName())
	if result.Confidence == 0 && result.Reason != "" && result.Label == LabelNeedsHuman {
		c.logger.Debug("Classifier fell back to NeedsHuman",
			zap.Int64("item_id", msg.ItemID),
			zap.String("reason", result.Reason))
	}
	return result, nil
}

func (c *Classifier) complete(ctx context.Context, systemPrompt, userPrompt string, itemID int64) (string, error) {
	backoff := c.retryBackoff
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying model call",
				zap.Int64("item_id", itemID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}

		text, err := c.llmClient.Complete(ctx, systemPrompt, userPrompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("model call failed after %d attempt(s): %w", c.maxRetries+1, lastErr)
}
