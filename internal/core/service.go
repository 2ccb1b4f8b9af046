package core

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SenderScreen excludes senders that must never reach the classifier
type SenderScreen interface {
	// Screen returns a non-empty reason when the sender is excluded
	Screen(from string) string
}

// Pipeline runs fetch, reply detection, classification and dispatch once
type Pipeline struct {
	source       MessageSource
	screen       SenderScreen
	detector     *ReplyDetector
	classifier   *Classifier
	dispatcher   *Dispatcher
	itemThrottle Throttle
	maxMessages  int
	out          io.Writer
	logger       *zap.Logger
	now          func() time.Time
}

// NewPipeline creates a new triage pipeline
func NewPipeline(
	source MessageSource,
	screen SenderScreen,
	detector *ReplyDetector,
	classifier *Classifier,
	dispatcher *Dispatcher,
	itemThrottle Throttle,
	maxMessages int,
	out io.Writer,
	logger *zap.Logger,
) *Pipeline {
	if out == nil {
		out = io.Discard
	}
	return &Pipeline{
		source:       source,
		screen:       screen,
		detector:     detector,
		classifier:   classifier,
		dispatcher:   dispatcher,
		itemThrottle: itemThrottle,
		maxMessages:  maxMessages,
		out:          out,
		logger:       logger,
		now:          time.Now,
	}
}

// Collect gathers up to maxMessages unreplied messages created after since.
// Screened senders and already-answered items are dropped, and an item is
// returned at most once.
func (p *Pipeline) Collect(ctx context.Context, since time.Time) ([]*InboundMessage, error) {
	var (
		messages []*InboundMessage
		seen     = make(map[int64]struct{})
	)

	for msg, err := range p.source.Messages(ctx, since) {
		if err != nil {
			return messages, err
		}
		if _, dup := seen[msg.ItemID]; dup {
			continue
		}
		seen[msg.ItemID] = struct{}{}

		if msg.CreatedAt.Before(since) {
			continue
		}

		if reason := p.screen.Screen(msg.FromEmail); reason != "" {
			p.logger.Debug("Sender screened out",
				zap.Int64("item_id", msg.ItemID),
				zap.String("from", msg.FromEmail),
				zap.String("reason", reason))
			continue
		}

		replied, err := p.detector.HasReply(ctx, msg.ItemID)
		if err != nil {
			return messages, err
		}
		if replied {
			p.logger.Debug("Item already has a reply", zap.Int64("item_id", msg.ItemID))
			continue
		}

		messages = append(messages, msg)
		if p.maxMessages > 0 && len(messages) >= p.maxMessages {
			break
		}
	}

	return messages, nil
}

// Run executes one pass of the pipeline in the given mode. The returned
// stats are valid even when an error ends the run early.
func (p *Pipeline) Run(ctx context.Context, mode RunMode, lookbackDays int) (*RunStats, error) {
	runID := uuid.NewString()
	log := p.logger.With(zap.String("run_id", runID), zap.String("mode", mode.String()))
	stats := &RunStats{}

	fmt.Fprintf(p.out, "=== MakerLab Auto-Reply (%s mode) ===\n", mode)
	fmt.Fprintf(p.out, "Looking back %d days\n\n", lookbackDays)

	since := p.now().AddDate(0, 0, -lookbackDays)
	log.Info("Fetching unreplied emails", zap.Time("since", since))

	messages, err := p.Collect(ctx, since)
	if err != nil {
		return stats, fmt.Errorf("failed to fetch emails: %w", err)
	}
	fmt.Fprintf(p.out, "Found %d unreplied emails\n\n", len(messages))

	if len(messages) == 0 {
		fmt.Fprintf(p.out, "No unreplied emails. Done!\n")
		return stats, nil
	}

	for i, msg := range messages {
		fmt.Fprintf(p.out, "[%d/%d] %s — %s\n", i+1, len(messages), msg.FromName, truncateRunes(msg.Subject, 50))

		result, err := p.classifier.Classify(ctx, msg)
		if err != nil {
			return stats, fmt.Errorf("failed to classify item %d: %w", msg.ItemID, err)
		}
		stats.Processed++
		stats.Count(result.Label)

		fmt.Fprintf(p.out, "  Classification: %s (confidence: %.2f)\n", result.Label, result.Confidence)
		fmt.Fprintf(p.out, "  Reason: %s\n", result.Reason)

		outcome, err := p.dispatcher.Dispatch(ctx, msg, result, mode, runID)
		switch outcome {
		case OutcomeSent:
			stats.Sent++
		case OutcomeSendError:
			stats.Errors++
		}
		if err != nil {
			return stats, fmt.Errorf("failed to send reply for item %d: %w", msg.ItemID, err)
		}
		fmt.Fprintln(p.out)

		if err := p.itemThrottle.Wait(ctx); err != nil {
			return stats, err
		}
	}

	PrintSummary(p.out, mode, stats)
	log.Info("Run complete",
		zap.Int("processed", stats.Processed),
		zap.Int("answerable", stats.Answerable),
		zap.Int("needs_human", stats.NeedsHuman),
		zap.Int("skipped", stats.Skipped),
		zap.Int("sent", stats.Sent),
		zap.Int("errors", stats.Errors))
	return stats, nil
}

// PrintSummary writes the end-of-run counts
func PrintSummary(w io.Writer, mode RunMode, stats *RunStats) {
	rule := strings.Repeat("=", 50)
	fmt.Fprintf(w, "\n%s\nSUMMARY (%s mode)\n%s\n", rule, mode, rule)
	fmt.Fprintf(w, "Processed: %d emails\n", stats.Processed)
	fmt.Fprintf(w, "Answerable: %d\n", stats.Answerable)
	fmt.Fprintf(w, "Needs human: %d\n", stats.NeedsHuman)
	fmt.Fprintf(w, "Skipped: %d\n", stats.Skipped)
	if mode == ModeSend {
		fmt.Fprintf(w, "Sent: %d\n", stats.Sent)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
