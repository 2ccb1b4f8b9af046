package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mikey/makerlab-autoreply/internal/utils"
	"go.uber.org/zap"
)

// Comment texts written back to the workspace item. Each starts with a
// bracketed tag so later runs and humans can tell automated comments apart.
const (
	FlagComment        = "[AUTO-FLAG] This email needs a human reply."
	DraftCommentHeader = "[AUTO-DRAFT] Suggested reply (needs approval):"
	SentCommentHeader  = "[AUTO-SENT] Reply sent automatically."
)

// Dispatcher applies the side effects for one classified message
type Dispatcher struct {
	workspace Workspace
	mailer    Mailer
	ledger    Ledger
	ledgerTTL time.Duration
	out       io.Writer
	logger    *zap.Logger
}

// NewDispatcher creates a new dispatcher. mailer may be nil when the run
// never sends; ledger may be nil to disable outcome recording.
func NewDispatcher(workspace Workspace, mailer Mailer, ledger Ledger, ledgerTTL time.Duration, out io.Writer, logger *zap.Logger) *Dispatcher {
	if out == nil {
		out = io.Discard
	}
	return &Dispatcher{
		workspace: workspace,
		mailer:    mailer,
		ledger:    ledger,
		ledgerTTL: ledgerTTL,
		out:       out,
		logger:    logger,
	}
}

// FormatComment builds the workspace comment for an outcome, tagged with the run ID
func FormatComment(outcome Outcome, replyHTML, runID string) string {
	var text string
	switch outcome {
	case OutcomeFlagged:
		text = FlagComment
	case OutcomeDrafted:
		text = DraftCommentHeader + "\n\n" + replyHTML
	case OutcomeSent:
		text = SentCommentHeader + "\n\n" + replyHTML
	default:
		return ""
	}
	if runID != "" {
		text += "\n\n(run " + runID + ")"
	}
	return text
}

// Dispatch acts on msg according to its classification and the run mode.
// In send mode the email goes out before the confirmation comment is written.
// The error is non-nil only when the relay rejected the mailer's credentials.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *InboundMessage, result *ClassificationResult, mode RunMode, runID string) (Outcome, error) {
	log := d.logger.With(
		zap.Int64("item_id", msg.ItemID),
		zap.String("label", string(result.Label)),
		zap.Float64("confidence", result.Confidence),
		zap.String("mode", mode.String()),
		zap.String("run_id", runID))

	var (
		outcome Outcome
		err     error
	)
	switch {
	case result.Label == LabelSkip:
		fmt.Fprintf(d.out, "  -> Skipping\n")
		outcome = OutcomeSkipped

	case result.Label == LabelNeedsHuman || !result.HasReply():
		if mode != ModeDryRun {
			d.comment(ctx, log, msg.ItemID, FormatComment(OutcomeFlagged, "", runID))
			outcome = OutcomeFlagged
		} else {
			outcome = OutcomeNone
		}
		fmt.Fprintf(d.out, "  -> Flagged for human reply\n")

	default:
		fmt.Fprintf(d.out, "  Draft: %s...\n", preview(result.ReplyHTML, 200))
		outcome, err = d.dispatchReply(ctx, log, msg, result, mode, runID)
	}

	d.record(ctx, log, msg.ItemID, result.Label, outcome, runID)
	log.Info("Dispatched message", zap.String("outcome", string(outcome)))
	return outcome, err
}

func (d *Dispatcher) dispatchReply(ctx context.Context, log *zap.Logger, msg *InboundMessage, result *ClassificationResult, mode RunMode, runID string) (Outcome, error) {
	switch mode {
	case ModeSend:
		if d.mailer == nil {
			log.Error("Send mode without a mailer")
			fmt.Fprintf(d.out, "  -> SEND FAILED\n")
			return OutcomeSendError, nil
		}
		err := d.mailer.Send(ctx, &OutboundMail{
			To:       msg.FromEmail,
			Subject:  msg.Subject,
			BodyHTML: result.ReplyHTML,
		})
		if err != nil {
			log.Error("Failed to send reply", zap.String("to", msg.FromEmail), zap.Error(err))
			fmt.Fprintf(d.out, "  -> SEND FAILED\n")
			if errors.Is(err, ErrMailAuth) {
				return OutcomeSendError, err
			}
			return OutcomeSendError, nil
		}
		fmt.Fprintf(d.out, "  -> SENT to %s\n", msg.FromEmail)
		d.comment(ctx, log, msg.ItemID, FormatComment(OutcomeSent, result.ReplyHTML, runID))
		return OutcomeSent, nil

	case ModeDraft:
		d.comment(ctx, log, msg.ItemID, FormatComment(OutcomeDrafted, result.ReplyHTML, runID))
		fmt.Fprintf(d.out, "  -> Draft saved to workspace comment\n")
		return OutcomeDrafted, nil

	default:
		fmt.Fprintf(d.out, "  -> Dry run, no action taken\n")
		return OutcomePrinted, nil
	}
}

// comment failures are reported but never stop the run
func (d *Dispatcher) comment(ctx context.Context, log *zap.Logger, itemID int64, text string) {
	if err := d.workspace.AddComment(ctx, itemID, text); err != nil {
		log.Warn("Failed to add comment", zap.Error(err))
		fmt.Fprintf(d.out, "  Warning: failed to add comment: %v\n", err)
	}
}

func (d *Dispatcher) record(ctx context.Context, log *zap.Logger, itemID int64, label Label, outcome Outcome, runID string) {
	if d.ledger == nil {
		return
	}
	switch outcome {
	case OutcomeFlagged, OutcomeDrafted, OutcomeSent, OutcomeSendError:
	default:
		return
	}

	now := time.Now()
	entry := &LedgerEntry{
		ItemID:     itemID,
		Label:      label,
		Outcome:    outcome,
		RunID:      runID,
		RecordedAt: now,
		ExpiresAt:  now.Add(d.ledgerTTL),
	}
	if err := d.ledger.Record(ctx, entry); err != nil {
		log.Error("Failed to record outcome", zap.Error(err))
	}
}

func preview(replyHTML string, n int) string {
	r := []rune(utils.PlainText(replyHTML))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
