package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ReplyDetector decides whether an item already has a real reply
type ReplyDetector struct {
	workspace Workspace
	ledger    Ledger
	markers   []string
	throttle  Throttle
	logger    *zap.Logger
}

// NewReplyDetector creates a new reply detector. Comments containing any of
// markers are system-generated and do not count as replies.
func NewReplyDetector(workspace Workspace, ledger Ledger, markers []string, throttle Throttle, logger *zap.Logger) *ReplyDetector {
	return &ReplyDetector{
		workspace: workspace,
		ledger:    ledger,
		markers:   markers,
		throttle:  throttle,
		logger:    logger,
	}
}

// HasRealReply reports whether any comment is non-empty and not a system marker
func HasRealReply(comments []Comment, markers []string) bool {
	for _, c := range comments {
		value := strings.TrimSpace(c.Value)
		if value == "" || isSystemComment(value, markers) {
			continue
		}
		return true
	}
	return false
}

func isSystemComment(value string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(value, m) {
			return true
		}
	}
	return false
}

// HasReply fetches the item's comment thread and checks it for a real reply.
// An item the ledger shows as handled counts as replied without a fetch.
func (d *ReplyDetector) HasReply(ctx context.Context, itemID int64) (bool, error) {
	if d.ledger != nil {
		entry, err := d.ledger.Get(ctx, itemID)
		switch {
		case err == nil && entry.Handled():
			d.logger.Debug("Ledger shows item already handled",
				zap.Int64("item_id", itemID),
				zap.String("outcome", string(entry.Outcome)))
			return true, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			d.logger.Warn("Ledger lookup failed", zap.Int64("item_id", itemID), zap.Error(err))
		}
	}

	if err := d.throttle.Wait(ctx); err != nil {
		return false, err
	}

	comments, err := d.workspace.ListComments(ctx, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to list comments for item %d: %w", itemID, err)
	}

	return HasRealReply(comments, d.markers), nil
}
