package core

import (
	"fmt"
	"strings"
	"time"
)

// InboundMessage represents one inbound email stored as a workspace item
type InboundMessage struct {
	ItemID    int64
	FromName  string
	FromEmail string
	Subject   string
	Body      string
	Status    string
	// URL links to the item in the workspace UI
	URL       string
	CreatedAt time.Time
}

// Label is the three-way triage decision returned by the classifier
type Label string

const (
	LabelAnswerable Label = "ANSWERABLE"
	LabelNeedsHuman Label = "NEEDS_HUMAN"
	LabelSkip       Label = "SKIP"
)

// ParseLabel normalizes a label string from a model response
func ParseLabel(s string) (Label, bool) {
	switch Label(strings.ToUpper(strings.TrimSpace(s))) {
	case LabelAnswerable:
		return LabelAnswerable, true
	case LabelNeedsHuman:
		return LabelNeedsHuman, true
	case LabelSkip:
		return LabelSkip, true
	default:
		return "", false
	}
}

// ClassificationResult represents the classifier's decision for one message
type ClassificationResult struct {
	Label      Label
	Confidence float64
	Reason     string
	// ReplyHTML is only set for LabelAnswerable
	ReplyHTML  string
	ModelUsed  string
	AnalyzedAt time.Time
}

// HasReply reports whether the result carries a drafted reply body
func (r *ClassificationResult) HasReply() bool {
	return r.Label == LabelAnswerable && strings.TrimSpace(r.ReplyHTML) != ""
}

// RunMode selects what the dispatcher is allowed to do
type RunMode int

const (
	ModeDraft RunMode = iota
	ModeDryRun
	ModeSend
)

// ResolveRunMode picks the mode from the CLI flags; dry-run wins over send
func ResolveRunMode(send, dryRun bool) RunMode {
	switch {
	case dryRun:
		return ModeDryRun
	case send:
		return ModeSend
	default:
		return ModeDraft
	}
}

func (m RunMode) String() string {
	switch m {
	case ModeDryRun:
		return "dry-run"
	case ModeSend:
		return "send"
	case ModeDraft:
		return "draft"
	default:
		return fmt.Sprintf("RunMode(%d)", int(m))
	}
}

// Comment is one entry in an item's comment thread
type Comment struct {
	ID        int64
	Value     string
	CreatedAt time.Time
}

// Outcome is what the dispatcher did with one message
type Outcome string

const (
	OutcomeNone      Outcome = "none"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFlagged   Outcome = "flagged"
	OutcomeDrafted   Outcome = "drafted"
	OutcomePrinted   Outcome = "printed"
	OutcomeSent      Outcome = "sent"
	OutcomeSendError Outcome = "send_error"
)

// LedgerEntry records a dispatch outcome for an item
type LedgerEntry struct {
	ItemID     int64
	Label      Label
	Outcome    Outcome
	RunID      string
	RecordedAt time.Time
	ExpiresAt  time.Time
}

// Handled reports whether the outcome left a reply or comment on the item
func (e *LedgerEntry) Handled() bool {
	switch e.Outcome {
	case OutcomeSent, OutcomeDrafted, OutcomeFlagged:
		return true
	default:
		return false
	}
}

// RunStats holds the counters reported in the end-of-run summary
type RunStats struct {
	Processed  int
	Answerable int
	NeedsHuman int
	Skipped    int
	Sent       int
	Errors     int
}

// Count bumps the classification counter for label
func (s *RunStats) Count(label Label) {
	switch label {
	case LabelAnswerable:
		s.Answerable++
	case LabelNeedsHuman:
		s.NeedsHuman++
	case LabelSkip:
		s.Skipped++
	}
}
