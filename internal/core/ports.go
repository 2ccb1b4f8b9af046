package core

import (
	"context"
	"errors"
	"iter"
	"time"
)

// ErrNotFound is returned by a Ledger when an item has no recorded outcome
var ErrNotFound = errors.New("ledger entry not found")

// ErrMailAuth is wrapped by a Mailer when the relay rejects its credentials.
// Later sends would fail the same way, so the run stops.
var ErrMailAuth = errors.New("mail relay authentication failed")

// LLMClient defines the interface for interacting with hosted language models
type LLMClient interface {
	// Complete sends a system instruction and a user message and returns the
	// model's raw text response
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName identifies the model for logs and results
	ModelName() string
}

// MessageSource fetches inbound messages from the workspace
type MessageSource interface {
	// Messages yields messages created at or after since, newest first. The
	// sequence is finite and not restartable. A non-nil error ends it.
	Messages(ctx context.Context, since time.Time) iter.Seq2[*InboundMessage, error]
}

// Workspace defines the comment operations on workspace items
type Workspace interface {
	// ListComments returns the comment thread attached to an item
	ListComments(ctx context.Context, itemID int64) ([]Comment, error)

	// AddComment attaches a new comment to an item
	AddComment(ctx context.Context, itemID int64, text string) error
}

// OutboundMail is a reply ready to hand to the mail relay
type OutboundMail struct {
	To       string
	Subject  string
	BodyHTML string
}

// Mailer defines the interface for the outbound mail relay
type Mailer interface {
	Send(ctx context.Context, mail *OutboundMail) error
}

// Ledger records dispatch outcomes per item
type Ledger interface {
	// Get retrieves the recorded outcome for an item, or ErrNotFound
	Get(ctx context.Context, itemID int64) (*LedgerEntry, error)

	// Record stores an outcome
	Record(ctx context.Context, entry *LedgerEntry) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// Throttle spaces out remote calls
type Throttle interface {
	Wait(ctx context.Context) error
}
