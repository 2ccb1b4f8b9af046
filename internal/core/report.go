package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/mikey/makerlab-autoreply/internal/utils"
	"go.uber.org/zap"
)

const createdOnDisplayForm = "2006-01-02 15:04:05"

var (
	composeLinkPattern = regexp.MustCompile(`http://www\.globimail\.com/l2/NEW\.[^")\s]+`)
	forwardAddrPattern = regexp.MustCompile(`([A-Z0-9.]+@globimail\.com)`)
)

// UnrepliedEntry is one row of the unreplied-email report
type UnrepliedEntry struct {
	ItemID      int64  `json:"item_id"`
	From        string `json:"from"`
	Subject     string `json:"subject"`
	BodyPreview string `json:"body_preview"`
	Status      string `json:"status"`
	Created     string `json:"created"`
	ComposeLink string `json:"compose_link,omitempty"`
	FwdAddress  string `json:"fwd_address,omitempty"`
	URL         string `json:"podio_url"`
}

// Reporter lists keyword-matching messages that still lack a real reply
type Reporter struct {
	source    MessageSource
	workspace Workspace
	markers   []string
	keywords  []string
	throttle  Throttle
	out       io.Writer
	logger    *zap.Logger
}

// NewReporter creates a new unreplied-email reporter. An empty keyword list
// matches every message.
func NewReporter(source MessageSource, workspace Workspace, markers, keywords []string, throttle Throttle, out io.Writer, logger *zap.Logger) *Reporter {
	if out == nil {
		out = io.Discard
	}
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &Reporter{
		source:    source,
		workspace: workspace,
		markers:   markers,
		keywords:  lowered,
		throttle:  throttle,
		out:       out,
		logger:    logger,
	}
}

// MatchesKeywords reports whether subject or body mentions any keyword.
// keywords must already be lower case.
func MatchesKeywords(subject, body string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	text := strings.ToLower(utils.PlainText(subject + " " + body))
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// ExtractComposeLink returns the first GlobiMail compose link found in comments
func ExtractComposeLink(comments []Comment) string {
	for _, c := range comments {
		if m := composeLinkPattern.FindString(c.Value); m != "" {
			return m
		}
	}
	return ""
}

// ExtractForwardAddress returns the first GlobiMail forwarding address found in comments
func ExtractForwardAddress(comments []Comment) string {
	for _, c := range comments {
		if m := forwardAddrPattern.FindStringSubmatch(c.Value); m != nil {
			return m[1]
		}
	}
	return ""
}

// Scan walks messages created after since and returns the unreplied ones
// matching the keywords, along with the number of messages examined.
func (r *Reporter) Scan(ctx context.Context, since time.Time) ([]UnrepliedEntry, int, error) {
	var (
		entries []UnrepliedEntry
		scanned int
		seen    = make(map[int64]struct{})
	)

	for msg, err := range r.source.Messages(ctx, since) {
		if err != nil {
			return entries, scanned, err
		}
		if _, dup := seen[msg.ItemID]; dup {
			continue
		}
		seen[msg.ItemID] = struct{}{}
		scanned++

		if !MatchesKeywords(msg.Subject, msg.Body, r.keywords) {
			continue
		}

		if err := r.throttle.Wait(ctx); err != nil {
			return entries, scanned, err
		}
		comments, err := r.workspace.ListComments(ctx, msg.ItemID)
		if err != nil {
			return entries, scanned, fmt.Errorf("failed to list comments for item %d: %w", msg.ItemID, err)
		}

		if HasRealReply(comments, r.markers) {
			fmt.Fprintf(r.out, "  [REPLIED] %d: %s (from: %s)\n", msg.ItemID, truncateRunes(msg.Subject, 60), sender(msg))
			continue
		}

		entries = append(entries, UnrepliedEntry{
			ItemID:      msg.ItemID,
			From:        sender(msg),
			Subject:     msg.Subject,
			BodyPreview: truncateRunes(msg.Body, 300),
			Status:      msg.Status,
			Created:     msg.CreatedAt.Format(createdOnDisplayForm),
			ComposeLink: ExtractComposeLink(comments),
			FwdAddress:  ExtractForwardAddress(comments),
			URL:         msg.URL,
		})
		fmt.Fprintf(r.out, "  [UNREPLIED] %d: %s (from: %s)\n", msg.ItemID, truncateRunes(msg.Subject, 60), sender(msg))
	}

	r.logger.Info("Report scan complete",
		zap.Int("scanned", scanned),
		zap.Int("unreplied", len(entries)))
	return entries, scanned, nil
}

// PrintReport writes a human-readable listing of entries
func PrintReport(w io.Writer, scanned int, entries []UnrepliedEntry) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\nScanned: %d emails\nUnreplied emails: %d\n%s\n\n", rule, scanned, len(entries), rule)
	for i, e := range entries {
		fmt.Fprintf(w, "%d. [%d] From: %s\n", i+1, e.ItemID, e.From)
		fmt.Fprintf(w, "   Subject: %s\n", e.Subject)
		fmt.Fprintf(w, "   Status: %s\n", e.Status)
		fmt.Fprintf(w, "   Date: %s\n", e.Created)
		if e.ComposeLink != "" {
			fmt.Fprintf(w, "   Compose: %s\n", e.ComposeLink)
		}
		fmt.Fprintf(w, "   Body: %s...\n\n", truncateRunes(e.BodyPreview, 150))
	}
}

// WriteReport encodes entries as indented JSON
func WriteReport(w io.Writer, entries []UnrepliedEntry) error {
	if entries == nil {
		entries = []UnrepliedEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

func sender(msg *InboundMessage) string {
	if msg.FromName != "" {
		return msg.FromName
	}
	return msg.FromEmail
}
