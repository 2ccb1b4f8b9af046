package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TextProcessor provides utilities for processing text
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateChars cuts text to at most maxChars characters
func (tp *TextProcessor) TruncateChars(text string, maxChars int) string {
	n := utf8.RuneCountInString(text)
	if maxChars <= 0 || n <= maxChars {
		return text
	}

	truncated := string([]rune(text)[:maxChars])
	tp.logger.Debug("Text truncated",
		zap.Int("original_chars", n),
		zap.Int("max_chars", maxChars))

	return truncated
}

// SanitizeUTF8 drops invalid UTF-8 sequences
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// CollapseWhitespace replaces runs of whitespace with a single space
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// PlainText returns the visible text of an HTML fragment or document.
// Script and style contents are dropped and whitespace is collapsed.
func PlainText(markup string) string {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		// html.Parse only fails on reader errors
		return CollapseWhitespace(markup)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return CollapseWhitespace(b.String())
}

// StripHTML is PlainText with debug logging of the size reduction
func (tp *TextProcessor) StripHTML(markup string) string {
	text := PlainText(markup)
	if len(markup) > 0 {
		tp.logger.Debug("Stripped markup",
			zap.Int("markup_size", len(markup)),
			zap.Int("text_size", len(text)))
	}
	return text
}

// ProcessText strips markup, sanitizes and truncates to maxChars characters
func (tp *TextProcessor) ProcessText(text string, maxChars int) string {
	return tp.TruncateChars(tp.SanitizeUTF8(tp.StripHTML(text)), maxChars)
}
