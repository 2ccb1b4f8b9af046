// Package knowledge assembles the website content the classifier may quote
// from into a single context string.
package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/mikey/makerlab-autoreply/internal/config"
	"github.com/mikey/makerlab-autoreply/internal/utils"
	"go.uber.org/zap"
)

// Site files read relative to the site root
const (
	LLMsFile     = "llms.txt"
	SiteInfoFile = "api/site-info.json"
	SummerPage   = "summer.html"
)

const summerUnavailable = "Summer camp details not available."

type siteInfo struct {
	CommonQuestions []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
		URL      string `json:"url"`
	} `json:"commonQuestions"`
}

// Builder reads site content from a file system rooted at the site checkout
type Builder struct {
	site            fs.FS
	siteURL         string
	summerPageChars int
	facts           *Facts
	text            *utils.TextProcessor
	logger          *zap.Logger
}

// NewBuilder creates a context builder over site
func NewBuilder(site fs.FS, siteURL string, summerPageChars int, facts *Facts, text *utils.TextProcessor, logger *zap.Logger) *Builder {
	return &Builder{
		site:            site,
		siteURL:         strings.TrimRight(siteURL, "/"),
		summerPageChars: summerPageChars,
		facts:           facts,
		text:            text,
		logger:          logger,
	}
}

// NewBuilderFromConfig roots the builder at the configured site checkout and
// loads the configured facts
func NewBuilderFromConfig(cfg config.KnowledgeConfig, text *utils.TextProcessor, logger *zap.Logger) (*Builder, error) {
	facts, err := LoadFacts(cfg.FactsFile)
	if err != nil {
		return nil, err
	}
	return NewBuilder(os.DirFS(cfg.SiteRoot), cfg.SiteURL, cfg.SummerPageChars, facts, text, logger), nil
}

// Build returns the full context. Missing site files leave their section
// empty; only unreadable files are errors.
func (b *Builder) Build() (string, error) {
	llms, err := b.load(LLMsFile)
	if err != nil {
		return "", err
	}
	qa, err := b.commonQuestions()
	if err != nil {
		return "", err
	}
	summer, err := b.summerDetails()
	if err != nil {
		return "", err
	}

	var s strings.Builder
	s.WriteString("=== ILLINOIS MAKERLAB WEBSITE CONTENT ===\n\n")
	s.WriteString(llms)
	s.WriteString("\n\n")
	if b.facts != nil {
		s.WriteString(b.facts.Section())
		s.WriteString("\n")
	}
	s.WriteString("=== SUMMER CAMPS PAGE ===\n\n")
	s.WriteString(summer)
	s.WriteString("\n\n=== COMMON Q&A ===\n\n")
	s.WriteString(qa)
	s.WriteString("\n\n")
	if b.facts != nil {
		s.WriteString(b.facts.KeyURLSection())
	}

	ctx := s.String()
	b.logger.Info("Loaded website context", zap.Int("chars", len([]rune(ctx))))
	return ctx, nil
}

func (b *Builder) load(name string) (string, error) {
	data, err := fs.ReadFile(b.site, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			b.logger.Warn("Site file not found", zap.String("file", name))
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return string(data), nil
}

func (b *Builder) commonQuestions() (string, error) {
	raw, err := b.load(SiteInfoFile)
	if err != nil || raw == "" {
		return "", err
	}

	var info siteInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		b.logger.Warn("Ignoring malformed site info", zap.Error(err))
		return "", nil
	}

	lines := make([]string, 0, len(info.CommonQuestions))
	for _, q := range info.CommonQuestions {
		lines = append(lines, fmt.Sprintf("Q: %s\nA: %s (See: %s%s)", q.Question, q.Answer, b.siteURL, q.URL))
	}
	return strings.Join(lines, "\n"), nil
}

func (b *Builder) summerDetails() (string, error) {
	page, err := b.load(SummerPage)
	if err != nil {
		return "", err
	}
	if page == "" {
		return summerUnavailable, nil
	}
	return b.text.TruncateChars(b.text.StripHTML(page), b.summerPageChars), nil
}
