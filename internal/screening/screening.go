package screening

import (
	"strings"

	"go.uber.org/zap"
)

// Reasons a sender is screened out before classification
const (
	ReasonNoAddress     = "no sender address"
	ReasonNoreply       = "automated sender address"
	ReasonBlockedDomain = "blocked sender domain"
)

// Checker decides which senders never reach the classifier
type Checker struct {
	patterns []string
	domains  []string
	logger   *zap.Logger
}

// NewChecker creates a new sender checker
func NewChecker(noreplyPatterns []string, blockedDomains []string, logger *zap.Logger) *Checker {
	c := &Checker{
		patterns: normalize(noreplyPatterns),
		domains:  normalize(blockedDomains),
		logger:   logger,
	}

	if len(c.domains) > 0 && logger != nil {
		logger.Info("Initialized sender screening", zap.Strings("blocked_domains", c.domains))
	}

	return c
}

func normalize(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Screen returns a non-empty reason when the sender must be excluded
func (c *Checker) Screen(from string) string {
	addr := strings.ToLower(strings.TrimSpace(from))
	if addr == "" {
		return ReasonNoAddress
	}

	for _, p := range c.patterns {
		if strings.Contains(addr, p) {
			return ReasonNoreply
		}
	}

	if len(c.domains) == 0 {
		return ""
	}

	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return ""
	}
	domain := addr[at+1:]
	for _, blocked := range c.domains {
		if domain == blocked || strings.HasSuffix(domain, "."+blocked) {
			if c.logger != nil {
				c.logger.Debug("Sender domain is blocked",
					zap.String("domain", domain),
					zap.String("email", from))
			}
			return ReasonBlockedDomain
		}
	}

	return ""
}

// Allowed reports whether the sender may be processed
func (c *Checker) Allowed(from string) bool {
	return c.Screen(from) == ""
}
