package secrets

import (
	"regexp"
	"strings"
)

// Scrubber detects and redacts secrets from content.
type Scrubber interface {
	// Scrub redacts secrets from the content.
	Scrub(content string) *Result

	// Check detects secrets without redacting.
	Check(content string) *Result

	// IsEnabled returns whether scrubbing is enabled.
	IsEnabled() bool
}

// scrubber applies compiled rules in order. It is immutable after New and
// safe for concurrent use.
type scrubber struct {
	rules []*compiledRule
	allow []*regexp.Regexp
}

// New creates a Scrubber. A nil config uses DefaultConfig; a disabled one
// yields a NoopScrubber.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Enabled {
		return NoopScrubber{}, nil
	}

	rules, allow, err := cfg.compile()
	if err != nil {
		return nil, err
	}
	return &scrubber{rules: rules, allow: allow}, nil
}

// MustNew creates a Scrubber, panicking on error.
func MustNew(cfg *Config) Scrubber {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *scrubber) Scrub(content string) *Result {
	result := newResult(content)
	lower := strings.ToLower(content)

	scrubbed := content
	for _, rule := range s.rules {
		if !rule.applies(lower) {
			continue
		}
		scrubbed = s.apply(rule, scrubbed, result)
	}
	result.Scrubbed = scrubbed
	return result
}

func (s *scrubber) Check(content string) *Result {
	result := s.Scrub(content)
	result.Scrubbed = content
	return result
}

func (s *scrubber) IsEnabled() bool {
	return true
}

func (r *compiledRule) applies(lowerContent string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if strings.Contains(lowerContent, kw) {
			return true
		}
	}
	return false
}

// apply replaces every non-allowed match of rule in content and records a
// finding per replacement.
func (s *scrubber) apply(rule *compiledRule, content string, result *Result) string {
	matches := rule.pattern.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content
	}

	var b strings.Builder
	b.Grow(len(content))
	last := 0
	for _, m := range matches {
		if s.isAllowed(content[m[0]:m[1]]) {
			continue
		}
		b.WriteString(content[last:m[0]])
		b.Write(rule.pattern.ExpandString(nil, rule.Replacement, content, m))
		last = m[1]

		result.add(Finding{
			RuleID:      rule.ID,
			Description: rule.Description,
			Severity:    rule.Severity,
			Line:        strings.Count(content[:m[0]], "\n") + 1,
		})
	}
	b.WriteString(content[last:])
	return b.String()
}

func (s *scrubber) isAllowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

// NoopScrubber returns content unchanged.
type NoopScrubber struct{}

func (NoopScrubber) Scrub(content string) *Result { return newResult(content) }

func (NoopScrubber) Check(content string) *Result { return newResult(content) }

func (NoopScrubber) IsEnabled() bool { return false }

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = NoopScrubber{}
)
