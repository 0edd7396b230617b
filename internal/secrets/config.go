package secrets

import (
	"fmt"
	"regexp"
	"strings"
)

// Config configures the scrubber.
type Config struct {
	// Enabled controls whether scrubbing is active (default: true)
	Enabled bool `koanf:"enabled"`

	// Rules are applied in order; earlier rules see the raw content, later
	// rules see it with earlier redactions applied.
	Rules []Rule `koanf:"rules"`

	// AllowList contains patterns whose matches are left in place.
	AllowList []string `koanf:"allow_list"`
}

// Rule defines a secret detection rule.
type Rule struct {
	ID          string `koanf:"id"`
	Description string `koanf:"description"`
	Pattern     string `koanf:"pattern"`

	// Keywords gate the rule: when set, at least one must occur
	// (case-insensitive) in the content for the pattern to run.
	Keywords []string `koanf:"keywords"`

	// Replacement is a regexp expansion template ($1 refers to the first
	// group). Empty yields [REDACTED:<ID in upper snake case>].
	Replacement string `koanf:"replacement"`

	Severity string `koanf:"severity"`
}

type compiledRule struct {
	Rule
	pattern  *regexp.Regexp
	keywords []string
}

// DefaultConfig returns a configuration with the built-in rules.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Rules:   DefaultRules(),
	}
}

// compile validates the configuration and compiles its patterns.
func (c *Config) compile() ([]*compiledRule, []*regexp.Regexp, error) {
	rules := make([]*compiledRule, 0, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return nil, nil, fmt.Errorf("rule %d: ID is required", i)
		}
		if rule.Pattern == "" {
			return nil, nil, fmt.Errorf("rule %s: pattern is required", rule.ID)
		}
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
		}
		if rule.Replacement == "" {
			rule.Replacement = defaultReplacement(rule.ID)
		}

		keywords := make([]string, len(rule.Keywords))
		for j, kw := range rule.Keywords {
			keywords[j] = strings.ToLower(kw)
		}
		rules = append(rules, &compiledRule{Rule: rule, pattern: pattern, keywords: keywords})
	}

	allow := make([]*regexp.Regexp, 0, len(c.AllowList))
	for i, pattern := range c.AllowList {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("allow_list %d: invalid pattern: %w", i, err)
		}
		allow = append(allow, re)
	}
	return rules, allow, nil
}

func defaultReplacement(id string) string {
	return "[REDACTED:" + strings.ToUpper(strings.ReplaceAll(id, "-", "_")) + "]"
}
