package secrets

import (
	"fmt"
	"sort"
	"strings"
)

// Result contains the scrubbing result.
type Result struct {
	// Original is the input content.
	Original string `json:"-"`

	// Scrubbed is the content with secrets redacted.
	Scrubbed string `json:"scrubbed"`

	// Findings never carry the matched value.
	Findings []Finding `json:"findings,omitempty"`

	// ByRule maps rule IDs to finding counts.
	ByRule map[string]int `json:"by_rule,omitempty"`
}

// Finding represents a detected secret.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Severity    string `json:"severity"`

	// Line is 1-indexed.
	Line int `json:"line"`
}

func newResult(content string) *Result {
	return &Result{
		Original: content,
		Scrubbed: content,
		Findings: []Finding{},
		ByRule:   map[string]int{},
	}
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	r.ByRule[f.RuleID]++
}

// HasFindings returns true if any secrets were found.
func (r *Result) HasFindings() bool {
	return len(r.Findings) > 0
}

// RuleIDs returns the matched rule IDs in sorted order.
func (r *Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.ByRule))
	for id := range r.ByRule {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Summary returns a one-line description suitable for logs.
func (r *Result) Summary() string {
	if !r.HasFindings() {
		return "no secrets detected"
	}
	parts := make([]string, 0, len(r.ByRule))
	for _, id := range r.RuleIDs() {
		parts = append(parts, fmt.Sprintf("%s=%d", id, r.ByRule[id]))
	}
	return fmt.Sprintf("%d secrets redacted (%s)", len(r.Findings), strings.Join(parts, ", "))
}
