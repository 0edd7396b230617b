// Package policy checks freeform assistant turns against the Specula
// formatting and non-prescriptive content rules.
package policy

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/specula/internal/phase"
)

// MaxLinesBeforeQuestion is the highest zero-based index the question line
// may sit at.
const MaxLinesBeforeQuestion = 6

var headerPattern = regexp.MustCompile(`^MODE:\s+([a-z_]+)\s+\|\s+PHASE:\s+(0|1|1\.5|2|3|4|5|6)$`)

// Header renders the canonical first line of an assistant turn.
func Header(mode phase.Mode, p phase.Phase) string {
	return fmt.Sprintf("MODE: %s | PHASE: %s", mode, p)
}

// HasHeaderPrefix reports whether text already opens with a MODE marker.
func HasHeaderPrefix(text string) bool {
	return strings.HasPrefix(text, "MODE: ")
}

// ValidateAssistantText returns every rule the text breaks. An empty result
// means the text is acceptable.
func ValidateAssistantText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{"assistant text is empty"}
	}

	var violations []string
	lines := splitLines(strings.TrimSpace(text))

	if !headerPattern.MatchString(strings.TrimSpace(lines[0])) {
		violations = append(violations, "first line must match `MODE: <mode> | PHASE: <phase>`")
	}

	if n := strings.Count(text, "?"); n != 1 {
		violations = append(violations, fmt.Sprintf("assistant text must contain exactly one question mark; found %d", n))
	}

	questionLine := -1
	for i, line := range lines {
		if strings.Contains(line, "?") {
			questionLine = i
			break
		}
	}
	switch {
	case questionLine < 0:
		violations = append(violations, "assistant text must include one explicit question line")
	case questionLine > MaxLinesBeforeQuestion:
		violations = append(violations, "assistant text has more than 6 lines before the question line")
	}

	lowered := strings.ToLower(text)
	for _, p := range phase.ForbiddenPhrases() {
		if strings.Contains(lowered, p) {
			violations = append(violations, fmt.Sprintf("forbidden prescriptive phrase detected: `%s`", p))
		}
	}

	if strings.Contains(lowered, "decision: true") || strings.Contains(lowered, "decision=true") {
		violations = append(violations, "forbidden decision field detected in assistant text")
	}

	return violations
}

// splitLines breaks text on every universal line boundary: \n, \r\n,
// lone \r, \v, \f, the file/group/record separators, NEL and the Unicode
// line and paragraph separators.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var lines []string
	start := 0
	for i, r := range text {
		if isLineBreak(r) {
			lines = append(lines, text[start:i])
			start = i + utf8.RuneLen(r)
		}
	}
	return append(lines, text[start:])
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
