package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/specula/internal/phase"
)

func containsViolation(violations []string, fragment string) bool {
	for _, v := range violations {
		if strings.Contains(v, fragment) {
			return true
		}
	}
	return false
}

func TestValidateAssistantText_Valid(t *testing.T) {
	text := "MODE: sensemaking | PHASE: 0\nProject context is initialized.\nWho validates phase outputs?"
	assert.Empty(t, ValidateAssistantText(text))
}

func TestValidateAssistantText_Rules(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		contains []string
	}{
		{
			name:     "empty",
			text:     "  \n\t ",
			contains: []string{"assistant text is empty"},
		},
		{
			name:     "bad header",
			text:     "mode=sensemaking phase=0\nLine\nWhat is the validator role?",
			contains: []string{"first line must match"},
		},
		{
			name:     "header with unknown phase token",
			text:     "MODE: sensemaking | PHASE: 7\nWhat is the validator role?",
			contains: []string{"first line must match"},
		},
		{
			name:     "two question marks",
			text:     "MODE: sensemaking | PHASE: 0\nLine\nQuestion one?\nQuestion two?",
			contains: []string{"exactly one question mark; found 2"},
		},
		{
			name:     "no question",
			text:     "MODE: sensemaking | PHASE: 0\nLine without a question.",
			contains: []string{"exactly one question mark; found 0", "one explicit question line"},
		},
		{
			name: "question too late",
			text: strings.Join([]string{
				"MODE: sensemaking | PHASE: 0",
				"1", "2", "3", "4", "5", "6",
				"What is the validator role?",
			}, "\n"),
			contains: []string{"more than 6 lines"},
		},
		{
			name:     "prescriptive phrase",
			text:     "MODE: exploration | PHASE: 1\nWe Recommend this path.\nWhich one first?",
			contains: []string{"forbidden prescriptive phrase detected: `we recommend`"},
		},
		{
			name:     "decision leakage",
			text:     "MODE: exploration | PHASE: 1\nDecision: TRUE\nWhich one first?",
			contains: []string{"forbidden decision field detected"},
		},
		{
			name:     "decision leakage compact",
			text:     "MODE: exploration | PHASE: 1\ndecision=true\nWhich one first?",
			contains: []string{"forbidden decision field detected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := ValidateAssistantText(tt.text)
			for _, fragment := range tt.contains {
				assert.True(t, containsViolation(violations, fragment), "expected %q in %v", fragment, violations)
			}
		})
	}
}

func TestValidateAssistantText_QuestionAtLimit(t *testing.T) {
	text := strings.Join([]string{
		"MODE: sensemaking | PHASE: 0",
		"1", "2", "3", "4", "5",
		"What is the validator role?",
	}, "\n")
	assert.Empty(t, ValidateAssistantText(text))
}

func TestValidateAssistantText_CollectsAll(t *testing.T) {
	text := "hello\nyou should pick\nwhy? why?"
	violations := ValidateAssistantText(text)
	assert.Len(t, violations, 3)
}

func TestValidateAssistantText_EmptyShortCircuits(t *testing.T) {
	assert.Equal(t, []string{"assistant text is empty"}, ValidateAssistantText(""))
}

func TestValidateAssistantText_LeadingBlankLines(t *testing.T) {
	text := "\n\nMODE: guardian | PHASE: 6\nSignals compared.\nWhich drift signal matters?\n"
	assert.Empty(t, ValidateAssistantText(text))
}

func TestValidateAssistantText_CRLF(t *testing.T) {
	text := "MODE: guardian | PHASE: 6\r\nSignals compared.\r\nWhich drift signal matters?"
	assert.Empty(t, ValidateAssistantText(text))
}

func TestValidateAssistantText_UnicodeLineBreaks(t *testing.T) {
	text := "MODE: guardian | PHASE: 6\u2028a\u2029b\vc\fd\x1ce\u0085f\nWhich drift signal matters?"
	assert.True(t, containsViolation(ValidateAssistantText(text), "more than 6 lines before the question line"))

	text = "MODE: guardian | PHASE: 6\u2028Signals compared.\x1eWhich drift signal matters?"
	assert.Empty(t, ValidateAssistantText(text))
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "", "b", "c", "d"}, splitLines("a\r\n\rb\x1dc\u2029d"))
	assert.Equal(t, []string{"caf\u00e9", "x"}, splitLines("caf\u00e9\x1ex"))
}

func TestHeader(t *testing.T) {
	assert.Equal(t, "MODE: convergence | PHASE: 1.5", Header(phase.ModeConvergence, phase.Phase1_5))
	assert.True(t, HasHeaderPrefix(Header(phase.ModeGuardian, phase.Phase6)))
	assert.False(t, HasHeaderPrefix("mode: guardian"))
}
