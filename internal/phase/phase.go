// Package phase holds the canonical Specula methodology table: the phase
// sequence, successor map, prerequisites, modes and forbidden phrases.
package phase

import (
	"errors"
	"fmt"
	"strings"
)

// Phase is one of the eight canonical methodology stages.
type Phase string

const (
	// Phase0 activates the project and sets the decision authority.
	Phase0 Phase = "0"

	// Phase1 opens divergent scenarios.
	Phase1 Phase = "1"

	// Phase1_5 maps competitive futures and white spaces.
	Phase1_5 Phase = "1.5"

	// Phase2 excavates the brand DNA.
	Phase2 Phase = "2"

	// Phase3 prototypes against the ethical gate.
	Phase3 Phase = "3"

	// Phase4 assembles the narrative system.
	Phase4 Phase = "4"

	// Phase5 runs community co-creation.
	Phase5 Phase = "5"

	// Phase6 guards the validated commitments against live signals.
	Phase6 Phase = "6"
)

var (
	// ErrUnknownPhase is returned when a token is not a canonical phase.
	ErrUnknownPhase = errors.New("invalid phase")

	// ErrUnknownMode is returned when a token is not a canonical mode.
	ErrUnknownMode = errors.New("invalid mode")
)

var sequence = []Phase{Phase0, Phase1, Phase1_5, Phase2, Phase3, Phase4, Phase5, Phase6}

var next = map[Phase]Phase{
	Phase0:   Phase1,
	Phase1:   Phase1_5,
	Phase1_5: Phase2,
	Phase2:   Phase3,
	Phase3:   Phase4,
	Phase4:   Phase5,
	Phase5:   Phase6,
	Phase6:   Phase1,
}

var prerequisites = map[Phase][]Phase{
	Phase0:   {},
	Phase1:   {Phase0},
	Phase1_5: {Phase1},
	Phase2:   {Phase1, Phase1_5},
	Phase3:   {Phase2},
	Phase4:   {Phase2, Phase3},
	Phase5:   {Phase4},
	Phase6:   {Phase5},
}

// All returns the phases in methodology order.
func All() []Phase {
	out := make([]Phase, len(sequence))
	copy(out, sequence)
	return out
}

// Parse converts a raw token into a Phase. Surrounding whitespace is ignored.
func Parse(raw string) (Phase, error) {
	p := Phase(strings.TrimSpace(raw))
	if !p.Valid() {
		return "", fmt.Errorf("%w `%s`", ErrUnknownPhase, raw)
	}
	return p, nil
}

// Valid reports whether p is a canonical phase token.
func (p Phase) Valid() bool {
	_, ok := next[p]
	return ok
}

// String implements fmt.Stringer.
func (p Phase) String() string {
	return string(p)
}

// Next returns the successor of p. Phase 6 loops back to phase 1.
func (p Phase) Next() (Phase, error) {
	n, ok := next[p]
	if !ok {
		return "", fmt.Errorf("%w `%s`", ErrUnknownPhase, p)
	}
	return n, nil
}

// Prerequisites returns the phases that must hold a validated artifact
// before p can be generated.
func (p Phase) Prerequisites() []Phase {
	req := prerequisites[p]
	out := make([]Phase, len(req))
	copy(out, req)
	return out
}

// Order returns the position of p in the methodology sequence, or
// len(All()) for unknown tokens so they sort last.
func (p Phase) Order() int {
	for i, candidate := range sequence {
		if candidate == p {
			return i
		}
	}
	return len(sequence)
}

// Tokens renders the canonical sequence as a tuple-like string, used in
// validation messages.
func Tokens() string {
	quoted := make([]string, len(sequence))
	for i, p := range sequence {
		quoted[i] = "'" + string(p) + "'"
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}
