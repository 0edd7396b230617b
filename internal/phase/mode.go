package phase

import (
	"fmt"
	"sort"
	"strings"
)

// Mode is the qualitative lens attached to a phase's generation.
type Mode string

const (
	ModeExploration         Mode = "exploration"
	ModeConvergence         Mode = "convergence"
	ModeBrandArchaeology    Mode = "brand_archaeology"
	ModePrototyping         Mode = "prototyping"
	ModeEthicalGate         Mode = "ethical_gate"
	ModeRefusalRegister     Mode = "refusal_register"
	ModeNarrativeSynthesis  Mode = "narrative_synthesis"
	ModeCommunityCocreation Mode = "community_cocreation"
	ModeGuardian            Mode = "guardian"
	ModeCognitiveSparring   Mode = "cognitive_sparring"
	ModeSensemaking         Mode = "sensemaking"
	ModeSlowdown            Mode = "slowdown"
	ModeRefusal             Mode = "refusal"
)

var modes = map[Mode]struct{}{
	ModeExploration:         {},
	ModeConvergence:         {},
	ModeBrandArchaeology:    {},
	ModePrototyping:         {},
	ModeEthicalGate:         {},
	ModeRefusalRegister:     {},
	ModeNarrativeSynthesis:  {},
	ModeCommunityCocreation: {},
	ModeGuardian:            {},
	ModeCognitiveSparring:   {},
	ModeSensemaking:         {},
	ModeSlowdown:            {},
	ModeRefusal:             {},
}

var defaultModes = map[Phase]Mode{
	Phase0:   ModeSensemaking,
	Phase1:   ModeExploration,
	Phase1_5: ModeConvergence,
	Phase2:   ModeBrandArchaeology,
	Phase3:   ModePrototyping,
	Phase4:   ModeNarrativeSynthesis,
	Phase5:   ModeCommunityCocreation,
	Phase6:   ModeGuardian,
}

// Modes returns every canonical mode, sorted.
func Modes() []Mode {
	out := make([]Mode, 0, len(modes))
	for m := range modes {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseMode converts a raw token into a canonical Mode.
func ParseMode(raw string) (Mode, error) {
	m := Mode(strings.TrimSpace(raw))
	if !m.Valid() {
		return "", fmt.Errorf("%w `%s`", ErrUnknownMode, raw)
	}
	return m, nil
}

// Valid reports whether m is in the canonical mode enum.
func (m Mode) Valid() bool {
	_, ok := modes[m]
	return ok
}

// String implements fmt.Stringer.
func (m Mode) String() string {
	return string(m)
}

// DefaultMode returns the mode used when a step does not name one.
func (p Phase) DefaultMode() Mode {
	return defaultModes[p]
}

// ForbiddenPhrases lists prescriptive phrases the assistant must never use.
// Matching is case-insensitive.
func ForbiddenPhrases() []string {
	return []string{
		"you should",
		"the best choice",
		"the correct option",
		"we recommend",
		"choose x",
	}
}
