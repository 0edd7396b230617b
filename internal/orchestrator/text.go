package orchestrator

import (
	"strings"

	"github.com/fyrsmithlabs/specula/internal/phase"
	"github.com/fyrsmithlabs/specula/internal/policy"
)

var fallbackFraming = map[phase.Phase]string{
	phase.Phase0:   "Project context is initialized and phase entry is active.",
	phase.Phase1:   "I generated a first divergence seed to open alternatives.",
	phase.Phase1_5: "I mapped an initial competitive-futures hypothesis.",
	phase.Phase2:   "I drafted a first DNA structure from the available evidence.",
	phase.Phase3:   "I prepared a prototype draft with an explicit ethical check.",
	phase.Phase4:   "I assembled a first narrative system draft for stress testing.",
	phase.Phase5:   "I structured consensus and divergence signals from community input.",
	phase.Phase6:   "I compared current signals against scenarios and identity constraints.",
}

var fallbackQuestion = map[phase.Phase]string{
	phase.Phase0:   "Who will validate phase outputs as the explicit human decision authority?",
	phase.Phase1:   "Which scenario should we validate first as the exploration anchor?",
	phase.Phase1_5: "Which white space should we stress test before proceeding to archaeology?",
	phase.Phase2:   "Which radical value remains non-negotiable even if it increases short-term cost?",
	phase.Phase3:   "Which value boundary should we test against this prototype first?",
	phase.Phase4:   "Which storyline is most fragile when checked against your validated DNA?",
	phase.Phase5:   "Which divergence should remain open instead of being resolved now?",
	phase.Phase6:   "Which drift signal should trigger a re-speculation cycle immediately?",
}

// FallbackText renders the deterministic three-line turn for a phase. It
// always satisfies the text policy.
func FallbackText(m phase.Mode, p phase.Phase) string {
	return strings.Join([]string{
		policy.Header(m, p),
		fallbackFraming[p],
		fallbackQuestion[p],
	}, "\n")
}
