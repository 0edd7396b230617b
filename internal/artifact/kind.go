package artifact

import (
	"fmt"

	"github.com/fyrsmithlabs/specula/internal/phase"
)

// Kind enumerates the payload variants.
type Kind int

const (
	KindActivation Kind = iota
	KindScenarios
	KindCompetitiveMap
	KindBrandDNA
	KindPrototypes
	KindRefusals
	KindNarrativeSystem
	KindCoCreation
	KindGuardianReport
)

// Kinds returns every payload variant.
func Kinds() []Kind {
	return []Kind{
		KindActivation,
		KindScenarios,
		KindCompetitiveMap,
		KindBrandDNA,
		KindPrototypes,
		KindRefusals,
		KindNarrativeSystem,
		KindCoCreation,
		KindGuardianReport,
	}
}

// KindFor maps a phase and mode to its payload variant. Phase 3 in
// refusal_register mode is the only mode-dependent case.
func KindFor(p phase.Phase, m phase.Mode) (Kind, error) {
	switch p {
	case phase.Phase0:
		return KindActivation, nil
	case phase.Phase1:
		return KindScenarios, nil
	case phase.Phase1_5:
		return KindCompetitiveMap, nil
	case phase.Phase2:
		return KindBrandDNA, nil
	case phase.Phase3:
		if m == phase.ModeRefusalRegister {
			return KindRefusals, nil
		}
		return KindPrototypes, nil
	case phase.Phase4:
		return KindNarrativeSystem, nil
	case phase.Phase5:
		return KindCoCreation, nil
	case phase.Phase6:
		return KindGuardianReport, nil
	default:
		return 0, fmt.Errorf("unsupported phase `%s`", p)
	}
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindActivation:
		return "activation"
	case KindScenarios:
		return "scenarios"
	case KindCompetitiveMap:
		return "competitive_map"
	case KindBrandDNA:
		return "brand_dna"
	case KindPrototypes:
		return "prototypes"
	case KindRefusals:
		return "refusals"
	case KindNarrativeSystem:
		return "narrative_system"
	case KindCoCreation:
		return "cocreation"
	case KindGuardianReport:
		return "guardian"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// SchemaName returns the embedded schema document that validates k.
func (k Kind) SchemaName() string {
	switch k {
	case KindActivation:
		return "phase0_activation.schema.json"
	case KindScenarios:
		return "phase1_scenarios.schema.json"
	case KindCompetitiveMap:
		return "phase1_5_competitive_map.schema.json"
	case KindBrandDNA:
		return "phase2_brand_dna.schema.json"
	case KindPrototypes:
		return "phase3_prototypes.schema.json"
	case KindRefusals:
		return "phase3_refusals.schema.json"
	case KindNarrativeSystem:
		return "phase4_narrative_system.schema.json"
	case KindCoCreation:
		return "phase5_cocreation.schema.json"
	case KindGuardianReport:
		return "phase6_guardian.schema.json"
	default:
		return ""
	}
}
