package artifact

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payload is implemented by every phase-specific payload variant.
type Payload interface {
	Kind() Kind
}

// Activation is the phase 0 payload.
type Activation struct {
	ActivationStatus  string `json:"activation_status"`
	CurrentPhase      int    `json:"current_phase"`
	ContextSet        bool   `json:"context_set"`
	NextRequiredInput string `json:"next_required_input"`
}

func (Activation) Kind() Kind { return KindActivation }

// Driver is a force shaping a scenario.
type Driver struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Scenario is one divergent future.
type Scenario struct {
	ScenarioID       string   `json:"scenario_id"`
	Name             string   `json:"name"`
	TimeHorizon      string   `json:"time_horizon"`
	Drivers          []Driver `json:"drivers"`
	ScenarioType     string   `json:"scenario_type"`
	Description      string   `json:"description"`
	MaieuticQuestion string   `json:"maieutic_question"`
	UserResponse     *string  `json:"user_response"`
}

// Scenarios is the phase 1 payload.
type Scenarios struct {
	Scenarios []Scenario `json:"scenarios"`
}

func (Scenarios) Kind() Kind { return KindScenarios }

// CompetitorFuture is one competitor's projected trajectory.
type CompetitorFuture struct {
	Competitor         string   `json:"competitor"`
	FutureTrajectory   string   `json:"future_trajectory"`
	OccupiedTerritory  string   `json:"occupied_territory"`
	IgnoredTerritories []string `json:"ignored_territories"`
	ConfidenceLevel    string   `json:"confidence_level"`
}

// WhiteSpace is an unoccupied identity territory.
type WhiteSpace struct {
	WhiteSpaceID       string `json:"white_space_id"`
	Description        string `json:"description"`
	StrategicRisk      string `json:"strategic_risk"`
	AlignmentWithBrand string `json:"alignment_with_brand"`
}

// CompetitiveMap is the phase 1.5 payload.
type CompetitiveMap struct {
	CompetitiveMap []CompetitorFuture `json:"competitive_map"`
	WhiteSpaces    []WhiteSpace       `json:"white_spaces"`
}

func (CompetitiveMap) Kind() Kind { return KindCompetitiveMap }

// RadicalValue is a value that has been paid for.
type RadicalValue struct {
	Value    string `json:"value"`
	TestedIn string `json:"tested_in"`
	CostPaid string `json:"cost_paid"`
}

// Tensions splits tolerated from identity-breaking tensions.
type Tensions struct {
	Acceptable   []string `json:"acceptable"`
	Unacceptable []string `json:"unacceptable"`
}

// DNA is the brand identity structure.
type DNA struct {
	RadicalValues  []RadicalValue `json:"radical_values"`
	AcceptedBiases []string       `json:"accepted_biases"`
	MoralEntity    string         `json:"moral_entity"`
	RefusalZones   []string       `json:"refusal_zones"`
	Tensions       Tensions       `json:"tensions"`
}

// BrandDNA is the phase 2 payload.
type BrandDNA struct {
	BrandDNA DNA `json:"brand_dna"`
}

func (BrandDNA) Kind() Kind { return KindBrandDNA }

// ReviewerDecisionRef points at a reviewer decision on a gate.
type ReviewerDecisionRef struct {
	ValidatorRole string `json:"validator_role"`
	Decision      string `json:"decision"`
	Reference     string `json:"reference"`
}

// EthicalGate is the three-question assessment attached to a prototype.
type EthicalGate struct {
	Status                                   string                `json:"status"`
	ViolatedValues                           []string              `json:"violated_values"`
	SystemicImpact                           string                `json:"systemic_impact"`
	Question1ValueViolationRationale         string                `json:"question_1_value_violation_rationale"`
	Question2HarmfulPracticeRationale        string                `json:"question_2_harmful_practice_rationale"`
	Question3UnacceptableDependencyRationale string                `json:"question_3_unacceptable_dependency_rationale"`
	ReviewerDecisionRefs                     []ReviewerDecisionRef `json:"reviewer_decision_refs"`
}

// StakeholderImpact lists who gains and who loses.
type StakeholderImpact struct {
	Winners []string `json:"winners"`
	Losers  []string `json:"losers"`
}

// Prototype is a concept tested against the ethical gate.
type Prototype struct {
	PrototypeID       string            `json:"prototype_id"`
	ScenarioID        string            `json:"scenario_id"`
	Description       string            `json:"description"`
	RoleInFuture      string            `json:"role_in_future"`
	StakeholderImpact StakeholderImpact `json:"stakeholder_impact"`
	EthicalGate       EthicalGate       `json:"ethical_gate"`
}

// Prototypes is the phase 3 payload for every mode except refusal_register.
type Prototypes struct {
	Prototypes []Prototype `json:"prototypes"`
}

func (Prototypes) Kind() Kind { return KindPrototypes }

// GateAssessment carries the ethical gate rationales for a refusal.
type GateAssessment struct {
	Question1ValueViolationRationale         string                `json:"question_1_value_violation_rationale"`
	Question2HarmfulPracticeRationale        string                `json:"question_2_harmful_practice_rationale"`
	Question3UnacceptableDependencyRationale string                `json:"question_3_unacceptable_dependency_rationale"`
	ReviewerDecisionRefs                     []ReviewerDecisionRef `json:"reviewer_decision_refs"`
}

// Refusal records a direction deliberately not taken.
type Refusal struct {
	RefusalID             string         `json:"refusal_id"`
	PrototypeID           string         `json:"prototype_id"`
	ViolatedValue         string         `json:"violated_value"`
	OpportunityCost       string         `json:"opportunity_cost"`
	IdentitySignal        string         `json:"identity_signal"`
	Date                  time.Time      `json:"date"`
	EthicalGateAssessment GateAssessment `json:"ethical_gate_assessment"`
}

// Refusals is the phase 3 payload in refusal_register mode.
type Refusals struct {
	Refusals []Refusal `json:"refusals"`
}

func (Refusals) Kind() Kind { return KindRefusals }

// MetaNarrative is the core narrative statement.
type MetaNarrative struct {
	Statement       string   `json:"statement"`
	SupportedValues []string `json:"supported_values"`
}

// Storylines holds one storyline per touchpoint family.
type Storylines struct {
	Products  string `json:"products"`
	Services  string `json:"services"`
	AIAgents  string `json:"ai_agents"`
	Community string `json:"community"`
}

// DynamicRule modulates a storyline under a value constraint.
type DynamicRule struct {
	If    string `json:"if"`
	Then  string `json:"then"`
	While string `json:"while"`
}

// Narrative is the narrative system structure.
type Narrative struct {
	MetaNarrative MetaNarrative `json:"meta_narrative"`
	Storylines    Storylines    `json:"storylines"`
	DynamicRules  []DynamicRule `json:"dynamic_rules"`
}

// NarrativeSystem is the phase 4 payload.
type NarrativeSystem struct {
	NarrativeSystem Narrative `json:"narrative_system"`
}

func (NarrativeSystem) Kind() Kind { return KindNarrativeSystem }

// Divergence is a topic the community has not converged on.
type Divergence struct {
	Topic          string   `json:"topic"`
	Positions      []string `json:"positions"`
	MinorityVoices []string `json:"minority_voices"`
}

// CoCreationBody is the consensus and dissent structure.
type CoCreationBody struct {
	ConsensusAreas  []string     `json:"consensus_areas"`
	Divergences     []Divergence `json:"divergences"`
	AcceptedChanges []string     `json:"accepted_changes"`
	RejectedChanges []string     `json:"rejected_changes"`
	DissentLog      []string     `json:"dissent_log"`
}

// CoCreation is the phase 5 payload.
type CoCreation struct {
	CoCreation CoCreationBody `json:"co_creation"`
}

func (CoCreation) Kind() Kind { return KindCoCreation }

// ScenarioAlignment sorts live signals against the validated scenarios.
type ScenarioAlignment struct {
	Confirming    []string `json:"confirming"`
	Contradicting []string `json:"contradicting"`
	Emerging      []string `json:"emerging"`
}

// Coherence sorts observed behaviour against the validated identity.
type Coherence struct {
	Consistent   []string `json:"consistent"`
	Inconsistent []string `json:"inconsistent"`
}

// Report is the quarterly guardian assessment.
type Report struct {
	Quarter           string            `json:"quarter"`
	ScenarioAlignment ScenarioAlignment `json:"scenario_alignment"`
	Coherence         Coherence         `json:"coherence"`
	DivergenceLevel   string            `json:"divergence_level"`
	RecommendedAction string            `json:"recommended_action"`
}

// GuardianReport is the phase 6 payload.
type GuardianReport struct {
	GuardianReport Report `json:"guardian_report"`
}

func (GuardianReport) Kind() Kind { return KindGuardianReport }

// Quarter formats t as YYYY-Qn.
func Quarter(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
}

func pendingReview() []ReviewerDecisionRef {
	return []ReviewerDecisionRef{{
		ValidatorRole: "pending_review",
		Decision:      "hold",
		Reference:     "Awaiting at least two human approvals.",
	}}
}

// NewPayload builds the draft payload skeleton for k. Nested ids are fresh
// on every call.
func NewPayload(k Kind, now time.Time) (Payload, error) {
	switch k {
	case KindActivation:
		return Activation{
			ActivationStatus:  "active",
			CurrentPhase:      0,
			ContextSet:        true,
			NextRequiredInput: "decision_authority",
		}, nil

	case KindScenarios:
		return Scenarios{Scenarios: []Scenario{{
			ScenarioID:  "scenario-" + uuid.NewString(),
			Name:        "Scenario Seed",
			TimeHorizon: "10",
			Drivers: []Driver{{
				Type:        "cultural",
				Description: "A relevant weak signal emerging in the target market",
			}},
			ScenarioType:     "preferred",
			Description:      "A plausible but tension-rich future context.",
			MaieuticQuestion: "What identity cost are we willing to accept in this scenario?",
		}}}, nil

	case KindCompetitiveMap:
		return CompetitiveMap{
			CompetitiveMap: []CompetitorFuture{{
				Competitor:         "Competitor A",
				FutureTrajectory:   "Narrative ownership of a future category claim",
				OccupiedTerritory:  "High-visibility sustainability positioning",
				IgnoredTerritories: []string{"Long-term trust infrastructure"},
				ConfidenceLevel:    "medium",
			}},
			WhiteSpaces: []WhiteSpace{{
				WhiteSpaceID:       "white-space-" + uuid.NewString(),
				Description:        "Unoccupied identity territory with strategic relevance",
				StrategicRisk:      "medium",
				AlignmentWithBrand: "high",
			}},
		}, nil

	case KindBrandDNA:
		return BrandDNA{BrandDNA: DNA{
			RadicalValues: []RadicalValue{{
				Value:    "value_name",
				TestedIn: "decision context",
				CostPaid: "explicit trade-off",
			}},
			AcceptedBiases: []string{"bias_name"},
			MoralEntity:    "caretaker",
			RefusalZones:   []string{"non-negotiable exclusion"},
			Tensions: Tensions{
				Acceptable:   []string{"productive tension"},
				Unacceptable: []string{"identity-breaking tension"},
			},
		}}, nil

	case KindPrototypes:
		return Prototypes{Prototypes: []Prototype{{
			PrototypeID:  "prototype-" + uuid.NewString(),
			ScenarioID:   "scenario-" + uuid.NewString(),
			Description:  "Prototype concept statement",
			RoleInFuture: "Defined role in the target scenario",
			StakeholderImpact: StakeholderImpact{
				Winners: []string{"stakeholder_group"},
				Losers:  []string{"stakeholder_group"},
			},
			EthicalGate: EthicalGate{
				Status:                                   "HOLD",
				ViolatedValues:                           []string{},
				SystemicImpact:                           "aligned",
				Question1ValueViolationRationale:         "Pending explicit value-violation assessment.",
				Question2HarmfulPracticeRationale:        "Pending explicit harmful-practice assessment.",
				Question3UnacceptableDependencyRationale: "Pending explicit dependency assessment.",
				ReviewerDecisionRefs:                     pendingReview(),
			},
		}}}, nil

	case KindRefusals:
		return Refusals{Refusals: []Refusal{{
			RefusalID:       "refusal-" + uuid.NewString(),
			PrototypeID:     "prototype-" + uuid.NewString(),
			ViolatedValue:   "radical_value_name",
			OpportunityCost: "What we gave up by refusing this direction",
			IdentitySignal:  "Boundary reinforced by this refusal",
			Date:            Timestamp(now),
			EthicalGateAssessment: GateAssessment{
				Question1ValueViolationRationale:         "Pending final rationale after review.",
				Question2HarmfulPracticeRationale:        "Pending final rationale after review.",
				Question3UnacceptableDependencyRationale: "Pending final rationale after review.",
				ReviewerDecisionRefs:                     pendingReview(),
			},
		}}}, nil

	case KindNarrativeSystem:
		return NarrativeSystem{NarrativeSystem: Narrative{
			MetaNarrative: MetaNarrative{
				Statement:       "Core narrative statement",
				SupportedValues: []string{"value_name"},
			},
			Storylines: Storylines{
				Products:  "Product storyline",
				Services:  "Service storyline",
				AIAgents:  "Agent storyline",
				Community: "Community storyline",
			},
			DynamicRules: []DynamicRule{{If: "condition", Then: "modulation", While: "value constraint"}},
		}}, nil

	case KindCoCreation:
		return CoCreation{CoCreation: CoCreationBody{
			ConsensusAreas: []string{"agreed area"},
			Divergences: []Divergence{{
				Topic:          "open topic",
				Positions:      []string{"position A", "position B"},
				MinorityVoices: []string{"voice statement"},
			}},
			AcceptedChanges: []string{"accepted change"},
			RejectedChanges: []string{"rejected change"},
			DissentLog:      []string{"dissent note"},
		}}, nil

	case KindGuardianReport:
		return GuardianReport{GuardianReport: Report{
			Quarter: Quarter(now),
			ScenarioAlignment: ScenarioAlignment{
				Confirming:    []string{"confirming signal"},
				Contradicting: []string{"contradicting signal"},
				Emerging:      []string{"emerging signal"},
			},
			Coherence: Coherence{
				Consistent:   []string{"consistent behavior"},
				Inconsistent: []string{"inconsistent behavior"},
			},
			DivergenceLevel:   "drift",
			RecommendedAction: "correct",
		}}, nil
	}
	return nil, fmt.Errorf("no payload template for %s", k)
}

// DecodePayload parses raw into the typed variant for k.
func DecodePayload(k Kind, raw []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch k {
	case KindActivation:
		var v Activation
		err = json.Unmarshal(raw, &v)
		p = v
	case KindScenarios:
		var v Scenarios
		err = json.Unmarshal(raw, &v)
		p = v
	case KindCompetitiveMap:
		var v CompetitiveMap
		err = json.Unmarshal(raw, &v)
		p = v
	case KindBrandDNA:
		var v BrandDNA
		err = json.Unmarshal(raw, &v)
		p = v
	case KindPrototypes:
		var v Prototypes
		err = json.Unmarshal(raw, &v)
		p = v
	case KindRefusals:
		var v Refusals
		err = json.Unmarshal(raw, &v)
		p = v
	case KindNarrativeSystem:
		var v NarrativeSystem
		err = json.Unmarshal(raw, &v)
		p = v
	case KindCoCreation:
		var v CoCreation
		err = json.Unmarshal(raw, &v)
		p = v
	case KindGuardianReport:
		var v GuardianReport
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("no payload decoder for %s", k)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", k, err)
	}
	return p, nil
}
