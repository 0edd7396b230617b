package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MinHumanApprovals is the number of human approvals and distinct validator
// roles an artifact needs before its phase can advance.
const MinHumanApprovals = 2

// PrerequisitesGate blocks drafting a phase whose prerequisite phases have
// no validated artifact yet.
type PrerequisitesGate struct{}

// NewPrerequisitesGate creates a new prerequisites gate
func NewPrerequisitesGate() *PrerequisitesGate {
	return &PrerequisitesGate{}
}

// Name returns the gate identifier
func (g *PrerequisitesGate) Name() string {
	return "prerequisites"
}

// Check validates that every prerequisite phase has been validated.
func (g *PrerequisitesGate) Check(ctx context.Context, t *Transition) ([]Violation, error) {
	missing := t.State.MissingPrerequisites(t.Phase)
	if len(missing) == 0 {
		return nil, nil
	}

	tokens := make([]string, len(missing))
	for i, p := range missing {
		tokens[i] = p.String()
	}
	return []Violation{{
		Type:  ViolationMissingPrerequisites,
		Gate:  g.Name(),
		Phase: t.Phase,
		Description: fmt.Sprintf("cannot generate phase `%s` without validated prerequisite phases: %s",
			t.Phase, strings.Join(tokens, ", ")),
		Severity:   SeverityError,
		DetectedAt: time.Now().UTC(),
	}}, nil
}

// PhaseMatchGate rejects validations that target a phase other than the
// current one.
type PhaseMatchGate struct{}

// NewPhaseMatchGate creates a new phase match gate
func NewPhaseMatchGate() *PhaseMatchGate {
	return &PhaseMatchGate{}
}

// Name returns the gate identifier
func (g *PhaseMatchGate) Name() string {
	return "phase-match"
}

// Check validates the transition phase against the project state.
func (g *PhaseMatchGate) Check(ctx context.Context, t *Transition) ([]Violation, error) {
	current := t.State.CurrentPhase
	if t.Phase == current {
		return nil, nil
	}
	return []Violation{{
		Type:        ViolationPhaseMismatch,
		Gate:        g.Name(),
		Phase:       t.Phase,
		ArtifactID:  t.ArtifactID,
		Description: fmt.Sprintf("phase mismatch: current phase is `%s` but received `%s`", current, t.Phase),
		Severity:    SeverityError,
		DetectedAt:  time.Now().UTC(),
	}}, nil
}

// ArtifactPresentGate rejects validations of artifacts the project never
// generated.
type ArtifactPresentGate struct{}

// NewArtifactPresentGate creates a new artifact presence gate
func NewArtifactPresentGate() *ArtifactPresentGate {
	return &ArtifactPresentGate{}
}

// Name returns the gate identifier
func (g *ArtifactPresentGate) Name() string {
	return "artifact-present"
}

// Check validates that the artifact is in the project's index.
func (g *ArtifactPresentGate) Check(ctx context.Context, t *Transition) ([]Violation, error) {
	if _, ok := t.State.ArtifactIndex[t.ArtifactID]; ok {
		return nil, nil
	}
	return []Violation{{
		Type:        ViolationArtifactMissing,
		Gate:        g.Name(),
		Phase:       t.Phase,
		ArtifactID:  t.ArtifactID,
		Description: fmt.Sprintf("artifact `%s` is not available in state context", t.ArtifactID),
		Severity:    SeverityError,
		DetectedAt:  time.Now().UTC(),
	}}, nil
}

// HumanApprovalsGate requires MinHumanApprovals human approvals. Holds,
// rejections and non-human approvals do not count.
type HumanApprovalsGate struct{}

// NewHumanApprovalsGate creates a new human approvals gate
func NewHumanApprovalsGate() *HumanApprovalsGate {
	return &HumanApprovalsGate{}
}

// Name returns the gate identifier
func (g *HumanApprovalsGate) Name() string {
	return "human-approvals"
}

// Check counts human approvals among the transition's validations.
func (g *HumanApprovalsGate) Check(ctx context.Context, t *Transition) ([]Violation, error) {
	approvals := 0
	for _, r := range t.Validations {
		if r.IsHumanApproval() {
			approvals++
		}
	}
	if approvals >= MinHumanApprovals {
		return nil, nil
	}
	return []Violation{{
		Type:        ViolationInsufficientApprovals,
		Gate:        g.Name(),
		Phase:       t.Phase,
		ArtifactID:  t.ArtifactID,
		Description: fmt.Sprintf("artifact `%s` requires at least two human approvals to advance", t.ArtifactID),
		Severity:    SeverityCritical,
		DetectedAt:  time.Now().UTC(),
	}}, nil
}

// RoleDiversityGate requires human approvals from MinHumanApprovals distinct
// validator roles. Roles compare case-insensitively after trimming.
type RoleDiversityGate struct{}

// NewRoleDiversityGate creates a new role diversity gate
func NewRoleDiversityGate() *RoleDiversityGate {
	return &RoleDiversityGate{}
}

// Name returns the gate identifier
func (g *RoleDiversityGate) Name() string {
	return "role-diversity"
}

// Check counts distinct approver roles.
func (g *RoleDiversityGate) Check(ctx context.Context, t *Transition) ([]Violation, error) {
	roles := make(map[string]struct{})
	for _, r := range t.Validations {
		if !r.IsHumanApproval() {
			continue
		}
		if role := strings.ToLower(strings.TrimSpace(r.ValidatorRole)); role != "" {
			roles[role] = struct{}{}
		}
	}
	if len(roles) >= MinHumanApprovals {
		return nil, nil
	}
	return []Violation{{
		Type:        ViolationRoleDiversity,
		Gate:        g.Name(),
		Phase:       t.Phase,
		ArtifactID:  t.ArtifactID,
		Description: fmt.Sprintf("artifact `%s` requires approvals from at least two distinct validator roles", t.ArtifactID),
		Severity:    SeverityCritical,
		DetectedAt:  time.Now().UTC(),
	}}, nil
}

// generationGates guard GenerateStep.
func generationGates() []Gate {
	return []Gate{NewPrerequisitesGate()}
}

// targetGates check that a validation addresses the current phase and a
// known artifact.
func targetGates() []Gate {
	return []Gate{
		NewPhaseMatchGate(),
		NewArtifactPresentGate(),
	}
}

// advanceGates guard AdvanceAfterValidation, in evaluation order.
func advanceGates() []Gate {
	return append(targetGates(),
		NewHumanApprovalsGate(),
		NewRoleDiversityGate(),
	)
}
