package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/specula/internal/artifact"
	"github.com/fyrsmithlabs/specula/internal/phase"
	"github.com/fyrsmithlabs/specula/internal/state"
)

// foldContinuity records what a validated artifact contributes to the
// project's long-lived memory. Payloads that cannot be decoded contribute
// only the decision log entry.
func foldContinuity(s *state.ProjectState, t *Transition, a artifact.Artifact) {
	c := &s.Continuity
	c.Append(state.DecisionLog, fmt.Sprintf("Phase %s validated with approver roles: %s.",
		t.Phase, strings.Join(approverRoles(t), ", ")))

	payload, err := a.Decode()
	if err != nil {
		return
	}

	switch p := payload.(type) {
	case artifact.BrandDNA:
		for _, v := range p.BrandDNA.RadicalValues {
			c.Append(state.RadicalValues, v.Value)
		}

	case artifact.Refusals:
		for _, r := range p.Refusals {
			c.Append(state.RefusalSignals, r.IdentitySignal)
			c.Append(state.OpenAssumptions, r.ViolatedValue)
		}

	case artifact.Prototypes:
		if a.Meta.Mode != phase.ModePrototyping && a.Meta.Mode != phase.ModeEthicalGate {
			return
		}
		for _, proto := range p.Prototypes {
			status := strings.TrimSpace(proto.EthicalGate.Status)
			if status == "" || status == "PASS" {
				continue
			}
			label := strings.TrimSpace(proto.Description)
			if label == "" {
				label = proto.PrototypeID
			}
			c.Append(state.OpenAssumptions, fmt.Sprintf("Prototype `%s` remains `%s`.", label, status))
		}

	case artifact.GuardianReport:
		for _, item := range p.GuardianReport.Coherence.Inconsistent {
			c.Append(state.OpenAssumptions, item)
		}
	}
}

// approverRoles returns the sorted distinct trimmed roles of the human
// approvals, in their original case.
func approverRoles(t *Transition) []string {
	seen := make(map[string]struct{})
	var roles []string
	for _, r := range t.Validations {
		if !r.IsHumanApproval() {
			continue
		}
		role := strings.TrimSpace(r.ValidatorRole)
		if _, ok := seen[role]; ok || role == "" {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}
