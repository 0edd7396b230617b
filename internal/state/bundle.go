package state

import (
	"encoding/json"
	"sort"

	"github.com/fyrsmithlabs/specula/internal/phase"
)

// recentArtifactLimit bounds how many validated artifacts travel in a bundle.
const recentArtifactLimit = 4

// RecentArtifact summarises one validated artifact for a generation prompt.
type RecentArtifact struct {
	Phase      phase.Phase     `json:"phase"`
	ArtifactID string          `json:"artifact_id"`
	Mode       phase.Mode      `json:"mode,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// ContextBundle is the continuity snapshot handed to a generation backend.
type ContextBundle struct {
	ValidatedPhases          []phase.Phase    `json:"validated_phases"`
	Continuity               Continuity       `json:"continuity_context"`
	RecentValidatedArtifacts []RecentArtifact `json:"recent_validated_artifacts"`
}

// ContextBundle builds the snapshot: validated phases in methodology order,
// the continuity lists and the last few validated artifacts.
func (s *ProjectState) ContextBundle() ContextBundle {
	validated := make([]phase.Phase, 0, len(s.PhaseValidatedArtifacts))
	for p := range s.PhaseValidatedArtifacts {
		validated = append(validated, p)
	}
	sort.SliceStable(validated, func(i, j int) bool {
		oi, oj := validated[i].Order(), validated[j].Order()
		if oi != oj {
			return oi < oj
		}
		return validated[i] < validated[j]
	})

	tail := validated
	if len(tail) > recentArtifactLimit {
		tail = tail[len(tail)-recentArtifactLimit:]
	}
	recent := make([]RecentArtifact, 0, len(tail))
	for _, p := range tail {
		id := s.PhaseValidatedArtifacts[p]
		ra := RecentArtifact{Phase: p, ArtifactID: id, Payload: json.RawMessage(`{}`)}
		if a, ok := s.ArtifactIndex[id]; ok {
			ra.Mode = a.Meta.Mode
			if len(a.Payload) > 0 {
				ra.Payload = a.Payload
			}
		}
		recent = append(recent, ra)
	}

	c := Continuity{
		DecisionLog:     s.Continuity.Get(DecisionLog),
		RadicalValues:   s.Continuity.Get(RadicalValues),
		RefusalSignals:  s.Continuity.Get(RefusalSignals),
		OpenAssumptions: s.Continuity.Get(OpenAssumptions),
	}

	return ContextBundle{
		ValidatedPhases:          validated,
		Continuity:               c,
		RecentValidatedArtifacts: recent,
	}
}
