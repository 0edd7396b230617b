// Package artifact defines the Specula artifact envelope and the per-phase
// payload variants.
//
// An artifact is a meta block plus a payload. Payloads are built through a
// closed set of variant constructors keyed by Kind, then stored as raw JSON
// inside the artifact so that persisted artifacts round-trip unchanged.
package artifact

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/specula/internal/phase"
)

// Artifact is one phase's structured output plus provenance metadata.
// It is never mutated after generation.
type Artifact struct {
	Meta    Meta            `json:"meta"`
	Payload json.RawMessage `json:"payload"`
}

// Meta carries provenance for an artifact.
type Meta struct {
	ArtifactID           string      `json:"artifact_id"`
	Phase                phase.Phase `json:"phase"`
	Mode                 phase.Mode  `json:"mode"`
	GeneratedAt          time.Time   `json:"generated_at"`
	ValidatedByHuman     bool        `json:"validated_by_human"`
	RelatedArtifacts     []string    `json:"related_artifacts"`
	DecisionRationale    string      `json:"decision_rationale,omitempty"`
	EvidenceRefs         []string    `json:"evidence_refs,omitempty"`
	Tradeoffs            []string    `json:"tradeoffs,omitempty"`
	RejectedAlternatives []string    `json:"rejected_alternatives,omitempty"`
}

// New wraps a payload variant into an artifact.
func New(meta Meta, payload Payload) (Artifact, error) {
	if payload == nil {
		return Artifact{}, fmt.Errorf("payload is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to marshal %s payload: %w", payload.Kind(), err)
	}
	if meta.RelatedArtifacts == nil {
		meta.RelatedArtifacts = []string{}
	}
	return Artifact{Meta: meta, Payload: raw}, nil
}

// Kind resolves the payload variant from the artifact's meta.
func (a Artifact) Kind() (Kind, error) {
	return KindFor(a.Meta.Phase, a.Meta.Mode)
}

// Decode parses the raw payload into its typed variant.
func (a Artifact) Decode() (Payload, error) {
	k, err := a.Kind()
	if err != nil {
		return nil, err
	}
	return DecodePayload(k, a.Payload)
}

// JSON renders the artifact as an indented document.
func (a Artifact) JSON() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// Timestamp normalises t to UTC with second precision, the format used in
// every artifact and validation record.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
