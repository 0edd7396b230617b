// Package state holds the durable record of one project's progress through
// the Specula phases.
//
// ProjectState is a plain value: it is loaded, mutated by the orchestrator
// and saved explicitly. Nothing in this package holds process-wide state.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fyrsmithlabs/specula/internal/artifact"
	"github.com/fyrsmithlabs/specula/internal/phase"
)

// Errors for validation records.
var (
	ErrEmptyValidatorID   = errors.New("validator_id cannot be empty")
	ErrEmptyValidatorRole = errors.New("validator_role cannot be empty")
	ErrInvalidDecision    = errors.New("decision must be one of ['approve', 'hold', 'reject']")
	ErrDuplicateSignature = errors.New("duplicate validator signature is not allowed")
	ErrMissingProjectID   = errors.New("state is missing project_id")
)

// Decision is a validator's verdict on an artifact.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionHold    Decision = "hold"
)

// ParseDecision normalises raw and checks it against the decision enum.
func ParseDecision(raw string) (Decision, error) {
	d := Decision(strings.ToLower(strings.TrimSpace(raw)))
	switch d {
	case DecisionApprove, DecisionReject, DecisionHold:
		return d, nil
	}
	return "", ErrInvalidDecision
}

// ValidationRecord is one validator's signed decision on an artifact.
type ValidationRecord struct {
	ValidatorID      string    `json:"validator_id"`
	ValidatorRole    string    `json:"validator_role"`
	Decision         Decision  `json:"decision"`
	ValidatedByHuman bool      `json:"validated_by_human"`
	ValidatedAt      time.Time `json:"validated_at"`
}

// IsHumanApproval reports whether the record counts toward the approval
// policy.
func (r ValidationRecord) IsHumanApproval() bool {
	return r.ValidatedByHuman && r.Decision == DecisionApprove
}

// ValidationInput is the caller-supplied part of a validation record.
type ValidationInput struct {
	ArtifactID       string
	ValidatorID      string
	ValidatorRole    string
	Decision         string
	ValidatedByHuman bool
}

// ProjectState is the full workflow record for one project.
type ProjectState struct {
	ProjectID               string                        `json:"project_id"`
	CurrentPhase            phase.Phase                   `json:"current_phase"`
	LatestArtifacts         map[phase.Phase]string        `json:"latest_artifacts"`
	PhaseValidatedArtifacts map[phase.Phase]string        `json:"phase_validated_artifacts"`
	ArtifactIndex           map[string]artifact.Artifact  `json:"artifact_index"`
	ValidationRecords       map[string][]ValidationRecord `json:"validation_records"`
	Continuity              Continuity                    `json:"continuity_context"`
}

// New returns an empty project at phase 0.
func New(projectID string) *ProjectState {
	s := &ProjectState{ProjectID: projectID, CurrentPhase: phase.Phase0}
	s.init()
	return s
}

func (s *ProjectState) init() {
	if s.CurrentPhase == "" {
		s.CurrentPhase = phase.Phase0
	}
	if s.LatestArtifacts == nil {
		s.LatestArtifacts = make(map[phase.Phase]string)
	}
	if s.PhaseValidatedArtifacts == nil {
		s.PhaseValidatedArtifacts = make(map[phase.Phase]string)
	}
	if s.ArtifactIndex == nil {
		s.ArtifactIndex = make(map[string]artifact.Artifact)
	}
	if s.ValidationRecords == nil {
		s.ValidationRecords = make(map[string][]ValidationRecord)
	}
}

// AddValidationRecord appends a validation for in.ArtifactID. A validator
// may sign an artifact only once; a second attempt fails and the first
// record is kept.
func (s *ProjectState) AddValidationRecord(in ValidationInput, now time.Time) (ValidationRecord, error) {
	s.init()

	validatorID := strings.TrimSpace(in.ValidatorID)
	role := strings.TrimSpace(in.ValidatorRole)
	if validatorID == "" {
		return ValidationRecord{}, ErrEmptyValidatorID
	}
	if role == "" {
		return ValidationRecord{}, ErrEmptyValidatorRole
	}
	decision, err := ParseDecision(in.Decision)
	if err != nil {
		return ValidationRecord{}, err
	}

	for _, row := range s.ValidationRecords[in.ArtifactID] {
		if row.ValidatorID == validatorID {
			return ValidationRecord{}, fmt.Errorf("%w for `%s` and `%s`", ErrDuplicateSignature, in.ArtifactID, validatorID)
		}
	}

	rec := ValidationRecord{
		ValidatorID:      validatorID,
		ValidatorRole:    role,
		Decision:         decision,
		ValidatedByHuman: in.ValidatedByHuman,
		ValidatedAt:      artifact.Timestamp(now),
	}
	s.ValidationRecords[in.ArtifactID] = append(s.ValidationRecords[in.ArtifactID], rec)
	return rec, nil
}

// ValidationSnapshot returns a copy of the records for artifactID.
func (s *ProjectState) ValidationSnapshot(artifactID string) []ValidationRecord {
	rows := s.ValidationRecords[artifactID]
	out := make([]ValidationRecord, len(rows))
	copy(out, rows)
	return out
}

// RelatedArtifacts lists every latest artifact id ordered by phase key.
func (s *ProjectState) RelatedArtifacts() []string {
	keys := make([]string, 0, len(s.LatestArtifacts))
	for p, id := range s.LatestArtifacts {
		if id != "" {
			keys = append(keys, string(p))
		}
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.LatestArtifacts[phase.Phase(k)])
	}
	return out
}

// MissingPrerequisites returns the prerequisite phases of p that have no
// validated artifact yet, in table order.
func (s *ProjectState) MissingPrerequisites(p phase.Phase) []phase.Phase {
	var missing []phase.Phase
	for _, req := range p.Prerequisites() {
		if _, ok := s.PhaseValidatedArtifacts[req]; !ok {
			missing = append(missing, req)
		}
	}
	return missing
}

// MarshalJSON keeps empty collections as {} and [] rather than null.
func (s ProjectState) MarshalJSON() ([]byte, error) {
	s.init()
	type plain ProjectState
	return json.Marshal(plain(s))
}

// UnmarshalJSON decodes a persisted state, dropping malformed nested
// entries instead of failing the whole load.
func (s *ProjectState) UnmarshalJSON(data []byte) error {
	var raw struct {
		ProjectID               *string         `json:"project_id"`
		CurrentPhase            json.RawMessage `json:"current_phase"`
		LatestArtifacts         json.RawMessage `json:"latest_artifacts"`
		PhaseValidatedArtifacts json.RawMessage `json:"phase_validated_artifacts"`
		ArtifactIndex           json.RawMessage `json:"artifact_index"`
		ValidationRecords       json.RawMessage `json:"validation_records"`
		Continuity              json.RawMessage `json:"continuity_context"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.ProjectID == nil {
		return ErrMissingProjectID
	}

	out := ProjectState{
		ProjectID:    *raw.ProjectID,
		CurrentPhase: phase.Phase(scalarString(raw.CurrentPhase, string(phase.Phase0))),
	}
	out.init()

	for k, v := range objectEntries(raw.LatestArtifacts) {
		if id, ok := stringValue(v); ok {
			out.LatestArtifacts[phase.Phase(k)] = id
		}
	}
	for k, v := range objectEntries(raw.PhaseValidatedArtifacts) {
		if id, ok := stringValue(v); ok {
			out.PhaseValidatedArtifacts[phase.Phase(k)] = id
		}
	}
	for id, v := range objectEntries(raw.ArtifactIndex) {
		var a artifact.Artifact
		if err := json.Unmarshal(v, &a); err != nil {
			continue
		}
		out.ArtifactIndex[id] = a
	}
	now := time.Now()
	for id, v := range objectEntries(raw.ValidationRecords) {
		var rows []json.RawMessage
		if err := json.Unmarshal(v, &rows); err != nil {
			continue
		}
		clean := make([]ValidationRecord, 0, len(rows))
		for _, row := range rows {
			if rec, ok := decodeRecord(row, now); ok {
				clean = append(clean, rec)
			}
		}
		out.ValidationRecords[id] = clean
	}
	out.Continuity = decodeContinuity(raw.Continuity)

	*s = out
	return nil
}

func decodeRecord(data json.RawMessage, now time.Time) (ValidationRecord, bool) {
	var row map[string]json.RawMessage
	if err := json.Unmarshal(data, &row); err != nil || row == nil {
		return ValidationRecord{}, false
	}

	validatorID := strings.TrimSpace(scalarString(row["validator_id"], ""))
	role := strings.TrimSpace(scalarString(row["validator_role"], ""))
	decision, err := ParseDecision(scalarString(row["decision"], string(DecisionHold)))
	if validatorID == "" || role == "" || err != nil {
		return ValidationRecord{}, false
	}

	var human bool
	_ = json.Unmarshal(row["validated_by_human"], &human)

	at := artifact.Timestamp(now)
	if ts, ok := stringValue(row["validated_at"]); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			at = parsed.UTC()
		}
	}

	return ValidationRecord{
		ValidatorID:      validatorID,
		ValidatorRole:    role,
		Decision:         decision,
		ValidatedByHuman: human,
		ValidatedAt:      at,
	}, true
}

// objectEntries decodes data as a JSON object; anything else yields no
// entries.
func objectEntries(data json.RawMessage) map[string]json.RawMessage {
	var m map[string]json.RawMessage
	if len(data) == 0 || json.Unmarshal(data, &m) != nil {
		return nil
	}
	return m
}

// stringValue returns v when it is a JSON string.
func stringValue(v json.RawMessage) (string, bool) {
	if len(v) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

// scalarString renders a JSON string or number as text, or def when v is
// absent, null or structured.
func scalarString(v json.RawMessage, def string) string {
	if s, ok := stringValue(v); ok {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil && n != "" {
		return n.String()
	}
	return def
}
