package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specula/internal/artifact"
	"github.com/fyrsmithlabs/specula/internal/phase"
)

var now = time.Date(2026, time.February, 18, 10, 0, 0, 0, time.UTC)

func sampleArtifact(t *testing.T, id string, p phase.Phase) artifact.Artifact {
	t.Helper()
	k, err := artifact.KindFor(p, p.DefaultMode())
	require.NoError(t, err)
	payload, err := artifact.NewPayload(k, now)
	require.NoError(t, err)
	a, err := artifact.New(artifact.Meta{
		ArtifactID:  id,
		Phase:       p,
		Mode:        p.DefaultMode(),
		GeneratedAt: now,
	}, payload)
	require.NoError(t, err)
	return a
}

func TestNew(t *testing.T) {
	s := New("project-test")
	assert.Equal(t, "project-test", s.ProjectID)
	assert.Equal(t, phase.Phase0, s.CurrentPhase)
	assert.NotNil(t, s.LatestArtifacts)
	assert.NotNil(t, s.ArtifactIndex)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"project_id": "project-test",
		"current_phase": "0",
		"latest_artifacts": {},
		"phase_validated_artifacts": {},
		"artifact_index": {},
		"validation_records": {},
		"continuity_context": {
			"decision_log": [],
			"radical_values": [],
			"refusal_signals": [],
			"open_assumptions": []
		}
	}`, string(raw))
}

func TestAddValidationRecord(t *testing.T) {
	s := New("project-test")

	rec, err := s.AddValidationRecord(ValidationInput{
		ArtifactID:       "artifact-1",
		ValidatorID:      "  alice ",
		ValidatorRole:    "strategy_lead",
		Decision:         " APPROVE ",
		ValidatedByHuman: true,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.ValidatorID)
	assert.Equal(t, DecisionApprove, rec.Decision)
	assert.True(t, rec.IsHumanApproval())
	assert.Equal(t, now, rec.ValidatedAt)
	assert.Len(t, s.ValidationSnapshot("artifact-1"), 1)
}

func TestAddValidationRecord_Duplicate(t *testing.T) {
	s := New("project-test")
	in := ValidationInput{
		ArtifactID:       "artifact-1",
		ValidatorID:      "alice",
		ValidatorRole:    "strategy_lead",
		Decision:         "approve",
		ValidatedByHuman: true,
	}
	_, err := s.AddValidationRecord(in, now)
	require.NoError(t, err)

	in.Decision = "reject"
	in.ValidatorRole = "ethics_reviewer"
	_, err = s.AddValidationRecord(in, now.Add(time.Minute))
	require.ErrorIs(t, err, ErrDuplicateSignature)
	assert.Equal(t, "duplicate validator signature is not allowed for `artifact-1` and `alice`", err.Error())

	rows := s.ValidationSnapshot("artifact-1")
	require.Len(t, rows, 1)
	assert.Equal(t, DecisionApprove, rows[0].Decision)
	assert.Equal(t, "strategy_lead", rows[0].ValidatorRole)
}

func TestAddValidationRecord_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   ValidationInput
		want error
	}{
		{"empty id", ValidationInput{ValidatorRole: "r", Decision: "approve"}, ErrEmptyValidatorID},
		{"empty role", ValidationInput{ValidatorID: "v", ValidatorRole: "  ", Decision: "approve"}, ErrEmptyValidatorRole},
		{"bad decision", ValidationInput{ValidatorID: "v", ValidatorRole: "r", Decision: "maybe"}, ErrInvalidDecision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("project-test")
			_, err := s.AddValidationRecord(tt.in, now)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, s.ValidationRecords)
		})
	}
}

func TestValidationSnapshot_IsCopy(t *testing.T) {
	s := New("project-test")
	_, err := s.AddValidationRecord(ValidationInput{
		ArtifactID: "a", ValidatorID: "v", ValidatorRole: "r", Decision: "hold",
	}, now)
	require.NoError(t, err)

	snap := s.ValidationSnapshot("a")
	snap[0].ValidatorID = "mutated"
	assert.Equal(t, "v", s.ValidationRecords["a"][0].ValidatorID)
	assert.Empty(t, s.ValidationSnapshot("missing"))
}

func TestRelatedArtifacts_LexicalPhaseOrder(t *testing.T) {
	s := New("project-test")
	s.LatestArtifacts[phase.Phase2] = "a-2"
	s.LatestArtifacts[phase.Phase1_5] = "a-1.5"
	s.LatestArtifacts[phase.Phase0] = "a-0"
	s.LatestArtifacts[phase.Phase1] = "a-1"
	s.LatestArtifacts[phase.Phase3] = ""

	assert.Equal(t, []string{"a-0", "a-1", "a-1.5", "a-2"}, s.RelatedArtifacts())
}

func TestMissingPrerequisites(t *testing.T) {
	s := New("project-test")
	assert.Empty(t, s.MissingPrerequisites(phase.Phase0))
	assert.Equal(t, []phase.Phase{phase.Phase1, phase.Phase1_5}, s.MissingPrerequisites(phase.Phase2))

	s.PhaseValidatedArtifacts[phase.Phase1] = "a-1"
	assert.Equal(t, []phase.Phase{phase.Phase1_5}, s.MissingPrerequisites(phase.Phase2))
}

func TestRoundTrip(t *testing.T) {
	s := New("project-test")
	a := sampleArtifact(t, "artifact-0", phase.Phase0)
	s.ArtifactIndex[a.Meta.ArtifactID] = a
	s.LatestArtifacts[phase.Phase0] = a.Meta.ArtifactID
	s.PhaseValidatedArtifacts[phase.Phase0] = a.Meta.ArtifactID
	s.CurrentPhase = phase.Phase1
	_, err := s.AddValidationRecord(ValidationInput{
		ArtifactID: "artifact-0", ValidatorID: "v1", ValidatorRole: "strategy_lead",
		Decision: "approve", ValidatedByHuman: true,
	}, now)
	require.NoError(t, err)
	s.Continuity.Append(DecisionLog, "Phase 0 validated with approver roles: a, b.")

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var back ProjectState
	require.NoError(t, json.Unmarshal(raw, &back))

	again, err := json.Marshal(&back)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(again))
	assert.Equal(t, s.ValidationRecords, back.ValidationRecords)
	assert.Equal(t, s.Continuity, back.Continuity)
}

func TestUnmarshal_DropsMalformedEntries(t *testing.T) {
	doc := `{
		"project_id": "project-test",
		"current_phase": "2",
		"latest_artifacts": {"1": "a-1", "2": 42},
		"phase_validated_artifacts": {"1": "a-1"},
		"artifact_index": {"broken": "not an artifact"},
		"validation_records": {
			"a-1": [
				{"validator_id": "v1", "validator_role": "strategy_lead", "decision": "approve", "validated_by_human": true, "validated_at": "2026-02-18T09:00:00Z"},
				{"validator_role": "ethics_reviewer", "decision": "approve"},
				{"validator_id": "v3", "validator_role": "ethics_reviewer", "decision": "veto"},
				{"validator_id": "v4", "validator_role": "ethics_reviewer"},
				"garbage"
			],
			"a-2": "not a list"
		},
		"continuity_context": {
			"decision_log": ["kept", 7, "   ", null, " trimmed "],
			"radical_values": "nope",
			"unknown": ["x"]
		}
	}`

	var s ProjectState
	require.NoError(t, json.Unmarshal([]byte(doc), &s))

	assert.Equal(t, phase.Phase2, s.CurrentPhase)
	assert.Equal(t, map[phase.Phase]string{phase.Phase1: "a-1"}, s.LatestArtifacts)
	assert.Empty(t, s.ArtifactIndex)
	assert.NotContains(t, s.ValidationRecords, "a-2")

	rows := s.ValidationRecords["a-1"]
	require.Len(t, rows, 2)
	assert.Equal(t, "v1", rows[0].ValidatorID)
	assert.Equal(t, time.Date(2026, time.February, 18, 9, 0, 0, 0, time.UTC), rows[0].ValidatedAt)
	assert.Equal(t, "v4", rows[1].ValidatorID)
	assert.Equal(t, DecisionHold, rows[1].Decision)
	assert.False(t, rows[1].ValidatedAt.IsZero())

	assert.Equal(t, []string{"kept", "trimmed"}, s.Continuity.DecisionLog)
	assert.Empty(t, s.Continuity.RadicalValues)
}

func TestUnmarshal_DropsMistypedCollections(t *testing.T) {
	tests := map[string]string{
		"validation records list":  `{"project_id": "p", "validation_records": []}`,
		"artifact index string":    `{"project_id": "p", "artifact_index": "bad"}`,
		"latest artifacts number":  `{"project_id": "p", "latest_artifacts": 3}`,
		"validated artifacts null": `{"project_id": "p", "phase_validated_artifacts": null}`,
		"continuity list":          `{"project_id": "p", "continuity_context": ["x"]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			var s ProjectState
			require.NoError(t, json.Unmarshal([]byte(doc), &s))
			assert.Equal(t, "p", s.ProjectID)
			assert.Equal(t, phase.Phase0, s.CurrentPhase)
			assert.NotNil(t, s.ValidationRecords)
			assert.Empty(t, s.ValidationRecords)
			assert.Empty(t, s.ArtifactIndex)
			assert.Empty(t, s.LatestArtifacts)
			assert.Empty(t, s.PhaseValidatedArtifacts)
		})
	}
}

func TestUnmarshal_NumericPhaseAndDefaults(t *testing.T) {
	var s ProjectState
	require.NoError(t, json.Unmarshal([]byte(`{"project_id": "p", "current_phase": 1.5}`), &s))
	assert.Equal(t, phase.Phase1_5, s.CurrentPhase)
	assert.NotNil(t, s.ArtifactIndex)

	require.NoError(t, json.Unmarshal([]byte(`{"project_id": "p"}`), &s))
	assert.Equal(t, phase.Phase0, s.CurrentPhase)
}

func TestUnmarshal_RequiresProjectID(t *testing.T) {
	var s ProjectState
	err := json.Unmarshal([]byte(`{"current_phase": "1"}`), &s)
	assert.ErrorIs(t, err, ErrMissingProjectID)
}

func TestContinuity_AppendDedupAndCap(t *testing.T) {
	var c Continuity
	c.Append(OpenAssumptions, "")
	c.Append(OpenAssumptions, "  ")
	assert.Empty(t, c.OpenAssumptions)

	c.Append(OpenAssumptions, "a")
	c.Append(OpenAssumptions, "a")
	assert.Equal(t, []string{"a"}, c.OpenAssumptions)

	for i := 0; i < MaxContinuityItems+5; i++ {
		c.Append(DecisionLog, fmt.Sprintf("entry-%02d", i))
	}
	require.Len(t, c.DecisionLog, MaxContinuityItems)
	assert.Equal(t, "entry-05", c.DecisionLog[0])
	assert.Equal(t, "entry-29", c.DecisionLog[MaxContinuityItems-1])

	c.Append(ContinuityList("unknown"), "ignored")
	assert.Nil(t, c.Get(ContinuityList("unknown")))
}

func TestContextBundle(t *testing.T) {
	s := New("project-test")
	for i, p := range []phase.Phase{phase.Phase0, phase.Phase1, phase.Phase1_5, phase.Phase2, phase.Phase3} {
		id := fmt.Sprintf("artifact-%d", i)
		s.ArtifactIndex[id] = sampleArtifact(t, id, p)
		s.PhaseValidatedArtifacts[p] = id
	}
	s.PhaseValidatedArtifacts[phase.Phase4] = "artifact-missing"
	s.Continuity.Append(RadicalValues, "value_name")

	b := s.ContextBundle()
	assert.Equal(t, []phase.Phase{
		phase.Phase0, phase.Phase1, phase.Phase1_5, phase.Phase2, phase.Phase3, phase.Phase4,
	}, b.ValidatedPhases)
	assert.Equal(t, []string{"value_name"}, b.Continuity.RadicalValues)

	require.Len(t, b.RecentValidatedArtifacts, 4)
	assert.Equal(t, phase.Phase1_5, b.RecentValidatedArtifacts[0].Phase)
	assert.Equal(t, phase.ModeConvergence, b.RecentValidatedArtifacts[0].Mode)
	assert.Contains(t, string(b.RecentValidatedArtifacts[0].Payload), "white_spaces")

	last := b.RecentValidatedArtifacts[3]
	assert.Equal(t, phase.Phase4, last.Phase)
	assert.Equal(t, "artifact-missing", last.ArtifactID)
	assert.Empty(t, last.Mode)
	assert.JSONEq(t, `{}`, string(last.Payload))
}

func TestFileStore_LoadMissing(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	s, err := fs.Load()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.ProjectID, "project-"))
	assert.Equal(t, phase.Phase0, s.CurrentPhase)
}

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	fs := NewFileStore(path)

	s := New("project-test")
	s.CurrentPhase = phase.Phase1
	s.PhaseValidatedArtifacts[phase.Phase0] = "a-0"
	require.NoError(t, fs.Save(s))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "}\n"))
	assert.Contains(t, string(data), "\n  \"project_id\": \"project-test\"")

	loaded, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, s.ProjectID, loaded.ProjectID)
	assert.Equal(t, s.CurrentPhase, loaded.CurrentPhase)
	assert.Equal(t, s.PhaseValidatedArtifacts, loaded.PhaseValidatedArtifacts)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))

	_, err := NewFileStore(path).Load()
	assert.ErrorIs(t, err, ErrStateCorrupted)
}

func TestNewFileStore_Default(t *testing.T) {
	assert.Equal(t, DefaultFile, NewFileStore("").Path())
}
