package artifact

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specula/internal/phase"
)

var fixedNow = time.Date(2026, time.May, 14, 9, 30, 15, 500, time.UTC)

func TestKindFor(t *testing.T) {
	tests := []struct {
		phase phase.Phase
		mode  phase.Mode
		want  Kind
	}{
		{phase.Phase0, phase.ModeSensemaking, KindActivation},
		{phase.Phase1, phase.ModeExploration, KindScenarios},
		{phase.Phase1_5, phase.ModeConvergence, KindCompetitiveMap},
		{phase.Phase2, phase.ModeBrandArchaeology, KindBrandDNA},
		{phase.Phase3, phase.ModePrototyping, KindPrototypes},
		{phase.Phase3, phase.ModeEthicalGate, KindPrototypes},
		{phase.Phase3, phase.ModeRefusalRegister, KindRefusals},
		{phase.Phase4, phase.ModeNarrativeSynthesis, KindNarrativeSystem},
		{phase.Phase5, phase.ModeCommunityCocreation, KindCoCreation},
		{phase.Phase6, phase.ModeGuardian, KindGuardianReport},
	}
	for _, tt := range tests {
		t.Run(string(tt.phase)+"/"+string(tt.mode), func(t *testing.T) {
			got, err := KindFor(tt.phase, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := KindFor("9", phase.ModeGuardian)
	assert.Error(t, err)
}

func TestKind_SchemaNames(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range Kinds() {
		name := k.SchemaName()
		require.NotEmpty(t, name, k.String())
		assert.True(t, strings.HasSuffix(name, ".schema.json"))
		assert.False(t, seen[name], "schema %s assigned twice", name)
		seen[name] = true
	}
	assert.NotEqual(t, KindPrototypes.SchemaName(), KindRefusals.SchemaName())
}

func TestNewPayload_EveryKind(t *testing.T) {
	for _, k := range Kinds() {
		t.Run(k.String(), func(t *testing.T) {
			p, err := NewPayload(k, fixedNow)
			require.NoError(t, err)
			assert.Equal(t, k, p.Kind())
		})
	}

	_, err := NewPayload(Kind(99), fixedNow)
	assert.Error(t, err)
}

func TestNewPayload_FreshIDs(t *testing.T) {
	a, err := NewPayload(KindScenarios, fixedNow)
	require.NoError(t, err)
	b, err := NewPayload(KindScenarios, fixedNow)
	require.NoError(t, err)

	first := a.(Scenarios).Scenarios[0].ScenarioID
	second := b.(Scenarios).Scenarios[0].ScenarioID
	assert.True(t, strings.HasPrefix(first, "scenario-"))
	assert.NotEqual(t, first, second)
}

func TestNewPayload_Activation(t *testing.T) {
	p, err := NewPayload(KindActivation, fixedNow)
	require.NoError(t, err)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"activation_status": "active",
		"current_phase": 0,
		"context_set": true,
		"next_required_input": "decision_authority"
	}`, string(raw))
}

func TestNewPayload_ScenarioUserResponseIsNull(t *testing.T) {
	p, err := NewPayload(KindScenarios, fixedNow)
	require.NoError(t, err)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"user_response":null`)
}

func TestNewPayload_PrototypeGateHolds(t *testing.T) {
	p, err := NewPayload(KindPrototypes, fixedNow)
	require.NoError(t, err)

	proto := p.(Prototypes).Prototypes[0]
	assert.Equal(t, "HOLD", proto.EthicalGate.Status)
	assert.NotNil(t, proto.EthicalGate.ViolatedValues)
	require.Len(t, proto.EthicalGate.ReviewerDecisionRefs, 1)
	assert.Equal(t, "pending_review", proto.EthicalGate.ReviewerDecisionRefs[0].ValidatorRole)
}

func TestNewPayload_RefusalDate(t *testing.T) {
	p, err := NewPayload(KindRefusals, fixedNow)
	require.NoError(t, err)

	refusal := p.(Refusals).Refusals[0]
	assert.Equal(t, Timestamp(fixedNow), refusal.Date)
	assert.True(t, strings.HasPrefix(refusal.RefusalID, "refusal-"))
	assert.True(t, strings.HasPrefix(refusal.PrototypeID, "prototype-"))
	require.Len(t, refusal.EthicalGateAssessment.ReviewerDecisionRefs, 1)
	assert.Equal(t, "hold", refusal.EthicalGateAssessment.ReviewerDecisionRefs[0].Decision)
}

func TestQuarter(t *testing.T) {
	assert.Equal(t, "2026-Q1", Quarter(time.Date(2026, time.March, 31, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-Q2", Quarter(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-Q4", Quarter(time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)))
}

func TestArtifact_NewAndDecode(t *testing.T) {
	p, err := NewPayload(KindGuardianReport, fixedNow)
	require.NoError(t, err)

	a, err := New(Meta{
		ArtifactID:  "artifact-1",
		Phase:       phase.Phase6,
		Mode:        phase.ModeGuardian,
		GeneratedAt: Timestamp(fixedNow),
	}, p)
	require.NoError(t, err)
	assert.NotNil(t, a.Meta.RelatedArtifacts)

	decoded, err := a.Decode()
	require.NoError(t, err)
	report := decoded.(GuardianReport)
	assert.Equal(t, "2026-Q2", report.GuardianReport.Quarter)
	assert.Equal(t, "drift", report.GuardianReport.DivergenceLevel)
}

func TestArtifact_JSONRoundTrip(t *testing.T) {
	p, err := NewPayload(KindBrandDNA, fixedNow)
	require.NoError(t, err)
	a, err := New(Meta{
		ArtifactID:       "artifact-2",
		Phase:            phase.Phase2,
		Mode:             phase.ModeBrandArchaeology,
		GeneratedAt:      Timestamp(fixedNow),
		RelatedArtifacts: []string{"artifact-1"},
		EvidenceRefs:     []string{"session_input:user"},
	}, p)
	require.NoError(t, err)

	raw, err := a.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"generated_at": "2026-05-14T09:30:15Z"`)

	var back Artifact
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, a.Meta, back.Meta)
	assert.JSONEq(t, string(a.Payload), string(back.Payload))
}

func TestNew_RequiresPayload(t *testing.T) {
	_, err := New(Meta{}, nil)
	assert.Error(t, err)
}

func TestDecodePayload_Malformed(t *testing.T) {
	_, err := DecodePayload(KindScenarios, []byte(`{"scenarios": "nope"}`))
	assert.Error(t, err)
}
