package workflow

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specula/internal/orchestrator"
	"github.com/fyrsmithlabs/specula/internal/phase"
	"github.com/fyrsmithlabs/specula/internal/state"
	"github.com/fyrsmithlabs/specula/internal/storage"
	"github.com/fyrsmithlabs/specula/internal/telemetry"
)

var fixedNow = time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)

type harness struct {
	svc   Service
	store *storage.Badger
	files *state.FileStore
	dir   string
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewBadger(storage.BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)

	files := state.NewFileStore(filepath.Join(dir, "state.json"))
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	svc, err := NewService(files, store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return &harness{svc: svc, store: store, files: files, dir: dir}
}

func (h *harness) events(t *testing.T, projectID string) []storage.Event {
	t.Helper()
	evs, err := h.store.ListAudit(context.Background(), projectID, 0)
	require.NoError(t, err)
	out := make([]storage.Event, len(evs))
	for i, ev := range evs {
		out[i] = ev.Event
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func TestNewService_RequiresStateStore(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.Error(t, err)
}

func TestStep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out := filepath.Join(h.dir, "step.json")

	res, err := h.svc.Step(ctx, &StepRequest{UserInput: "Start project for sustainable brand", OutputFile: out})
	require.NoError(t, err)

	assert.Equal(t, "MODE: sensemaking | PHASE: 0\n"+
		"Project context is initialized and phase entry is active.\n"+
		"Who will validate phase outputs as the explicit human decision authority?", res.AssistantText)
	assert.Equal(t, phase.Phase0, res.Artifact.Meta.Phase)

	saved, err := h.files.Load()
	require.NoError(t, err)
	assert.Equal(t, res.State.ProjectID, saved.ProjectID)
	assert.Equal(t, res.Artifact.Meta.ArtifactID, saved.LatestArtifacts[phase.Phase0])

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "assistant_text")
	assert.Contains(t, doc, "artifact")
	assert.Contains(t, doc, "state")

	evs, err := h.store.ListAudit(ctx, saved.ProjectID, 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, storage.EventStepGenerated, evs[0].Event)
	assert.Equal(t, "0", evs[0].Phase)
	assert.Equal(t, "sensemaking", evs[0].Mode)
	assert.Equal(t, res.AssistantText, evs[0].Content)
}

func TestStep_InvalidRequest(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Step(context.Background(), &StepRequest{})
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, "invalid request: user_input is required", err.Error())

	_, err = h.svc.Step(context.Background(), &StepRequest{UserInput: "  "})
	require.ErrorIs(t, err, orchestrator.ErrEmptyInput)

	_, statErr := os.Stat(h.files.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestStep_GateRejectionIsAudited(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Step(ctx, &StepRequest{UserInput: "seed"})
	require.NoError(t, err)

	_, err = h.svc.Step(ctx, &StepRequest{UserInput: "jump", Phase: "2"})
	require.ErrorIs(t, err, orchestrator.ErrMissingPrerequisites)

	ps, err := h.svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, []storage.Event{storage.EventStepGenerated, storage.EventGateRejected}, h.events(t, ps.ProjectID))
	assert.Len(t, ps.ArtifactIndex, 1)
}

func TestValidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Step(ctx, &StepRequest{UserInput: "Start"})
	require.NoError(t, err)
	raw, err := json.Marshal(res.Artifact)
	require.NoError(t, err)

	ok, err := h.svc.Validate(ctx, &ValidateRequest{AssistantText: res.AssistantText, Artifact: raw, CurrentPhase: "0"})
	require.NoError(t, err)
	assert.True(t, ok.Valid)
	assert.Empty(t, ok.Errors)

	bad, err := h.svc.Validate(ctx, &ValidateRequest{
		ProjectID:     "project-x",
		AssistantText: "We recommend option A.",
		Artifact:      raw,
		CurrentPhase:  "1",
	})
	require.NoError(t, err)
	assert.False(t, bad.Valid)
	assert.NotEmpty(t, bad.Errors)
	assert.Contains(t, bad.Errors, "meta.phase `0` does not match current phase `1`")

	evs, err := h.store.ListAudit(ctx, DefaultValidationProjectID, 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, storage.EventValidationPassed, evs[0].Event)
	assert.Equal(t, "assistant text + artifact contract valid", evs[0].Content)
	assert.Equal(t, "0", evs[0].Phase)

	evs, err = h.store.ListAudit(ctx, "project-x", 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, storage.EventValidationFailed, evs[0].Event)
	assert.Contains(t, evs[0].Content, "; ")
}

func TestValidate_MissingArtifact(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Validate(context.Background(), &ValidateRequest{AssistantText: "x"})
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "artifact is required")
}

func TestAdvance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Step(ctx, &StepRequest{UserInput: "Start"})
	require.NoError(t, err)
	id := res.Artifact.Meta.ArtifactID

	first, err := h.svc.Advance(ctx, &AdvanceRequest{
		Phase: "0", ArtifactID: id, ValidatorID: "alice", ValidatorRole: "strategy_lead", ValidatedByHuman: boolPtr(true),
	})
	require.NoError(t, err)
	assert.False(t, first.Advanced)
	assert.Equal(t, "0", first.Phase)
	assert.Equal(t, "artifact `"+id+"` requires at least two human approvals to advance", first.Reason)
	assert.Equal(t, state.DecisionApprove, first.Record.Decision)
	assert.True(t, first.Record.ValidatedByHuman)

	second, err := h.svc.Advance(ctx, &AdvanceRequest{
		Phase: "0", ArtifactID: id, ValidatorID: "bob", ValidatorRole: "ethics_reviewer", Decision: "approve", ValidatedByHuman: boolPtr(true),
	})
	require.NoError(t, err)
	assert.True(t, second.Advanced)
	assert.Equal(t, "1", second.Phase)
	assert.Empty(t, second.Reason)

	ps, err := h.files.Load()
	require.NoError(t, err)
	assert.Equal(t, phase.Phase1, ps.CurrentPhase)
	assert.Equal(t, id, ps.PhaseValidatedArtifacts[phase.Phase0])
	assert.Len(t, ps.ValidationRecords[id], 2)

	recs, err := h.store.GetValidations(ctx, id)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	assert.Equal(t, []storage.Event{
		storage.EventStepGenerated,
		storage.EventValidationRecorded,
		storage.EventGateRejected,
		storage.EventValidationRecorded,
		storage.EventPhaseAdvanced,
	}, h.events(t, ps.ProjectID))

	evs, err := h.svc.Audit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "validator=bob; role=ethics_reviewer; decision=approve; human=true", evs[0].Content)
	assert.Equal(t, "advanced to phase 1", evs[1].Content)
}

func TestAdvance_InputErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Step(ctx, &StepRequest{UserInput: "Start"})
	require.NoError(t, err)
	id := res.Artifact.Meta.ArtifactID

	tests := []struct {
		name    string
		req     AdvanceRequest
		wantErr error
		msg     string
	}{
		{
			name:    "missing role",
			req:     AdvanceRequest{Phase: "0", ArtifactID: id},
			wantErr: ErrInvalidRequest,
			msg:     "invalid request: validator_role is required",
		},
		{
			name:    "bad decision",
			req:     AdvanceRequest{Phase: "0", ArtifactID: id, ValidatorRole: "r", Decision: "maybe"},
			wantErr: ErrInvalidRequest,
			msg:     "invalid request: decision must be one of [approve reject hold]",
		},
		{
			name:    "approve without human",
			req:     AdvanceRequest{Phase: "0", ArtifactID: id, ValidatorRole: "r", ValidatedByHuman: boolPtr(false)},
			wantErr: ErrApproveRequiresHuman,
		},
		{
			name:    "approve with human flag omitted",
			req:     AdvanceRequest{Phase: "0", ArtifactID: id, ValidatorID: "a", ValidatorRole: "r1", Decision: "approve"},
			wantErr: ErrApproveRequiresHuman,
		},
		{
			name:    "unknown phase",
			req:     AdvanceRequest{Phase: "9", ArtifactID: id, ValidatorRole: "r", ValidatedByHuman: boolPtr(true)},
			wantErr: phase.ErrUnknownPhase,
		},
		{
			name:    "wrong phase",
			req:     AdvanceRequest{Phase: "1", ArtifactID: id, ValidatorRole: "r", ValidatedByHuman: boolPtr(true)},
			wantErr: orchestrator.ErrPhaseMismatch,
			msg:     "phase mismatch: current phase is `0` but received `1`",
		},
		{
			name:    "unknown artifact",
			req:     AdvanceRequest{Phase: "0", ArtifactID: "artifact-missing", ValidatorRole: "r", ValidatedByHuman: boolPtr(true)},
			wantErr: orchestrator.ErrArtifactNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := h.svc.Advance(ctx, &req)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, err.Error())
			}
		})
	}

	ps, err := h.files.Load()
	require.NoError(t, err)
	assert.Empty(t, ps.ValidationRecords[id])
}

func TestAdvance_HoldWithoutHuman(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Step(ctx, &StepRequest{UserInput: "Start"})
	require.NoError(t, err)
	id := res.Artifact.Meta.ArtifactID

	out, err := h.svc.Advance(ctx, &AdvanceRequest{
		Phase: "0", ArtifactID: id, ValidatorID: "bot", ValidatorRole: "ops", Decision: "hold", ValidatedByHuman: boolPtr(false),
	})
	require.NoError(t, err)
	assert.False(t, out.Advanced)
	assert.False(t, out.Record.ValidatedByHuman)
	assert.Equal(t, state.DecisionHold, out.Record.Decision)
}

func TestAdvance_DuplicateSignature(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Step(ctx, &StepRequest{UserInput: "Start"})
	require.NoError(t, err)
	req := &AdvanceRequest{Phase: "0", ArtifactID: res.Artifact.Meta.ArtifactID, ValidatorRole: "strategy", ValidatedByHuman: boolPtr(true)}

	_, err = h.svc.Advance(ctx, req)
	require.NoError(t, err)
	_, err = h.svc.Advance(ctx, req)
	require.ErrorIs(t, err, state.ErrDuplicateSignature)
}

func TestAdvance_DuplicateInStore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Step(ctx, &StepRequest{UserInput: "Start"})
	require.NoError(t, err)
	id := res.Artifact.Meta.ArtifactID

	require.NoError(t, h.store.InsertValidation(ctx, state.ValidationInput{
		ArtifactID: id, ValidatorID: DefaultValidatorID, ValidatorRole: "strategy", Decision: "approve", ValidatedByHuman: true,
	}))

	_, err = h.svc.Advance(ctx, &AdvanceRequest{Phase: "0", ArtifactID: id, ValidatorRole: "strategy", ValidatedByHuman: boolPtr(true)})
	require.ErrorIs(t, err, storage.ErrDuplicateValidation)

	ps, err := h.files.Load()
	require.NoError(t, err)
	assert.Empty(t, ps.ValidationRecords[id])
}

func TestInitSchemaAndState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.InitSchema(ctx))

	ps, err := h.svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, phase.Phase0, ps.CurrentPhase)
	assert.Regexp(t, `^project-[0-9a-f-]{36}$`, ps.ProjectID)

	evs, err := h.svc.Audit(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestService_Telemetry(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	h := newHarness(t, WithTelemetry(tel.Telemetry))

	_, err := h.svc.Step(context.Background(), &StepRequest{UserInput: "Start"})
	require.NoError(t, err)

	tel.AssertSpanExists(t, "workflow.step")
	tel.AssertSpanExists(t, "orchestrator.generate_step")
}
