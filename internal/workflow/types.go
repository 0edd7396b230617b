package workflow

import (
	"encoding/json"

	"github.com/fyrsmithlabs/specula/internal/artifact"
	"github.com/fyrsmithlabs/specula/internal/orchestrator"
	"github.com/fyrsmithlabs/specula/internal/state"
)

// DefaultValidationProjectID is the audit project used by Validate when
// the request names none.
const DefaultValidationProjectID = "project-validation"

// DefaultValidatorID is the validator recorded when the request names none.
const DefaultValidatorID = "human-validator"

// StepRequest asks for one generated step.
type StepRequest struct {
	// UserInput is the latest human input.
	UserInput string `json:"user_input" validate:"required"`

	// Phase overrides the current phase (optional).
	Phase string `json:"phase,omitempty"`

	// Mode overrides the phase's default mode (optional).
	Mode string `json:"mode,omitempty"`

	// OutputFile receives the step result as JSON. Only the CLI sets it.
	OutputFile string `json:"-"`
}

// StepResponse is the result of a generated step.
type StepResponse struct {
	AssistantText  string                      `json:"assistant_text"`
	Artifact       artifact.Artifact           `json:"artifact"`
	Degraded       bool                        `json:"degraded,omitempty"`
	FallbackReason orchestrator.FallbackReason `json:"fallback_reason,omitempty"`
	State          *state.ProjectState         `json:"state"`
}

// stepOutput is the document written to StepRequest.OutputFile.
type stepOutput struct {
	AssistantText string              `json:"assistant_text"`
	Artifact      artifact.Artifact   `json:"artifact"`
	State         *state.ProjectState `json:"state"`
}

// ValidateRequest checks an externally held step against the text policy
// and the artifact schemas.
type ValidateRequest struct {
	// ProjectID attributes the audit event. Defaults to
	// DefaultValidationProjectID.
	ProjectID string `json:"project_id,omitempty"`

	// CurrentPhase, when set, must match the artifact's phase.
	CurrentPhase string `json:"current_phase,omitempty"`

	AssistantText string          `json:"assistant_text"`
	Artifact      json.RawMessage `json:"artifact" validate:"required"`
}

// ValidateResponse lists every policy and schema issue found.
type ValidateResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// AdvanceRequest records one validator decision and, when the approval
// policy is met, advances the project.
type AdvanceRequest struct {
	Phase         string `json:"phase" validate:"required"`
	ArtifactID    string `json:"artifact_id" validate:"required"`
	ValidatorID   string `json:"validator_id,omitempty"`
	ValidatorRole string `json:"validator_role" validate:"required"`
	Decision      string `json:"decision,omitempty" validate:"omitempty,oneof=approve reject hold"`

	// ValidatedByHuman must be set explicitly for an approval; an omitted
	// flag is treated as false.
	ValidatedByHuman *bool `json:"validated_by_human,omitempty"`
}

func (r *AdvanceRequest) human() bool {
	return r.ValidatedByHuman != nil && *r.ValidatedByHuman
}

// AdvanceResponse reports the recorded validation and the outcome of the
// transition attempt.
type AdvanceResponse struct {
	Record state.ValidationRecord `json:"record"`

	// Advanced is false when the approval policy is not yet satisfied.
	Advanced bool `json:"advanced"`

	// Phase is the project's current phase after the request.
	Phase string `json:"phase"`

	// Reason explains why the project did not advance.
	Reason string `json:"reason,omitempty"`
}
