package orchestrator

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/specula/internal/artifact"
	"github.com/fyrsmithlabs/specula/internal/phase"
	"github.com/fyrsmithlabs/specula/internal/state"
)

// StepRequest asks for one generation step. Empty Phase and Mode fall back
// to the current phase and its default mode.
type StepRequest struct {
	UserInput string `json:"user_input"`
	Phase     string `json:"phase,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

// StepResult is the outcome of a committed generation step.
type StepResult struct {
	AssistantText string            `json:"assistant_text"`
	Artifact      artifact.Artifact `json:"artifact"`

	// Degraded is set when a configured backend was bypassed and the
	// template text was used instead.
	Degraded       bool           `json:"degraded"`
	FallbackReason FallbackReason `json:"fallback_reason,omitempty"`
}

// FallbackReason explains why the template text replaced backend output.
type FallbackReason string

const (
	FallbackBackendError   FallbackReason = "backend_error"
	FallbackEmptyResponse  FallbackReason = "empty_response"
	FallbackPolicyRejected FallbackReason = "policy_rejected"
)

// Transition is what a gate inspects. Validations is empty for generation
// transitions.
type Transition struct {
	State       *state.ProjectState
	Phase       phase.Phase
	ArtifactID  string
	Validations []state.ValidationRecord
}

// Gate validates a transition before it mutates state.
type Gate interface {
	Name() string
	Check(ctx context.Context, t *Transition) ([]Violation, error)
}

// ViolationRecorder receives every violation that aborted a transition.
type ViolationRecorder interface {
	RecordViolation(ctx context.Context, projectID string, v Violation) error
}

// Violation represents a rejected transition.
type Violation struct {
	Type        ViolationType `json:"type"`
	Gate        string        `json:"gate"`
	Phase       phase.Phase   `json:"phase"`
	ArtifactID  string        `json:"artifact_id,omitempty"`
	Description string        `json:"description"`
	Severity    Severity      `json:"severity"`
	DetectedAt  time.Time     `json:"detected_at"`
}

// ViolationType categorizes gate rejections.
type ViolationType string

const (
	ViolationPhaseMismatch         ViolationType = "phase_mismatch"
	ViolationArtifactMissing       ViolationType = "artifact_missing"
	ViolationInsufficientApprovals ViolationType = "insufficient_approvals"
	ViolationRoleDiversity         ViolationType = "role_diversity"
	ViolationMissingPrerequisites  ViolationType = "missing_prerequisites"
)

// Severity indicates how serious a violation is.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)
