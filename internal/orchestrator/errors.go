package orchestrator

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyInput is returned when a step has no user input.
	ErrEmptyInput = errors.New("user_input cannot be empty")

	// ErrPhaseMismatch is returned when validations target a phase other
	// than the current one.
	ErrPhaseMismatch = errors.New("phase mismatch")

	// ErrArtifactNotFound is returned when the validated artifact is not in state.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrInsufficientApprovals is returned when an artifact lacks human approvals.
	ErrInsufficientApprovals = errors.New("insufficient human approvals")

	// ErrRoleDiversity is returned when approvals come from too few roles.
	ErrRoleDiversity = errors.New("insufficient validator role diversity")

	// ErrMissingPrerequisites is returned when a phase is drafted too early.
	ErrMissingPrerequisites = errors.New("missing validated prerequisite phases")
)

var violationErrors = map[ViolationType]error{
	ViolationPhaseMismatch:         ErrPhaseMismatch,
	ViolationArtifactMissing:       ErrArtifactNotFound,
	ViolationInsufficientApprovals: ErrInsufficientApprovals,
	ViolationRoleDiversity:         ErrRoleDiversity,
	ViolationMissingPrerequisites:  ErrMissingPrerequisites,
}

// GateError reports a transition rejected by a gate. It unwraps to the
// sentinel matching the first violation's type.
type GateError struct {
	Gate       string
	Violations []Violation
}

func (e *GateError) Error() string {
	descriptions := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		descriptions[i] = v.Description
	}
	return strings.Join(descriptions, "; ")
}

func (e *GateError) Unwrap() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return violationErrors[e.Violations[0].Type]
}

// Policy stages.
const (
	StageAssistantText = "assistant_text"
	StageSchema        = "schema"
)

// PolicyError reports a generated step that failed the text policy or the
// artifact schema. Nothing is committed when it is returned.
type PolicyError struct {
	Stage      string
	Violations []string
}

func (e *PolicyError) Error() string {
	joined := strings.Join(e.Violations, "\n")
	if e.Stage == StageAssistantText {
		return "assistant text validation failed:\n" + joined
	}
	return joined
}
