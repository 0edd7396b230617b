package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/specula/internal/orchestrator"
	"github.com/fyrsmithlabs/specula/internal/phase"
	"github.com/fyrsmithlabs/specula/internal/state"
	"github.com/fyrsmithlabs/specula/internal/storage"
	"github.com/fyrsmithlabs/specula/internal/workflow"
)

var (
	badRequestErrors = []error{
		workflow.ErrInvalidRequest,
		workflow.ErrApproveRequiresHuman,
		orchestrator.ErrEmptyInput,
		phase.ErrUnknownPhase,
		phase.ErrUnknownMode,
		state.ErrEmptyValidatorID,
		state.ErrEmptyValidatorRole,
		state.ErrInvalidDecision,
	}

	// policyErrors are gate rejections.
	policyErrors = []error{
		orchestrator.ErrPhaseMismatch,
		orchestrator.ErrArtifactNotFound,
		orchestrator.ErrMissingPrerequisites,
		orchestrator.ErrInsufficientApprovals,
		orchestrator.ErrRoleDiversity,
	}

	conflictErrors = []error{
		state.ErrDuplicateSignature,
		storage.ErrDuplicateValidation,
	}
)

func matches(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusFor maps a workflow error to an HTTP status.
func statusFor(err error) int {
	switch {
	case matches(err, badRequestErrors):
		return http.StatusBadRequest
	case matches(err, conflictErrors):
		return http.StatusConflict
	case matches(err, policyErrors):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// toHTTPError converts err for echo. Internal errors are logged by the
// caller and not echoed back.
func toHTTPError(err error) *echo.HTTPError {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		return echo.NewHTTPError(status, "internal error").SetInternal(err)
	}
	return echo.NewHTTPError(status, err.Error()).SetInternal(err)
}
