// Package storage persists projects, artifacts, validations and audit
// events alongside the state file.
//
// Three adapters implement Store:
//   - Noop: persistence disabled, every call succeeds
//   - Postgres: relational store backed by a pgx connection pool
//   - Badger: embedded key-value store, on disk or in memory
//
// Open selects the adapter from Config.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/specula/internal/artifact"
	"github.com/fyrsmithlabs/specula/internal/state"
)

var (
	// ErrDuplicateValidation is returned when a validator signs the same
	// artifact twice.
	ErrDuplicateValidation = errors.New("duplicate validator signature")

	// ErrDatabaseURLRequired is returned when the postgres driver is
	// selected without a database URL.
	ErrDatabaseURLRequired = errors.New("database URL is required")

	// ErrUnknownDriver is returned for an unsupported storage driver.
	ErrUnknownDriver = errors.New("unsupported storage driver")
)

// Event names an audit log entry.
type Event string

const (
	EventStepGenerated      Event = "STEP_GENERATED"
	EventValidationFailed   Event = "VALIDATION_FAILED"
	EventValidationPassed   Event = "VALIDATION_PASSED"
	EventValidationRecorded Event = "VALIDATION_RECORDED"
	EventPhaseAdvanced      Event = "PHASE_ADVANCED"
	EventGateRejected       Event = "GATE_REJECTED"
)

// AuditEvent is one append-only audit log entry. Phase and Mode are
// optional.
type AuditEvent struct {
	EventID   string    `json:"event_id"`
	ProjectID string    `json:"project_id"`
	Phase     string    `json:"phase,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Event     Event     `json:"event"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists the runtime records of a project.
type Store interface {
	// InitSchema prepares the backing store. It is idempotent.
	InitSchema(ctx context.Context) error

	// UpsertProjectState records the project and its current phase.
	UpsertProjectState(ctx context.Context, s *state.ProjectState) error

	// InsertArtifact stores an artifact; inserting a known id is a no-op.
	// Refusal registers and guardian reports are also indexed on their own.
	InsertArtifact(ctx context.Context, projectID string, a artifact.Artifact) error

	// InsertValidation stores a validator's decision. A second signature
	// by the same validator returns ErrDuplicateValidation.
	InsertValidation(ctx context.Context, in state.ValidationInput) error

	// GetValidations returns an artifact's validations, oldest first.
	GetValidations(ctx context.Context, artifactID string) ([]state.ValidationRecord, error)

	// AppendAudit appends an audit event. EventID and CreatedAt are
	// assigned when empty.
	AppendAudit(ctx context.Context, ev AuditEvent) error

	// ListAudit returns a project's most recent audit events, oldest first.
	// A non-positive limit returns every event.
	ListAudit(ctx context.Context, projectID string, limit int) ([]AuditEvent, error)

	// Close releases the store's resources.
	Close() error
}

// refusalRow and guardianRow are the secondary indexes written for
// refusal-register and guardian artifacts.
type refusalRow struct {
	RefusalID       string    `json:"refusal_id"`
	ProjectID       string    `json:"project_id"`
	PrototypeID     string    `json:"prototype_id"`
	ViolatedValue   string    `json:"violated_value"`
	OpportunityCost string    `json:"opportunity_cost"`
	IdentitySignal  string    `json:"identity_signal"`
	RefusalDate     time.Time `json:"refusal_date"`
}

type guardianRow struct {
	GuardianID        string          `json:"guardian_id"`
	ProjectID         string          `json:"project_id"`
	Quarter           string          `json:"quarter"`
	DivergenceLevel   string          `json:"divergence_level"`
	RecommendedAction string          `json:"recommended_action"`
	Report            artifact.Report `json:"report"`
	GeneratedAt       time.Time       `json:"generated_at"`
}

// secondaryRows extracts refusal and guardian rows from a. Artifacts of
// other kinds, or whose payload does not decode, yield nothing.
func secondaryRows(projectID string, a artifact.Artifact) ([]refusalRow, []guardianRow) {
	payload, err := a.Decode()
	if err != nil {
		return nil, nil
	}

	switch p := payload.(type) {
	case artifact.Refusals:
		rows := make([]refusalRow, 0, len(p.Refusals))
		for _, r := range p.Refusals {
			rows = append(rows, refusalRow{
				RefusalID:       r.RefusalID,
				ProjectID:       projectID,
				PrototypeID:     r.PrototypeID,
				ViolatedValue:   r.ViolatedValue,
				OpportunityCost: r.OpportunityCost,
				IdentitySignal:  r.IdentitySignal,
				RefusalDate:     r.Date,
			})
		}
		return rows, nil

	case artifact.GuardianReport:
		report := p.GuardianReport
		return nil, []guardianRow{{
			GuardianID:        "guardian-" + a.Meta.ArtifactID,
			ProjectID:         projectID,
			Quarter:           report.Quarter,
			DivergenceLevel:   report.DivergenceLevel,
			RecommendedAction: report.RecommendedAction,
			Report:            report,
			GeneratedAt:       a.Meta.GeneratedAt,
		}}
	}
	return nil, nil
}

// normalizeValidation checks in the way the state does and returns the
// record to persist.
func normalizeValidation(in state.ValidationInput, now time.Time) (state.ValidationRecord, error) {
	scratch := state.New("storage")
	return scratch.AddValidationRecord(in, now)
}
