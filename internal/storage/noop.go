package storage

import (
	"context"

	"github.com/fyrsmithlabs/specula/internal/artifact"
	"github.com/fyrsmithlabs/specula/internal/state"
)

// Noop is the Store used when persistence is disabled.
type Noop struct{}

// NewNoop creates a no-op store.
func NewNoop() *Noop {
	return &Noop{}
}

func (Noop) InitSchema(context.Context) error { return nil }

func (Noop) UpsertProjectState(context.Context, *state.ProjectState) error { return nil }

func (Noop) InsertArtifact(context.Context, string, artifact.Artifact) error { return nil }

func (Noop) InsertValidation(context.Context, state.ValidationInput) error { return nil }

func (Noop) GetValidations(context.Context, string) ([]state.ValidationRecord, error) {
	return []state.ValidationRecord{}, nil
}

func (Noop) AppendAudit(context.Context, AuditEvent) error { return nil }

func (Noop) ListAudit(context.Context, string, int) ([]AuditEvent, error) {
	return []AuditEvent{}, nil
}

func (Noop) Close() error { return nil }

var _ Store = (*Noop)(nil)
