package workflow

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/specula/internal/orchestrator"
	"github.com/fyrsmithlabs/specula/internal/storage"
)

// auditRecorder writes gate rejections to the audit log.
type auditRecorder struct {
	store storage.Store
}

func (r *auditRecorder) RecordViolation(ctx context.Context, projectID string, v orchestrator.Violation) error {
	return r.store.AppendAudit(ctx, storage.AuditEvent{
		ProjectID: projectID,
		Phase:     string(v.Phase),
		Event:     storage.EventGateRejected,
		Content:   fmt.Sprintf("gate=%s; type=%s; severity=%s; %s", v.Gate, v.Type, v.Severity, v.Description),
		CreatedAt: v.DetectedAt,
	})
}
