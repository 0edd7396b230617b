package http

import (
	"github.com/fyrsmithlabs/specula/internal/storage"
	"github.com/fyrsmithlabs/specula/internal/telemetry"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Version   string                  `json:"version,omitempty"`
	Telemetry *telemetry.HealthStatus `json:"telemetry,omitempty"`
}

// InitDBResponse is the response body for POST /api/v1/init-db.
type InitDBResponse struct {
	Status string `json:"status"`
}

// AuditResponse is the response body for GET /api/v1/audit.
type AuditResponse struct {
	ProjectID string               `json:"project_id"`
	Events    []storage.AuditEvent `json:"events"`
}
