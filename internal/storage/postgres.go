package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specula/internal/artifact"
	"github.com/fyrsmithlabs/specula/internal/state"
)

//go:embed schema.sql
var schemaSQL string

// db is the subset of *pgxpool.Pool the adapter uses.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Postgres stores runtime records in PostgreSQL.
type Postgres struct {
	db     db
	logger *zap.Logger
	now    func() time.Time
}

// NewPostgres creates a pooled Postgres store. Connections are opened
// lazily on first use.
func NewPostgres(ctx context.Context, databaseURL string, logger *zap.Logger) (*Postgres, error) {
	if databaseURL == "" {
		return nil, ErrDatabaseURLRequired
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return newPostgres(pool, logger), nil
}

func newPostgres(conn db, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{
		db:     conn,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// InitSchema creates every table and index if missing.
func (p *Postgres) InitSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// UpsertProjectState inserts the project or updates its current phase.
func (p *Postgres) UpsertProjectState(ctx context.Context, s *state.ProjectState) error {
	_, err := p.db.Exec(ctx, `
INSERT INTO projects (project_id, name, current_phase, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (project_id)
DO UPDATE SET current_phase = EXCLUDED.current_phase`,
		s.ProjectID, s.ProjectID, string(s.CurrentPhase), p.now())
	if err != nil {
		return fmt.Errorf("failed to upsert project `%s`: %w", s.ProjectID, err)
	}
	return nil
}

// InsertArtifact stores a and its refusal or guardian rows.
func (p *Postgres) InsertArtifact(ctx context.Context, projectID string, a artifact.Artifact) error {
	meta := a.Meta
	_, err := p.db.Exec(ctx, `
INSERT INTO artifacts
  (artifact_id, project_id, phase, mode, generated_at, validated_by_human, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
ON CONFLICT (artifact_id) DO NOTHING`,
		meta.ArtifactID, projectID, string(meta.Phase), string(meta.Mode),
		meta.GeneratedAt.UTC(), meta.ValidatedByHuman, string(a.Payload))
	if err != nil {
		return fmt.Errorf("failed to insert artifact `%s`: %w", meta.ArtifactID, err)
	}

	refusals, reports := secondaryRows(projectID, a)
	for _, r := range refusals {
		_, err := p.db.Exec(ctx, `
INSERT INTO refusal_register
  (refusal_id, project_id, prototype_id, violated_value, opportunity_cost, identity_signal, refusal_date)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (refusal_id) DO NOTHING`,
			r.RefusalID, r.ProjectID, r.PrototypeID, r.ViolatedValue, r.OpportunityCost, r.IdentitySignal, r.RefusalDate.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert refusal `%s`: %w", r.RefusalID, err)
		}
	}
	for _, g := range reports {
		report, err := json.Marshal(g.Report)
		if err != nil {
			return fmt.Errorf("failed to marshal guardian report: %w", err)
		}
		_, err = p.db.Exec(ctx, `
INSERT INTO guardian_reports
  (guardian_id, project_id, quarter, divergence_level, recommended_action, report, generated_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
ON CONFLICT (guardian_id) DO NOTHING`,
			g.GuardianID, g.ProjectID, g.Quarter, g.DivergenceLevel, g.RecommendedAction, string(report), g.GeneratedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert guardian report `%s`: %w", g.GuardianID, err)
		}
	}
	return nil
}

// InsertValidation stores a validation. The (artifact, validator) pair is
// unique.
func (p *Postgres) InsertValidation(ctx context.Context, in state.ValidationInput) error {
	rec, err := normalizeValidation(in, p.now())
	if err != nil {
		return err
	}

	tag, err := p.db.Exec(ctx, `
INSERT INTO validations
  (validation_id, artifact_id, validator_id, validator_role, decision, validated_at, validated_by_human)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (artifact_id, validator_id) DO NOTHING`,
		uuid.NewString(), in.ArtifactID, rec.ValidatorID, rec.ValidatorRole, string(rec.Decision), rec.ValidatedAt, rec.ValidatedByHuman)
	if err != nil {
		return fmt.Errorf("failed to insert validation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w for artifact `%s` and validator `%s`", ErrDuplicateValidation, in.ArtifactID, rec.ValidatorID)
	}
	return nil
}

// GetValidations returns the validations of artifactID ordered by time.
func (p *Postgres) GetValidations(ctx context.Context, artifactID string) ([]state.ValidationRecord, error) {
	rows, err := p.db.Query(ctx, `
SELECT validator_id, validator_role, decision, validated_by_human, validated_at
FROM validations
WHERE artifact_id = $1
ORDER BY validated_at ASC`, artifactID)
	if err != nil {
		return nil, fmt.Errorf("failed to query validations: %w", err)
	}
	defer rows.Close()

	out := []state.ValidationRecord{}
	for rows.Next() {
		var (
			rec      state.ValidationRecord
			decision string
		)
		if err := rows.Scan(&rec.ValidatorID, &rec.ValidatorRole, &decision, &rec.ValidatedByHuman, &rec.ValidatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan validation: %w", err)
		}
		rec.Decision = state.Decision(decision)
		rec.ValidatedAt = rec.ValidatedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AppendAudit inserts ev. Projects unknown to the store get a placeholder
// row so the audit foreign key holds.
func (p *Postgres) AppendAudit(ctx context.Context, ev AuditEvent) error {
	ev = fillAudit(ev, p.now())

	if _, err := p.db.Exec(ctx, `
INSERT INTO projects (project_id, name, current_phase, created_at)
VALUES ($1, $1, $2, $3)
ON CONFLICT (project_id) DO NOTHING`,
		ev.ProjectID, "0", ev.CreatedAt); err != nil {
		return fmt.Errorf("failed to ensure project `%s`: %w", ev.ProjectID, err)
	}

	_, err := p.db.Exec(ctx, `
INSERT INTO audit_logs (event_id, project_id, phase, mode, event, content, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.EventID, ev.ProjectID, nullable(ev.Phase), nullable(ev.Mode), string(ev.Event), ev.Content, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit event %s: %w", ev.Event, err)
	}
	return nil
}

// ListAudit returns the newest limit events of projectID, oldest first.
func (p *Postgres) ListAudit(ctx context.Context, projectID string, limit int) ([]AuditEvent, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := p.db.Query(ctx, `
SELECT event_id, project_id, phase, mode, event, content, created_at
FROM audit_logs
WHERE project_id = $1
ORDER BY created_at DESC, event_id DESC
LIMIT $2`, projectID, lim)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	out := []AuditEvent{}
	for rows.Next() {
		var (
			ev          AuditEvent
			phase, mode *string
			event       string
		)
		if err := rows.Scan(&ev.EventID, &ev.ProjectID, &phase, &mode, &event, &ev.Content, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if phase != nil {
			ev.Phase = *phase
		}
		if mode != nil {
			ev.Mode = *mode
		}
		ev.Event = Event(event)
		ev.CreatedAt = ev.CreatedAt.UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}

func fillAudit(ev AuditEvent, now time.Time) AuditEvent {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now
	}
	ev.CreatedAt = ev.CreatedAt.UTC()
	return ev
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ Store = (*Postgres)(nil)
