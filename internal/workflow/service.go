package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specula/internal/generation"
	"github.com/fyrsmithlabs/specula/internal/orchestrator"
	"github.com/fyrsmithlabs/specula/internal/phase"
	"github.com/fyrsmithlabs/specula/internal/policy"
	"github.com/fyrsmithlabs/specula/internal/schema"
	"github.com/fyrsmithlabs/specula/internal/state"
	"github.com/fyrsmithlabs/specula/internal/storage"
	"github.com/fyrsmithlabs/specula/internal/telemetry"
)

const instrumentationName = "github.com/fyrsmithlabs/specula/internal/workflow"

var (
	// ErrInvalidRequest is returned when a request fails field validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrApproveRequiresHuman is returned for an approval not made by a
	// human validator.
	ErrApproveRequiresHuman = errors.New("approve decision requires --validated-by-human")
)

// Service runs the Specula use cases against the state file and the
// persistent store.
type Service interface {
	// Step generates one artifact for the current (or requested) phase.
	Step(ctx context.Context, req *StepRequest) (*StepResponse, error)

	// Validate checks assistant text and an artifact document.
	Validate(ctx context.Context, req *ValidateRequest) (*ValidateResponse, error)

	// Advance records a validation and attempts the phase transition.
	Advance(ctx context.Context, req *AdvanceRequest) (*AdvanceResponse, error)

	// InitSchema prepares the persistent store.
	InitSchema(ctx context.Context) error

	// State returns the persisted project state.
	State(ctx context.Context) (*state.ProjectState, error)

	// Audit returns the newest limit audit events of the project.
	Audit(ctx context.Context, limit int) ([]storage.AuditEvent, error)

	// Close releases the persistent store.
	Close() error
}

// Option configures the service.
type Option func(*service)

// WithBackend sets the assistant text backend.
func WithBackend(b generation.Backend) Option {
	return func(s *service) { s.backend = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTelemetry routes spans and metrics through tel.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(s *service) { s.tel = tel }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSchemaValidator overrides the embedded artifact schemas.
func WithSchemaValidator(v *schema.Validator) Option {
	return func(s *service) { s.schemas = v }
}

// service implements the Service interface.
type service struct {
	states   *state.FileStore
	store    storage.Store
	backend  generation.Backend
	schemas  *schema.Validator
	validate *validator.Validate
	logger   *zap.Logger
	tel      *telemetry.Telemetry
	tracer   trace.Tracer
	now      func() time.Time

	// mu serializes state file read/modify/write.
	mu sync.Mutex

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewService creates the workflow service. A nil store disables
// persistence.
func NewService(states *state.FileStore, store storage.Store, opts ...Option) (Service, error) {
	if states == nil {
		return nil, errors.New("state file store is required")
	}
	if store == nil {
		store = storage.NewNoop()
	}

	s := &service{
		states: states,
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.schemas == nil {
		v, err := schema.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to load artifact schemas: %w", err)
		}
		s.schemas = v
	}
	if s.tel != nil {
		s.tracer = s.tel.Tracer(instrumentationName)
	} else {
		s.tracer = otel.Tracer(instrumentationName)
	}
	s.validate = newValidator()
	return s, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs struct validation and reports every failing field.
func (s *service) check(req interface{}) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	msgs := make([]string, len(fields))
	for i, fe := range fields {
		switch fe.Tag() {
		case "required":
			msgs[i] = fe.Field() + " is required"
		case "oneof":
			msgs[i] = fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
		default:
			msgs[i] = fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
}

func (s *service) orchestrator(ps *state.ProjectState) (*orchestrator.Orchestrator, error) {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(s.logger),
		orchestrator.WithClock(s.now),
		orchestrator.WithSchemaValidator(s.schemas),
		orchestrator.WithRecorder(&auditRecorder{store: s.store}),
	}
	if s.backend != nil {
		opts = append(opts, orchestrator.WithBackend(s.backend))
	}
	if s.tel != nil {
		opts = append(opts, orchestrator.WithTelemetry(s.tel))
	}
	return orchestrator.New(ps, opts...)
}

func (s *service) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	if err := s.store.InitSchema(ctx); err != nil {
		return err
	}
	s.schemaReady = true
	return nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Step generates one artifact, saves the state file and mirrors the result
// into the store.
func (s *service) Step(ctx context.Context, req *StepRequest) (*StepResponse, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.step")
	defer span.End()

	if err := s.check(req); err != nil {
		return nil, fail(span, err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fail(span, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ps, err := s.states.Load()
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.String("project.id", ps.ProjectID))

	orch, err := s.orchestrator(ps)
	if err != nil {
		return nil, fail(span, err)
	}
	res, err := orch.GenerateStep(ctx, orchestrator.StepRequest{
		UserInput: req.UserInput,
		Phase:     req.Phase,
		Mode:      req.Mode,
	})
	if err != nil {
		return nil, fail(span, err)
	}

	if err := s.states.Save(ps); err != nil {
		return nil, fail(span, err)
	}
	if req.OutputFile != "" {
		if err := writeJSON(req.OutputFile, stepOutput{AssistantText: res.AssistantText, Artifact: res.Artifact, State: ps}); err != nil {
			return nil, fail(span, err)
		}
	}

	meta := res.Artifact.Meta
	if err := s.store.UpsertProjectState(ctx, ps); err != nil {
		return nil, fail(span, err)
	}
	if err := s.store.InsertArtifact(ctx, ps.ProjectID, res.Artifact); err != nil {
		return nil, fail(span, err)
	}
	if err := s.store.AppendAudit(ctx, storage.AuditEvent{
		ProjectID: ps.ProjectID,
		Phase:     string(meta.Phase),
		Mode:      string(meta.Mode),
		Event:     storage.EventStepGenerated,
		Content:   res.AssistantText,
	}); err != nil {
		return nil, fail(span, err)
	}

	s.logger.Info("step generated",
		zap.String("project_id", ps.ProjectID),
		zap.String("artifact_id", meta.ArtifactID),
		zap.String("phase", meta.Phase.String()),
		zap.String("mode", meta.Mode.String()),
		zap.Bool("degraded", res.Degraded),
	)
	return &StepResponse{
		AssistantText:  res.AssistantText,
		Artifact:       res.Artifact,
		Degraded:       res.Degraded,
		FallbackReason: res.FallbackReason,
		State:          ps,
	}, nil
}

// Validate checks assistant text against the text policy and the artifact
// against its schema. Issues are data, not errors; the result is audited
// either way.
func (s *service) Validate(ctx context.Context, req *ValidateRequest) (*ValidateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.validate")
	defer span.End()

	if err := s.check(req); err != nil {
		return nil, fail(span, err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fail(span, err)
	}

	projectID := strings.TrimSpace(req.ProjectID)
	if projectID == "" {
		projectID = DefaultValidationProjectID
	}

	issues := []string{}
	issues = append(issues, policy.ValidateAssistantText(req.AssistantText)...)
	issues = append(issues, s.schemas.Validate(req.Artifact, strings.TrimSpace(req.CurrentPhase))...)

	var doc struct {
		Meta struct {
			Phase string `json:"phase"`
			Mode  string `json:"mode"`
		} `json:"meta"`
	}
	_ = json.Unmarshal(req.Artifact, &doc)

	ev := storage.AuditEvent{
		ProjectID: projectID,
		Phase:     doc.Meta.Phase,
		Mode:      doc.Meta.Mode,
		Event:     storage.EventValidationPassed,
		Content:   "assistant text + artifact contract valid",
	}
	if len(issues) > 0 {
		ev.Event = storage.EventValidationFailed
		ev.Content = strings.Join(issues, "; ")
	}
	if err := s.store.AppendAudit(ctx, ev); err != nil {
		return nil, fail(span, err)
	}

	span.SetAttributes(attribute.Int("issues", len(issues)))
	return &ValidateResponse{Valid: len(issues) == 0, Errors: issues}, nil
}

// Advance records one validation and advances the project once the
// approval policy holds. A policy shortfall is not an error: the
// validation stays recorded and the response reports Advanced=false.
func (s *service) Advance(ctx context.Context, req *AdvanceRequest) (*AdvanceResponse, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.advance")
	defer span.End()

	if err := s.check(req); err != nil {
		return nil, fail(span, err)
	}

	validatorID := strings.TrimSpace(req.ValidatorID)
	if validatorID == "" {
		validatorID = DefaultValidatorID
	}
	decision := state.DecisionApprove
	if req.Decision != "" {
		d, err := state.ParseDecision(req.Decision)
		if err != nil {
			return nil, fail(span, err)
		}
		decision = d
	}
	human := req.human()
	if decision == state.DecisionApprove && !human {
		return nil, fail(span, ErrApproveRequiresHuman)
	}
	p, err := phase.Parse(req.Phase)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fail(span, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ps, err := s.states.Load()
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(
		attribute.String("project.id", ps.ProjectID),
		attribute.String("phase", string(p)),
		attribute.String("artifact.id", req.ArtifactID),
	)

	orch, err := s.orchestrator(ps)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := orch.CheckTarget(ctx, p, req.ArtifactID); err != nil {
		return nil, fail(span, err)
	}

	in := state.ValidationInput{
		ArtifactID:       req.ArtifactID,
		ValidatorID:      validatorID,
		ValidatorRole:    req.ValidatorRole,
		Decision:         string(decision),
		ValidatedByHuman: human,
	}
	rec, err := ps.AddValidationRecord(in, s.now())
	if err != nil {
		return nil, fail(span, err)
	}

	// The artifact row must exist before a validation can reference it.
	if err := s.store.InsertArtifact(ctx, ps.ProjectID, ps.ArtifactIndex[req.ArtifactID]); err != nil {
		return nil, fail(span, err)
	}
	if err := s.store.InsertValidation(ctx, in); err != nil {
		return nil, fail(span, err)
	}
	if err := s.persist(ctx, ps); err != nil {
		return nil, fail(span, err)
	}
	if err := s.store.AppendAudit(ctx, storage.AuditEvent{
		ProjectID: ps.ProjectID,
		Phase:     string(p),
		Event:     storage.EventValidationRecorded,
		Content: fmt.Sprintf("validator=%s; role=%s; decision=%s; human=%t",
			rec.ValidatorID, rec.ValidatorRole, rec.Decision, rec.ValidatedByHuman),
	}); err != nil {
		return nil, fail(span, err)
	}

	resp := &AdvanceResponse{Record: rec, Phase: string(ps.CurrentPhase)}

	next, err := orch.AdvanceAfterValidation(ctx, p, req.ArtifactID, ps.ValidationSnapshot(req.ArtifactID))
	if errors.Is(err, orchestrator.ErrInsufficientApprovals) || errors.Is(err, orchestrator.ErrRoleDiversity) {
		resp.Reason = err.Error()
		s.logger.Info("validation recorded, phase not advanced",
			zap.String("project_id", ps.ProjectID),
			zap.String("artifact_id", req.ArtifactID),
			zap.String("reason", resp.Reason),
		)
		span.SetAttributes(attribute.Bool("advanced", false))
		return resp, nil
	}
	if err != nil {
		return nil, fail(span, err)
	}

	if err := s.persist(ctx, ps); err != nil {
		return nil, fail(span, err)
	}
	if err := s.store.AppendAudit(ctx, storage.AuditEvent{
		ProjectID: ps.ProjectID,
		Phase:     string(p),
		Event:     storage.EventPhaseAdvanced,
		Content:   "advanced to phase " + string(next),
	}); err != nil {
		return nil, fail(span, err)
	}

	resp.Advanced = true
	resp.Phase = string(next)
	span.SetAttributes(attribute.Bool("advanced", true))
	return resp, nil
}

// persist saves the state file and mirrors the project row.
func (s *service) persist(ctx context.Context, ps *state.ProjectState) error {
	if err := s.states.Save(ps); err != nil {
		return err
	}
	return s.store.UpsertProjectState(ctx, ps)
}

// InitSchema prepares the persistent store.
func (s *service) InitSchema(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "workflow.init_schema")
	defer span.End()

	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if err := s.store.InitSchema(ctx); err != nil {
		return fail(span, err)
	}
	s.schemaReady = true
	return nil
}

// State loads the project state. A missing state file yields a fresh
// project that is not saved.
func (s *service) State(ctx context.Context) (*state.ProjectState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states.Load()
}

// Audit returns the project's newest limit audit events, oldest first.
func (s *service) Audit(ctx context.Context, limit int) ([]storage.AuditEvent, error) {
	ps, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, ps.ProjectID, limit)
}

// Close releases the persistent store.
func (s *service) Close() error {
	return s.store.Close()
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

var _ Service = (*service)(nil)
