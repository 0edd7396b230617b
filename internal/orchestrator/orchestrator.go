package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specula/internal/artifact"
	"github.com/fyrsmithlabs/specula/internal/generation"
	"github.com/fyrsmithlabs/specula/internal/phase"
	"github.com/fyrsmithlabs/specula/internal/policy"
	"github.com/fyrsmithlabs/specula/internal/schema"
	"github.com/fyrsmithlabs/specula/internal/state"
	"github.com/fyrsmithlabs/specula/internal/telemetry"
)

const instrumentationName = "github.com/fyrsmithlabs/specula/internal/orchestrator"

// Draft provenance attached to every generated artifact.
const (
	draftEvidence    = "session_input:user"
	draftTradeoff    = "Speed of synthesis vs depth of validation remains open."
	draftAlternative = "No alternative path selected before human validation."
)

// Orchestrator owns a project state and performs every transition on it.
// Methods are safe for concurrent use; transitions are serialized.
type Orchestrator struct {
	mu sync.Mutex

	state     *state.ProjectState
	backend   generation.Backend
	validator *schema.Validator
	recorder  ViolationRecorder
	logger    *zap.Logger
	now       func() time.Time

	tracer  trace.Tracer
	meter   metric.Meter
	metrics *metrics

	generation []Gate
	target     []Gate
	advance    []Gate
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBackend sets the text generation backend. Without one every step
// uses the template text.
func WithBackend(b generation.Backend) Option {
	return func(o *Orchestrator) { o.backend = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTelemetry routes spans and metrics through tel instead of the
// global providers.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(o *Orchestrator) {
		o.tracer = tel.Tracer(instrumentationName)
		o.meter = tel.Meter(instrumentationName)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSchemaValidator overrides the embedded artifact schemas.
func WithSchemaValidator(v *schema.Validator) Option {
	return func(o *Orchestrator) { o.validator = v }
}

// WithRecorder sets where gate violations are reported.
func WithRecorder(r ViolationRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// New creates an orchestrator bound to s.
func New(s *state.ProjectState, opts ...Option) (*Orchestrator, error) {
	if s == nil {
		return nil, errors.New("project state is required")
	}

	o := &Orchestrator{
		state:      s,
		logger:     zap.NewNop(),
		now:        time.Now,
		tracer:     otel.Tracer(instrumentationName),
		meter:      otel.Meter(instrumentationName),
		generation: generationGates(),
		target:     targetGates(),
		advance:    advanceGates(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.validator == nil {
		v, err := schema.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to load artifact schemas: %w", err)
		}
		o.validator = v
	}
	o.metrics = newMetrics(o.meter, o.logger)
	return o, nil
}

// State returns the project state. Callers that mutate it (validation
// records) must serialize with GenerateStep and AdvanceAfterValidation.
func (o *Orchestrator) State() *state.ProjectState {
	return o.state
}

// GenerateStep drafts the artifact for the requested (or current) phase
// and commits it as the phase's latest artifact. The phase does not
// advance. On any error the state is unchanged.
func (o *Orchestrator) GenerateStep(ctx context.Context, req StepRequest) (*StepResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.generate_step",
		trace.WithAttributes(attribute.String("project.id", o.state.ProjectID)),
	)
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()

	res, err := o.generateStep(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("phase", string(res.Artifact.Meta.Phase)),
		attribute.String("mode", string(res.Artifact.Meta.Mode)),
		attribute.String("artifact.id", res.Artifact.Meta.ArtifactID),
		attribute.Bool("degraded", res.Degraded),
	)
	return res, nil
}

func (o *Orchestrator) generateStep(ctx context.Context, req StepRequest) (*StepResult, error) {
	input := strings.TrimSpace(req.UserInput)
	if input == "" {
		return nil, ErrEmptyInput
	}

	target := o.state.CurrentPhase
	if strings.TrimSpace(req.Phase) != "" {
		p, err := phase.Parse(req.Phase)
		if err != nil {
			return nil, err
		}
		target = p
	}
	if !target.Valid() {
		return nil, fmt.Errorf("%w `%s`", phase.ErrUnknownPhase, target)
	}

	mode := target.DefaultMode()
	if strings.TrimSpace(req.Mode) != "" {
		m, err := phase.ParseMode(req.Mode)
		if err != nil {
			return nil, err
		}
		mode = m
	}

	if err := o.runGates(ctx, o.generation, &Transition{State: o.state, Phase: target}); err != nil {
		return nil, err
	}

	kind, err := artifact.KindFor(target, mode)
	if err != nil {
		return nil, err
	}
	now := o.now()
	payload, err := artifact.NewPayload(kind, now)
	if err != nil {
		return nil, err
	}

	a, err := artifact.New(artifact.Meta{
		ArtifactID:           "artifact-" + uuid.NewString(),
		Phase:                target,
		Mode:                 mode,
		GeneratedAt:          artifact.Timestamp(now),
		ValidatedByHuman:     false,
		RelatedArtifacts:     o.state.RelatedArtifacts(),
		DecisionRationale:    fmt.Sprintf("Draft generated for phase %s pending human review.", target),
		EvidenceRefs:         []string{draftEvidence},
		Tradeoffs:            []string{draftTradeoff},
		RejectedAlternatives: []string{draftAlternative},
	}, payload)
	if err != nil {
		return nil, err
	}

	text, reason := o.assistantText(ctx, target, mode, input)
	if violations := policy.ValidateAssistantText(text); len(violations) > 0 {
		return nil, &PolicyError{Stage: StageAssistantText, Violations: violations}
	}
	if issues := o.validator.ValidateArtifact(a, target); len(issues) > 0 {
		return nil, &PolicyError{Stage: StageSchema, Violations: issues}
	}

	o.state.ArtifactIndex[a.Meta.ArtifactID] = a
	o.state.LatestArtifacts[target] = a.Meta.ArtifactID

	degraded := reason != ""
	o.metrics.recordStep(ctx, target, mode, degraded)
	if degraded {
		o.metrics.recordFallback(ctx, reason)
	}

	o.logger.Info("generated step",
		zap.String("project_id", o.state.ProjectID),
		zap.String("phase", target.String()),
		zap.String("mode", mode.String()),
		zap.String("artifact_id", a.Meta.ArtifactID),
		zap.Bool("degraded", degraded),
	)

	return &StepResult{
		AssistantText:  text,
		Artifact:       a,
		Degraded:       degraded,
		FallbackReason: reason,
	}, nil
}

// assistantText asks the backend for the turn text and substitutes the
// template whenever the backend fails or its text breaks policy.
func (o *Orchestrator) assistantText(ctx context.Context, p phase.Phase, m phase.Mode, input string) (string, FallbackReason) {
	fallback := FallbackText(m, p)
	if o.backend == nil {
		return fallback, ""
	}

	candidate, err := o.backend.Generate(ctx, generation.Request{
		Phase:     p,
		Mode:      m,
		UserInput: input,
		ProjectID: o.state.ProjectID,
		Context:   o.state.ContextBundle(),
	})
	if err != nil {
		o.logger.Warn("generation backend failed, using fallback text",
			zap.String("phase", p.String()),
			zap.Error(err),
		)
		return fallback, FallbackBackendError
	}

	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return fallback, FallbackEmptyResponse
	}
	if !policy.HasHeaderPrefix(candidate) {
		candidate = policy.Header(m, p) + "\n" + candidate
	}
	if violations := policy.ValidateAssistantText(candidate); len(violations) > 0 {
		o.logger.Debug("generated text rejected by policy",
			zap.String("phase", p.String()),
			zap.Strings("violations", violations),
		)
		return fallback, FallbackPolicyRejected
	}
	return candidate, ""
}

// AdvanceAfterValidation moves the project past p once artifactID has
// enough human approvals. On success the artifact becomes the phase's
// validated artifact, continuity absorbs it and the successor phase is
// returned. On any error the state is unchanged.
func (o *Orchestrator) AdvanceAfterValidation(ctx context.Context, p phase.Phase, artifactID string, validations []state.ValidationRecord) (phase.Phase, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.advance",
		trace.WithAttributes(
			attribute.String("project.id", o.state.ProjectID),
			attribute.String("phase", string(p)),
			attribute.String("artifact.id", artifactID),
		),
	)
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()

	next, err := o.advanceLocked(ctx, p, artifactID, validations)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("next_phase", string(next)))
	return next, nil
}

// CheckTarget reports whether a validation of artifactID for p could ever
// lead to a transition: p must be the current phase and the artifact must
// be known. The approval policy is not evaluated.
func (o *Orchestrator) CheckTarget(ctx context.Context, p phase.Phase, artifactID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runGates(ctx, o.target, &Transition{State: o.state, Phase: p, ArtifactID: artifactID})
}

func (o *Orchestrator) advanceLocked(ctx context.Context, p phase.Phase, artifactID string, validations []state.ValidationRecord) (phase.Phase, error) {
	t := &Transition{
		State:       o.state,
		Phase:       p,
		ArtifactID:  artifactID,
		Validations: validations,
	}
	if err := o.runGates(ctx, o.advance, t); err != nil {
		return "", err
	}

	next, err := p.Next()
	if err != nil {
		return "", err
	}

	a := o.state.ArtifactIndex[artifactID]
	o.state.LatestArtifacts[p] = artifactID
	o.state.PhaseValidatedArtifacts[p] = artifactID
	foldContinuity(o.state, t, a)
	o.state.CurrentPhase = next

	o.metrics.recordAdvance(ctx, p, next)
	o.logger.Info("phase advanced",
		zap.String("project_id", o.state.ProjectID),
		zap.String("from", p.String()),
		zap.String("to", next.String()),
		zap.String("artifact_id", artifactID),
		zap.Strings("approver_roles", approverRoles(t)),
	)
	return next, nil
}

// runGates evaluates gates in order and stops at the first that reports a
// violation.
func (o *Orchestrator) runGates(ctx context.Context, gates []Gate, t *Transition) error {
	for _, g := range gates {
		violations, err := g.Check(ctx, t)
		if err != nil {
			return fmt.Errorf("gate %s failed: %w", g.Name(), err)
		}
		if len(violations) == 0 {
			continue
		}

		for _, v := range violations {
			o.metrics.recordRejection(ctx, v)
			o.logger.Warn("transition rejected",
				zap.String("project_id", t.State.ProjectID),
				zap.String("gate", g.Name()),
				zap.String("type", string(v.Type)),
				zap.String("severity", string(v.Severity)),
				zap.String("description", v.Description),
			)
			if o.recorder != nil {
				if err := o.recorder.RecordViolation(ctx, t.State.ProjectID, v); err != nil {
					o.logger.Warn("failed to record violation", zap.Error(err))
				}
			}
		}
		return &GateError{Gate: g.Name(), Violations: violations}
	}
	return nil
}

// metrics holds orchestrator instruments. A nil instrument is skipped.
type metrics struct {
	steps      metric.Int64Counter
	fallbacks  metric.Int64Counter
	advances   metric.Int64Counter
	rejections metric.Int64Counter
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *metrics {
	m := &metrics{}
	var err error

	m.steps, err = meter.Int64Counter(
		"specula.orchestrator.steps_total",
		metric.WithDescription("Generated steps labeled by phase, mode and whether the template text was used."),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		logger.Warn("failed to create steps counter", zap.Error(err))
	}

	m.fallbacks, err = meter.Int64Counter(
		"specula.orchestrator.fallbacks_total",
		metric.WithDescription("Backend texts replaced by the template, labeled by reason."),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		logger.Warn("failed to create fallbacks counter", zap.Error(err))
	}

	m.advances, err = meter.Int64Counter(
		"specula.orchestrator.advances_total",
		metric.WithDescription("Phase advances labeled by source and target phase."),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		logger.Warn("failed to create advances counter", zap.Error(err))
	}

	m.rejections, err = meter.Int64Counter(
		"specula.orchestrator.gate_rejections_total",
		metric.WithDescription("Transitions rejected by a gate, labeled by gate and violation type."),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		logger.Warn("failed to create gate rejections counter", zap.Error(err))
	}
	return m
}

func (m *metrics) recordStep(ctx context.Context, p phase.Phase, mode phase.Mode, degraded bool) {
	if m.steps == nil {
		return
	}
	m.steps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("phase", string(p)),
		attribute.String("mode", string(mode)),
		attribute.Bool("degraded", degraded),
	))
}

func (m *metrics) recordFallback(ctx context.Context, reason FallbackReason) {
	if m.fallbacks == nil {
		return
	}
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))
}

func (m *metrics) recordAdvance(ctx context.Context, from, to phase.Phase) {
	if m.advances == nil {
		return
	}
	m.advances.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}

func (m *metrics) recordRejection(ctx context.Context, v Violation) {
	if m.rejections == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gate", v.Gate),
		attribute.String("type", string(v.Type)),
	))
}
