// Package orchestrator drives the Specula phase machine: it drafts one
// artifact per step and advances the project only when human validators
// have signed off on it.
//
// # Overview
//
// A project walks the methodology sequence
//
//	0 → 1 → 1.5 → 2 → 3 → 4 → 5 → 6 → 1 …
//
// GenerateStep produces an artifact draft and the assistant text that asks
// the human one question about it. AdvanceAfterValidation moves the project
// to the next phase once that draft carries enough human approvals.
//
// # Gates
//
// Every transition is guarded by gates that run before anything mutates:
//   - PrerequisitesGate: a phase may only be drafted once its prerequisite
//     phases have validated artifacts
//   - PhaseMatchGate: validations must target the current phase
//   - ArtifactPresentGate: the validated artifact must exist in state
//   - HumanApprovalsGate: at least two human approvals
//   - RoleDiversityGate: approvals from at least two distinct roles
//
// A gate that reports a violation aborts the transition with a *GateError.
// Violations are handed to an optional ViolationRecorder so callers can
// persist them.
//
// # Assistant text
//
// When a generation.Backend is configured the orchestrator asks it for the
// turn's text. Anything that fails the text policy, or any provider error,
// falls back to a deterministic template for the phase; the step itself
// never fails because of the provider.
//
// # Usage Example
//
//	st := state.New("project-001")
//	orch, err := orchestrator.New(st,
//	    orchestrator.WithBackend(backend),
//	    orchestrator.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//
//	res, err := orch.GenerateStep(ctx, orchestrator.StepRequest{
//	    UserInput: "Start project for sustainable brand",
//	})
//
//	// collect validations, then:
//	next, err := orch.AdvanceAfterValidation(ctx, phase.Phase0, res.Artifact.Meta.ArtifactID, records)
package orchestrator
