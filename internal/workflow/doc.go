// Package workflow implements the Specula use cases shared by the CLI and
// the HTTP API.
//
// Each call loads the project state from its file, runs the orchestrator,
// saves the file and mirrors the outcome into a storage.Store:
//
//	svc, err := workflow.NewService(state.NewFileStore(path), store,
//	    workflow.WithLogger(logger),
//	    workflow.WithBackend(backend),
//	)
//	res, err := svc.Step(ctx, &workflow.StepRequest{UserInput: "Start project"})
//
// Calls on one Service are serialized around the state file. Separate
// processes sharing a state file are not coordinated.
package workflow
