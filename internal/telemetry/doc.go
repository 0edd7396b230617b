// Package telemetry wires OpenTelemetry tracing and metrics for specula.
//
// Spans and counters are exported over OTLP (gRPC or HTTP/protobuf) to a
// collector. Telemetry is off by default; enable it with
// observability.enable_telemetry or SPECULA_OBSERVABILITY_ENABLE_TELEMETRY.
//
//	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Observability, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	svc, err := workflow.NewService(states, store, workflow.WithTelemetry(tel))
//
// Exporter failures mark the instance degraded instead of failing startup;
// Health reports the reasons.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	o, err := orchestrator.New(st, orchestrator.WithTelemetry(tt.Telemetry))
//	// ...
//	tt.AssertSpanExists(t, "orchestrator.advance")
package telemetry
