// Package logging builds the zap logger used by specula.
//
// The console core writes to stderr so that command output on stdout stays
// machine readable. When telemetry is enabled a second core forwards
// entries to the OpenTelemetry log provider through the otelzap bridge.
//
// # Usage
//
//	cfg, err := logging.FromAppConfig(appCfg.Logging, appCfg.Observability.EnableTelemetry)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, tel.LoggerProvider())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	svc, err := workflow.NewService(states, store, workflow.WithLogger(logger.Underlying()))
//
// Context helpers attach correlation fields:
//
//	ctx = logging.WithProjectID(ctx, "project-alpha")
//	logger.Info(ctx, "phase advanced", zap.String("phase", "2"))
//
// # Secret Redaction
//
// Keys such as database_url and authorization are masked, and string
// values that look like a postgres URL with a password or an API key are
// replaced with [REDACTED:pattern]. config.Secret values can be logged with
// the Secret field helper.
//
// # Sampling
//
// Entries below error level are sampled per second (first 100, then one in
// ten). Errors are never sampled.
package logging
