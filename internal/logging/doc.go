// Package logging provides structured logging for repovec.
//
// # Overview
//
// Logger wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Console or JSON output on stderr, optionally mirrored to OpenTelemetry
//   - Context field injection (trace_id, span_id, run.id, source.mode)
//   - Redaction of API keys, tokens and bearer headers
//   - Optional sampling for noisy per-file logs (errors are never sampled)
//
// stdout is left to command output (token counts, check reports), so log
// lines always go to stderr.
//
// # Usage
//
//	logger, err := logging.NewLogger(logging.FromSettings("debug", "console"), global.GetLoggerProvider())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRun(ctx, logging.Run{ID: runID, Mode: "zip"})
//	logger.Info(ctx, "file skipped", zap.String("path", p), zap.String("reason", "unwanted_extension"))
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "loaded", zap.Int("chunks", 3))
//	tl.AssertLogged(t, zapcore.InfoLevel, "loaded")
//	tl.AssertField(t, "loaded", "chunks", int64(3))
//	tl.AssertNoSecrets(t)
package logging
