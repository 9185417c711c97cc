// Package logging provides structured logging for landrag.
//
// The Logger wraps Zap with context-first methods so that correlation
// fields (trace_id, span_id, request.id, collection) are attached to every
// entry automatically:
//
//	ctx = logging.WithRequestID(ctx, c.Response().Header().Get(echo.HeaderXRequestID))
//	ctx = logging.WithCollection(ctx, "land_plots")
//	logger.Info(ctx, "plots ingested", zap.Int("points", n))
//
// Outputs are stdout (JSON or console) and, when a provider is supplied,
// the OpenTelemetry log bridge. Sensitive keys and value patterns are
// redacted at the encoder, and levels below Error are sampled.
//
// Tests use NewTestLogger, which records entries in memory and offers
// assertion helpers.
package logging
