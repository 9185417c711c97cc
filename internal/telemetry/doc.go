// Package telemetry wires OpenTelemetry tracing and metrics export.
//
// Traces and metrics go to an OTLP collector over gRPC or HTTP. Export is
// off by default; when disabled, Tracer and Meter return the global no-op
// implementations so instrumented code needs no guards.
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
//	defer tel.Shutdown(ctx)
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
