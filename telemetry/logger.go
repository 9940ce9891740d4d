// Package telemetry wires structured logging to trace context so a log
// line can always be joined back to the run and span that produced it.
package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(service string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// LogRunStart logs the start of a sweep run.
func (l *Logger) LogRunStart(ctx context.Context, runID, mode string, profiles, regions int) {
	l.WithContext(ctx).Info().
		Str("run_id", runID).
		Str("mode", mode).
		Int("profiles", profiles).
		Int("regions", regions).
		Msg("run started")
}

// LogRunEnd logs the end of a sweep run.
func (l *Logger) LogRunEnd(ctx context.Context, runID string, failed int, err error) {
	logger := l.WithContext(ctx)
	if err != nil {
		logger.Error().Err(err).Str("run_id", runID).Msg("run failed")
		return
	}
	logger.Info().Str("run_id", runID).Int("failed_operations", failed).Msg("run completed")
}
