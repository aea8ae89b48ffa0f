package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/SajivJess/Wally/pkg/database"

type slowOpSettings struct {
	threshold time.Duration
	logger    *slog.Logger
}

var slowOps atomic.Pointer[slowOpSettings]

// SetSlowQueryLogging makes TraceOperation warn about operations that take
// at least threshold. A non-positive threshold or nil logger turns it off.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	if threshold <= 0 || logger == nil {
		slowOps.Store(nil)
		return
	}
	slowOps.Store(&slowOpSettings{threshold: threshold, logger: logger})
}

// TraceOperation starts a client span "db.<operation>" tagged with the store
// system (redis, postgresql, mongodb). Call the returned function with the
// operation's error once it completes.
func TraceOperation(ctx context.Context, system, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	attrs = append([]attribute.KeyValue{
		attribute.String("db.system", system),
		attribute.String("db.operation", operation),
	}, attrs...)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		s := slowOps.Load()
		if s == nil {
			return
		}
		elapsed := time.Since(start)
		if elapsed < s.threshold {
			return
		}
		logAttrs := []slog.Attr{
			slog.String("system", system),
			slog.String("operation", operation),
			slog.Duration("duration", elapsed),
		}
		for _, kv := range attrs[2:] {
			logAttrs = append(logAttrs, slog.String(string(kv.Key), kv.Value.Emit()))
		}
		if err != nil {
			logAttrs = append(logAttrs, slog.String("error", err.Error()))
		}
		s.logger.LogAttrs(ctx, slog.LevelWarn, "slow store operation", logAttrs...)
	}
}
