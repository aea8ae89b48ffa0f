package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func slowLogger(t *testing.T, threshold time.Duration) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetSlowQueryLogging(threshold, slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })
	return &buf
}

func TestTraceOperation_Span(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx, end := TraceOperation(context.Background(), "redis", "find_one", attribute.String("db.collection.name", "cart_items"))
	assert.True(t, trace.SpanFromContext(ctx).SpanContext().IsValid())
	end(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "db.find_one", s.Name)
	assert.Equal(t, trace.SpanKindClient, s.SpanKind)
	assert.Equal(t, codes.Unset, s.Status.Code)
	assert.Contains(t, s.Attributes, attribute.String("db.system", "redis"))
	assert.Contains(t, s.Attributes, attribute.String("db.operation", "find_one"))
	assert.Contains(t, s.Attributes, attribute.String("db.collection.name", "cart_items"))
}

func TestTraceOperation_ErrorMarksSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceOperation(context.Background(), "postgresql", "insert")
	end(errors.New("duplicate key"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "duplicate key", spans[0].Status.Description)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
}

func TestTraceOperation_SlowOperationLogged(t *testing.T) {
	buf := slowLogger(t, time.Millisecond)

	_, end := TraceOperation(context.Background(), "mongodb", "update_many", attribute.String("db.collection.name", "users"))
	time.Sleep(3 * time.Millisecond)
	end(errors.New("timeout"))

	out := buf.String()
	assert.Contains(t, out, "slow store operation")
	assert.Contains(t, out, "operation=update_many")
	assert.Contains(t, out, "db.collection.name=users")
	assert.Contains(t, out, "error=timeout")
}

func TestTraceOperation_FastOperationNotLogged(t *testing.T) {
	buf := slowLogger(t, time.Hour)

	_, end := TraceOperation(context.Background(), "redis", "find")
	end(nil)

	assert.Zero(t, buf.Len())
}

func TestSetSlowQueryLogging_Disable(t *testing.T) {
	buf := slowLogger(t, time.Nanosecond)
	SetSlowQueryLogging(0, slog.Default())

	_, end := TraceOperation(context.Background(), "redis", "find")
	time.Sleep(time.Millisecond)
	end(nil)

	assert.Zero(t, buf.Len())
}

func TestSetSlowQueryLogging_ConcurrentWithTracing(t *testing.T) {
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })
	l := slog.New(slog.DiscardHandler)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetSlowQueryLogging(time.Duration(i)*time.Microsecond, l)
		}()
		go func() {
			defer wg.Done()
			_, end := TraceOperation(context.Background(), "redis", "count")
			end(nil)
		}()
	}
	wg.Wait()
}
