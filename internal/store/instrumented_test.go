package store

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

func setupTracer(t *testing.T) *tracetest.InMemoryExporter {
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

func TestInstrument_RecordsSpanAndLatency(t *testing.T) {
	exporter := setupTracer(t)
	s := Instrument(newMemStore())
	coll := s.Collection("instrumented_widgets")

	require.NoError(t, coll.InsertOne(context.Background(), Document{"id": "w1"}))
	_, err := coll.FindOne(context.Background(), Filter{"id": "nope"})
	require.ErrorIs(t, err, ErrNoDocuments)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "db.insert_one", spans[0].Name)
	assert.Equal(t, "db.find_one", spans[1].Name)
	assert.Empty(t, spans[1].Events, "a miss is not recorded as an error")

	// insert_one/ok and find_one/not_found series.
	assert.GreaterOrEqual(t, testutil.CollectAndCount(OperationDuration), 2)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "not_found", outcome(ErrNoDocuments))
	assert.Equal(t, "duplicate", outcome(ErrDuplicateID))
	assert.Equal(t, "unavailable", outcome(apperrors.StorageUnavailable(io.EOF)))
	assert.Equal(t, "error", outcome(errors.New("boom")))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil))

	err := Classify(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})
	assert.True(t, apperrors.IsStorageUnavailable(err))

	err = Classify(context.DeadlineExceeded)
	assert.True(t, apperrors.IsStorageUnavailable(err))

	err = Classify(io.EOF)
	assert.True(t, apperrors.IsStorageUnavailable(err))

	assert.False(t, apperrors.IsStorageUnavailable(Classify(context.Canceled)))
	assert.False(t, apperrors.IsStorageUnavailable(Classify(ErrNoDocuments)))
	assert.False(t, apperrors.IsStorageUnavailable(Classify(errors.New("syntax error at or near"))))

	already := apperrors.StorageUnavailable(io.EOF)
	assert.Same(t, already, Classify(already))
}
