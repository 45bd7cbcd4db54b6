package operations

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "runmatrix/internal/errors"
	"runmatrix/internal/experiment"
	"runmatrix/internal/exporter"
	"runmatrix/internal/tracking"
)

func recordingTracer(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder, tp
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestExportTracer_NilTracerIsNoop(t *testing.T) {
	et := NewExportTracer(nil, nil)
	ctx, span := et.TraceExperiment(context.Background(), flatExperiment("exp", "proj", "out"))
	assert.False(t, span.IsRecording())
	et.RecordExperimentCompletion(ctx, span, "exp", StatusCompleted, 0)
	span.End()
}

func TestRunner_Spans(t *testing.T) {
	recorder, tp := recordingTracer(t)
	out := t.TempDir()
	svc := &fakeService{
		runs:    map[string][]tracking.Run{"good": {{ID: "r1", Name: "r1"}}},
		history: map[string][]tracking.Snapshot{"r1": rewards(1, 2)},
		listErr: map[string]error{
			"broken": apperrors.NewRemoteServiceError("runs", http.StatusBadGateway, nil),
		},
	}

	runner := NewRunner(svc, exporter.NewWriter(false, testLogger(&bytes.Buffer{})),
		WithTelemetry(tp.Tracer(TracerName), nil))
	_, err := runner.Run(context.Background(), []experiment.Resolved{
		flatExperiment("first", "broken", out),
		flatExperiment("second", "good", out),
	}, Options{})
	require.NoError(t, err)

	var experiments, fields []sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		switch s.Name() {
		case "export.experiment":
			experiments = append(experiments, s)
		case "export.field":
			fields = append(fields, s)
		}
	}
	require.Len(t, experiments, 2)
	require.Len(t, fields, 1)

	assert.Equal(t, codes.Error, experiments[0].Status().Code)
	status, ok := spanAttr(experiments[0], "experiment.status")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, status.AsString())

	assert.Equal(t, codes.Ok, experiments[1].Status().Code)
	runs, ok := spanAttr(experiments[1], "experiment.runs")
	require.True(t, ok)
	assert.Equal(t, int64(1), runs.AsInt64())

	fieldStatus, ok := spanAttr(fields[0], "field.status")
	require.True(t, ok)
	assert.Equal(t, FieldWritten, fieldStatus.AsString())
	assert.Equal(t, experiments[1].SpanContext().TraceID(), fields[0].SpanContext().TraceID())
}
