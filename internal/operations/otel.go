package operations

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"runmatrix/internal/experiment"
	"runmatrix/internal/infrastructure"
)

// TracerName names the tracer used when none is supplied
const TracerName = "runmatrix.operations"

// ExportTracer wraps spans and metrics for the export stages
type ExportTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.ExportMetrics
}

// NewExportTracer creates a tracer helper. A nil tracer disables spans and
// nil metrics disable recording.
func NewExportTracer(tracer trace.Tracer, metrics *infrastructure.ExportMetrics) *ExportTracer {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(TracerName)
	}
	return &ExportTracer{tracer: tracer, metrics: metrics}
}

// TraceExperiment starts the span covering one experiment
func (et *ExportTracer) TraceExperiment(ctx context.Context, exp experiment.Resolved) (context.Context, trace.Span) {
	return et.tracer.Start(ctx, "export.experiment",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("experiment.name", exp.Name),
			attribute.String("experiment.project", exp.ProjectPath()),
			attribute.StringSlice("experiment.fields", exp.Fields),
			attribute.String("experiment.format", exp.Format()),
			attribute.Int("experiment.history_samples", exp.HistorySamples),
		),
	)
}

// TraceField starts the span covering one field write
func (et *ExportTracer) TraceField(ctx context.Context, experimentName, field string, partition []string) (context.Context, trace.Span) {
	return et.tracer.Start(ctx, "export.field",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("experiment.name", experimentName),
			attribute.String("field.name", field),
			attribute.String("field.partition", strings.Join(partition, "/")),
		),
	)
}

// RecordRuns tags the experiment span with the matched runs
func (et *ExportTracer) RecordRuns(ctx context.Context, span trace.Span, experimentName string, runs int) {
	span.SetAttributes(attribute.Int("experiment.runs", runs))
	et.metrics.RecordRuns(ctx, experimentName, runs)
}

// RecordExperimentCompletion ends the bookkeeping of one experiment
func (et *ExportTracer) RecordExperimentCompletion(ctx context.Context, span trace.Span, experimentName, status string, duration time.Duration) {
	span.SetAttributes(
		attribute.String("experiment.status", status),
		attribute.Float64("experiment.duration_seconds", duration.Seconds()),
	)
	if status != StatusFailed {
		span.SetStatus(codes.Ok, status)
	}
	et.metrics.RecordExperiment(ctx, experimentName, status, duration)
}

// RecordRemoteError marks the span failed and counts the error
func (et *ExportTracer) RecordRemoteError(ctx context.Context, span trace.Span, experimentName, operation string, err error) {
	span.RecordError(err, trace.WithAttributes(attribute.String("operation", operation)))
	span.SetStatus(codes.Error, err.Error())
	et.metrics.RecordRemoteError(ctx, experimentName, operation)
}

// RecordFieldCompletion closes the bookkeeping of one field write
func (et *ExportTracer) RecordFieldCompletion(ctx context.Context, span trace.Span, experimentName string, rec FieldRecord) {
	span.SetAttributes(
		attribute.String("field.status", rec.Status),
		attribute.Int("field.rows", rec.Rows),
		attribute.Int("field.cols", rec.Cols),
		attribute.Int("field.padded", rec.Padded),
	)
	if rec.Status == FieldFailed {
		span.SetStatus(codes.Error, rec.Error)
	}
	et.metrics.RecordField(ctx, experimentName, rec.Status, rec.Padded)
}
