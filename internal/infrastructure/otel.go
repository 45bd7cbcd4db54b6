package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"runmatrix/internal/config"
)

const (
	ServiceName = config.AppName
	MeterName   = "runmatrix"
)

// Telemetry holds the tracer and meter used by one invocation
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *ExportMetrics
	Registry       *promclient.Registry
	Logger         *slog.Logger
}

// InitializeTelemetry sets up tracing and metrics according to cfg. Trace
// output goes to traceOut when the stdout exporter is selected.
func InitializeTelemetry(cfg config.TelemetryConfig, traceOut io.Writer, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = GetLogger()
	}
	if traceOut == nil {
		traceOut = os.Stderr
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(config.AppVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	t := &Telemetry{Logger: logger}

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		t.TracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		t.Tracer = t.TracerProvider.Tracer(MeterName, trace.WithInstrumentationVersion(config.AppVersion))
	case "none", "":
		t.Tracer = tracenoop.NewTracerProvider().Tracer(MeterName)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	if cfg.MetricsEnabled {
		t.Registry = promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(t.Registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		t.MeterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		t.Meter = t.MeterProvider.Meter(MeterName, metric.WithInstrumentationVersion(config.AppVersion))
	} else {
		t.Meter = metricnoop.NewMeterProvider().Meter(MeterName)
	}

	t.Metrics, err = CreateExportMetrics(t.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	logger.Debug("Telemetry initialized",
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled))

	return t, nil
}

// WriteMetricsFile dumps the collected metrics in the Prometheus text format,
// suitable for the node exporter textfile collector.
func (t *Telemetry) WriteMetricsFile(path string) error {
	if t.Registry == nil {
		return fmt.Errorf("metrics are disabled")
	}
	return promclient.WriteToTextfile(path, t.Registry)
}

// Shutdown flushes and stops the providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown errors: %v", errs)
	}
	return nil
}

// ExportMetrics holds the export counters
type ExportMetrics struct {
	ExperimentsTotal   metric.Int64Counter
	RunsFetched        metric.Int64Counter
	FieldsExported     metric.Int64Counter
	PaddedCells        metric.Int64Counter
	RemoteErrors       metric.Int64Counter
	ExperimentDuration metric.Float64Histogram
}

// CreateExportMetrics registers the export instruments on meter
func CreateExportMetrics(meter metric.Meter) (*ExportMetrics, error) {
	experiments, err := meter.Int64Counter(
		"runmatrix_experiments_total",
		metric.WithDescription("Experiments processed, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter(
		"runmatrix_runs_fetched_total",
		metric.WithDescription("Runs whose history was fetched"),
	)
	if err != nil {
		return nil, err
	}

	fields, err := meter.Int64Counter(
		"runmatrix_fields_exported_total",
		metric.WithDescription("Field artifacts handled, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	padded, err := meter.Int64Counter(
		"runmatrix_padded_cells_total",
		metric.WithDescription("Matrix cells filled with the missing marker"),
	)
	if err != nil {
		return nil, err
	}

	remoteErrors, err := meter.Int64Counter(
		"runmatrix_remote_errors_total",
		metric.WithDescription("Tracking service failures"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"runmatrix_experiment_duration_seconds",
		metric.WithDescription("Wall time spent exporting one experiment"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &ExportMetrics{
		ExperimentsTotal:   experiments,
		RunsFetched:        runs,
		FieldsExported:     fields,
		PaddedCells:        padded,
		RemoteErrors:       remoteErrors,
		ExperimentDuration: duration,
	}, nil
}

// RecordExperiment records the outcome and duration of one experiment
func (m *ExportMetrics) RecordExperiment(ctx context.Context, experiment, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("experiment", experiment),
		attribute.String("status", status),
	)
	m.ExperimentsTotal.Add(ctx, 1, attrs)
	m.ExperimentDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordField records the outcome of one field artifact
func (m *ExportMetrics) RecordField(ctx context.Context, experiment, status string, padded int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("experiment", experiment),
		attribute.String("status", status),
	)
	m.FieldsExported.Add(ctx, 1, attrs)
	if padded > 0 {
		m.PaddedCells.Add(ctx, int64(padded), metric.WithAttributes(attribute.String("experiment", experiment)))
	}
}

// RecordRuns adds n fetched runs
func (m *ExportMetrics) RecordRuns(ctx context.Context, experiment string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RunsFetched.Add(ctx, int64(n), metric.WithAttributes(attribute.String("experiment", experiment)))
}

// RecordRemoteError counts one tracking service failure
func (m *ExportMetrics) RecordRemoteError(ctx context.Context, experiment, operation string) {
	if m == nil {
		return
	}
	m.RemoteErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("experiment", experiment),
		attribute.String("operation", operation),
	))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}
