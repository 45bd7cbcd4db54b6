package infrastructure

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runmatrix/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestInitializeTelemetry_Disabled(t *testing.T) {
	tel, err := InitializeTelemetry(config.TelemetryConfig{TraceExporter: "none"}, nil, quietLogger())
	require.NoError(t, err)

	assert.Nil(t, tel.TracerProvider)
	assert.Nil(t, tel.MeterProvider)
	assert.NotNil(t, tel.Tracer)
	require.NotNil(t, tel.Metrics)

	// noop instruments accept records
	tel.Metrics.RecordField(context.Background(), "exp", "written", 3)
	assert.Error(t, tel.WriteMetricsFile(filepath.Join(t.TempDir(), "m.prom")))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestInitializeTelemetry_StdoutTraces(t *testing.T) {
	var traces bytes.Buffer
	tel, err := InitializeTelemetry(config.TelemetryConfig{TraceExporter: "stdout"}, &traces, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, tel.TracerProvider)

	_, span := tel.Tracer.Start(context.Background(), "experiment")
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tel.Shutdown(ctx))
	assert.Contains(t, traces.String(), `"Name": "experiment"`)
}

func TestInitializeTelemetry_UnknownExporter(t *testing.T) {
	_, err := InitializeTelemetry(config.TelemetryConfig{TraceExporter: "zipkin"}, nil, quietLogger())
	assert.Error(t, err)
}

func TestWriteMetricsFile(t *testing.T) {
	tel, err := InitializeTelemetry(config.TelemetryConfig{TraceExporter: "none", MetricsEnabled: true}, nil, quietLogger())
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	ctx := context.Background()
	tel.Metrics.RecordRuns(ctx, "exp", 4)
	tel.Metrics.RecordField(ctx, "exp", "written", 2)
	tel.Metrics.RecordRemoteError(ctx, "exp", "list_runs")
	tel.Metrics.RecordExperiment(ctx, "exp", "completed", 1500*time.Millisecond)

	path := filepath.Join(t.TempDir(), "runmatrix.prom")
	require.NoError(t, tel.WriteMetricsFile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "runmatrix_runs_fetched_total")
	assert.Contains(t, text, "runmatrix_fields_exported_total")
	assert.Contains(t, text, "runmatrix_padded_cells_total")
	assert.Contains(t, text, `experiment="exp"`)
}

func TestExportMetrics_NilSafe(t *testing.T) {
	var m *ExportMetrics
	assert.NotPanics(t, func() {
		m.RecordRuns(context.Background(), "exp", 1)
		m.RecordField(context.Background(), "exp", "written", 1)
		m.RecordRemoteError(context.Background(), "exp", "history")
		m.RecordExperiment(context.Background(), "exp", "failed", time.Second)
	})
}
