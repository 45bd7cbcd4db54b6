package operations

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"runmatrix/internal/align"
	"runmatrix/internal/experiment"
	apperrors "runmatrix/internal/errors"
	"runmatrix/internal/exporter"
	"runmatrix/internal/extract"
	"runmatrix/internal/infrastructure"
	"runmatrix/internal/query"
	"runmatrix/internal/tracking"
)

// UnknownPartition replaces an empty group or job type in split exports
const UnknownPartition = "none"

// Uploader mirrors written files. root is the directory object keys are
// relative to.
type Uploader interface {
	Upload(ctx context.Context, root, localPath string) (string, error)
}

// Options control one export
type Options struct {
	// SplitByJob aligns and writes each group/job type partition separately
	SplitByJob bool
	// ManifestID names the manifest; empty uses the trace id of ctx
	ManifestID string
}

// Runner exports experiments
type Runner struct {
	service   tracking.Service
	writer    *exporter.Writer
	extractor *extract.Extractor
	aligner   *align.Aligner
	mirror    Uploader
	tracer    *ExportTracer
	logger    *slog.Logger
}

// RunnerOption configures a Runner
type RunnerOption func(*runnerConfig)

type runnerConfig struct {
	mirror  Uploader
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.ExportMetrics
}

// WithMirror uploads every written file through u
func WithMirror(u Uploader) RunnerOption {
	return func(c *runnerConfig) {
		c.mirror = u
	}
}

// WithLogger sets the runner logger
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(c *runnerConfig) {
		c.logger = logger
	}
}

// WithTelemetry records spans on tracer and counters on metrics
func WithTelemetry(tracer trace.Tracer, metrics *infrastructure.ExportMetrics) RunnerOption {
	return func(c *runnerConfig) {
		c.tracer = tracer
		c.metrics = metrics
	}
}

// NewRunner creates a runner reading from service and writing with writer
func NewRunner(service tracking.Service, writer *exporter.Writer, opts ...RunnerOption) *Runner {
	cfg := &runnerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if writer == nil {
		writer = exporter.NewWriter(false, cfg.logger)
	}

	return &Runner{
		service:   service,
		writer:    writer,
		extractor: extract.New(service, cfg.logger),
		aligner:   align.New(cfg.logger),
		mirror:    cfg.mirror,
		tracer:    NewExportTracer(cfg.tracer, cfg.metrics),
		logger:    cfg.logger,
	}
}

// Run exports experiments in order. Failures of one experiment are recorded
// in the manifest and do not stop the others; the returned error is non-nil
// only when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, experiments []experiment.Resolved, opts Options) (*Manifest, error) {
	id := opts.ManifestID
	if id == "" {
		id = infrastructure.GetTraceID(ctx)
	}
	manifest := NewManifest(id)

	for _, exp := range experiments {
		if err := ctx.Err(); err != nil {
			manifest.Finish(StatusCancelled)
			return manifest, err
		}
		if err := r.runExperiment(ctx, manifest, exp, opts); err != nil {
			manifest.Finish(StatusCancelled)
			return manifest, err
		}
	}

	manifest.Finish(StatusCompleted)
	return manifest, nil
}

// partition is a subset of runs written below the experiment directory
type partition struct {
	path   []string
	series []extract.RunSeries
}

func (r *Runner) runExperiment(ctx context.Context, manifest *Manifest, exp experiment.Resolved, opts Options) error {
	start := time.Now()
	rec := manifest.StartExperiment(exp.Name)
	logger := r.logger.With(slog.String("experiment", exp.Name))

	ctx, span := r.tracer.TraceExperiment(ctx, exp)
	defer span.End()

	finish := func(status string, err error) {
		manifest.FinishExperiment(rec, status, err)
		r.tracer.RecordExperimentCompletion(ctx, span, exp.Name, status, time.Since(start))
	}

	filter, local := query.Build(exp)
	logger.DebugContext(ctx, "querying runs",
		slog.String("project", exp.ProjectPath()),
		slog.String("filters", filter.String()))

	runs, err := r.service.ListRuns(ctx, exp.Entity, exp.Project, filter)
	if err != nil {
		return r.abandon(ctx, span, logger, exp.Name, "list_runs", err, finish)
	}
	runs = applyLocalFilter(runs, local)

	if len(runs) == 0 {
		logger.WarnContext(ctx, "no runs match the filters, skipping experiment",
			slog.String("project", exp.ProjectPath()))
		finish(StatusNoRuns, nil)
		return nil
	}

	names := make([]string, len(runs))
	for i, run := range runs {
		names[i] = run.Name
	}
	rec.Runs = names
	r.tracer.RecordRuns(ctx, span, exp.Name, len(runs))
	logger.InfoContext(ctx, "found runs",
		slog.Int("count", len(runs)),
		slog.Any("runs", names))

	if exp.Sampled() {
		rec.Sampled = true
		logger.InfoContext(ctx, "using sampled history, values may not cover every step",
			slog.Int("history_samples", exp.HistorySamples))
	}

	series, err := r.extractor.ExtractAll(ctx, runs, exp.Fields, exp.HistorySamples)
	if err != nil {
		return r.abandon(ctx, span, logger, exp.Name, "history", err, finish)
	}

	parts := []partition{{series: series}}
	if opts.SplitByJob {
		parts = partitionByJob(series)
	}

	for _, part := range parts {
		result := r.aligner.Align(ctx, part.series, exp.Fields)
		for _, field := range exp.Fields {
			if err := ctx.Err(); err != nil {
				finish(StatusCancelled, err)
				return err
			}
			manifest.AddField(rec, r.writeField(ctx, exp, part.path, result.Matrix(field)))
		}
	}

	logger.InfoContext(ctx, "experiment exported",
		slog.Int("runs", len(runs)),
		slog.Int("fields", len(exp.Fields)),
		slog.Duration("duration", time.Since(start)))
	finish(StatusCompleted, nil)
	return nil
}

// abandon records a failed remote call. Cancellation is passed up, any other
// failure only ends the current experiment.
func (r *Runner) abandon(ctx context.Context, span trace.Span, logger *slog.Logger, name, operation string, err error, finish func(string, error)) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		finish(StatusCancelled, ctxErr)
		return ctxErr
	}

	var remote *apperrors.RemoteServiceError
	if errors.As(err, &remote) && remote.Operation != "" {
		operation = remote.Operation
	}

	r.tracer.RecordRemoteError(ctx, span, name, operation, err)
	logger.ErrorContext(ctx, "tracking service request failed, skipping experiment",
		slog.String("operation", operation),
		slog.String("error", err.Error()))
	finish(StatusFailed, err)
	return nil
}

func (r *Runner) writeField(ctx context.Context, exp experiment.Resolved, dirs []string, m *align.Matrix) FieldRecord {
	ctx, span := r.tracer.TraceField(ctx, exp.Name, m.Field, dirs)
	defer span.End()

	rec := FieldRecord{
		Field:     m.Field,
		Partition: dirs,
		Rows:      m.Rows,
		Cols:      m.Cols,
		Padded:    m.Padded,
	}

	target := exporter.Target{
		OutputPath: exp.OutputPath,
		Experiment: exp.Name,
		Partition:  dirs,
		Field:      m.Field,
		Format:     exp.OutputFormat,
	}

	path, err := r.writer.Write(ctx, target, m)
	rec.Path = path
	switch {
	case err == nil:
		rec.Status = FieldWritten
		if r.mirror != nil {
			key, upErr := r.mirror.Upload(ctx, exp.OutputPath, path)
			if upErr != nil {
				rec.Error = upErr.Error()
			}
			rec.ObjectKey = key
		}
	case apperrors.IsFileCollision(err):
		rec.Status = FieldCollision
	case apperrors.IsUnsupportedFormat(err):
		rec.Status = FieldUnsupported
		rec.Error = err.Error()
	default:
		rec.Status = FieldFailed
		rec.Error = err.Error()
		r.logger.ErrorContext(ctx, "failed to write field",
			slog.String("experiment", exp.Name),
			slog.String("field", m.Field),
			slog.String("error", err.Error()))
	}

	r.tracer.RecordFieldCompletion(ctx, span, exp.Name, rec)
	return rec
}

func applyLocalFilter(runs []tracking.Run, local query.LocalFilter) []tracking.Run {
	out := runs[:0:0]
	for _, run := range runs {
		if local.Allows(run.JobType, run.Name) {
			out = append(out, run)
		}
	}
	return out
}

// partitionByJob groups series by group and job type in order of first
// appearance.
func partitionByJob(series []extract.RunSeries) []partition {
	var parts []partition
	index := make(map[[2]string]int)
	for _, s := range series {
		key := [2]string{partitionName(s.Run.Group), partitionName(s.Run.JobType)}
		i, ok := index[key]
		if !ok {
			i = len(parts)
			index[key] = i
			parts = append(parts, partition{path: []string{key[0], key[1]}})
		}
		parts[i].series = append(parts[i].series, s)
	}
	return parts
}

func partitionName(s string) string {
	if s == "" {
		return UnknownPartition
	}
	return s
}
