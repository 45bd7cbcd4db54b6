package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"runmatrix/internal/config"
	"runmatrix/internal/experiment"
	"runmatrix/internal/exporter"
	"runmatrix/internal/infrastructure"
	"runmatrix/internal/operations"
	"runmatrix/internal/storage"
	"runmatrix/internal/tracking"
)

const (
	exitOK      = 0
	exitFailure = 1

	shutdownTimeout = 5 * time.Second
)

// options holds the command line flags
type options struct {
	configPath   string
	overwrite    bool
	experiments  []string
	splitByJob   bool
	manifestPath string
	metricsFile  string
	settingsPath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command and maps its outcome to an exit code
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitFailure
	}
	return exitOK
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "runmatrix [flags] <config.yaml>",
		Short: "Export experiment run histories as matrices",
		Long: `runmatrix reads an experiment configuration, selects the matching runs
from the tracking service and writes one matrix per experiment and field.

Each row of a matrix is one run and each column one logged step. Shorter runs
are padded with NaN. Matrices are written as .npy (default), .csv or .xlsx
files under <output_path>/<experiment>/<field>.

Experiment names given after -e may be separated by commas, repeated flags or
trailing arguments:

  runmatrix config.yaml -e baseline tuned`,
		Args:          cobra.MinimumNArgs(1),
		Version:       config.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configPath = args[0]
			if extra := args[1:]; len(extra) > 0 {
				if !cmd.Flags().Changed("experiments") {
					return fmt.Errorf("unexpected arguments %v", extra)
				}
				opts.experiments = append(opts.experiments, extra...)
			}
			return run(cmd.Context(), opts, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.BoolVarP(&opts.overwrite, "overwrite", "o", false, "replace output files that already exist")
	flags.StringSliceVarP(&opts.experiments, "experiments", "e", nil, "export only the named experiments")
	flags.BoolVar(&opts.splitByJob, "split-by-job", false, "write one matrix per group and job type")
	flags.StringVar(&opts.manifestPath, "manifest", "", "write a JSON manifest of the export to this path")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "write export metrics in the Prometheus text format to this path")
	flags.StringVar(&opts.settingsPath, "settings", "", "runtime settings file (default "+config.DefaultSettingsFile+" if present)")

	return cmd
}

func run(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	settings, err := config.Load(opts.settingsPath)
	if err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLoggerTo(settings.Logging, stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	ctx = infrastructure.EnsureTraceID(ctx)

	doc, err := experiment.Load(opts.configPath)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load experiment configuration",
			slog.String("path", opts.configPath),
			slog.String("error", err.Error()))
		return err
	}
	experiments, err := experiment.Resolve(doc, opts.experiments)
	if err != nil {
		logger.ErrorContext(ctx, "invalid experiment configuration",
			slog.String("path", opts.configPath),
			slog.String("error", err.Error()))
		return err
	}

	telemetry, err := infrastructure.InitializeTelemetry(settings.Telemetry, stdout, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	clientOpts := []tracking.Option{
		tracking.WithLogger(infrastructure.WithComponent(logger, "tracking")),
	}
	if telemetry.TracerProvider != nil {
		clientOpts = append(clientOpts, tracking.WithTracerProvider(telemetry.TracerProvider))
	}
	client := tracking.NewClient(settings.API, clientOpts...)
	defer client.Close()

	runnerOpts := []operations.RunnerOption{
		operations.WithLogger(infrastructure.WithComponent(logger, "operations")),
		operations.WithTelemetry(telemetry.Tracer, telemetry.Metrics),
	}
	if settings.Upload.Enabled() {
		mirror, err := storage.NewMinioMirror(ctx, settings.Upload, infrastructure.WithComponent(logger, "storage"))
		if err != nil {
			return err
		}
		runnerOpts = append(runnerOpts, operations.WithMirror(mirror))
	}

	writer := exporter.NewWriter(opts.overwrite, infrastructure.WithComponent(logger, "exporter"))
	runner := operations.NewRunner(client, writer, runnerOpts...)

	logger.InfoContext(ctx, "starting export",
		slog.String("config", opts.configPath),
		slog.Int("experiments", len(experiments)),
		slog.Bool("overwrite", opts.overwrite),
		slog.Bool("split_by_job", opts.splitByJob))

	manifest, runErr := runner.Run(ctx, experiments, operations.Options{SplitByJob: opts.splitByJob})

	if opts.manifestPath != "" {
		if err := manifest.Save(opts.manifestPath); err != nil {
			logger.ErrorContext(ctx, "failed to save manifest",
				slog.String("path", opts.manifestPath),
				slog.String("error", err.Error()))
		}
	}
	if opts.metricsFile != "" {
		if err := telemetry.WriteMetricsFile(opts.metricsFile); err != nil {
			logger.WarnContext(ctx, "failed to write metrics file",
				slog.String("path", opts.metricsFile),
				slog.String("error", err.Error()))
		}
	}

	counts := manifest.FieldCounts()
	logger.InfoContext(ctx, "export finished",
		slog.String("status", manifest.Status),
		slog.Int("written", counts[operations.FieldWritten]),
		slog.Int("collisions", counts[operations.FieldCollision]),
		slog.Int("unsupported", counts[operations.FieldUnsupported]),
		slog.Int("failed", counts[operations.FieldFailed]))

	return runErr
}
