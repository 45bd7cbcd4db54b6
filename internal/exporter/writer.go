package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"runmatrix/internal/align"
	apperrors "runmatrix/internal/errors"
	"runmatrix/internal/experiment"
)

// SupportedFormats lists the accepted output formats
var SupportedFormats = []string{experiment.FormatNumpy, experiment.FormatCSV, experiment.FormatXLSX}

var extensions = map[string]string{
	experiment.FormatNumpy: ".npy",
	experiment.FormatCSV:   ".csv",
	experiment.FormatXLSX:  ".xlsx",
}

var encoders = map[string]func(io.Writer, *align.Matrix) error{
	experiment.FormatNumpy: WriteNPY,
	experiment.FormatCSV:   WriteMatrixCSV,
	experiment.FormatXLSX:  WriteMatrixXLSX,
}

// Target describes where one field matrix goes
type Target struct {
	OutputPath string
	Experiment string
	// Partition adds directories between the experiment and the field, used
	// for exports split by group and job type
	Partition []string
	Field     string
	// Format is the raw output_data_type; empty selects numpy
	Format string
}

func (t Target) format() string {
	if t.Format == "" {
		return experiment.FormatNumpy
	}
	return t.Format
}

// Extension returns the file extension of format
func Extension(format string) (string, error) {
	if format == "" {
		format = experiment.FormatNumpy
	}
	ext, ok := extensions[format]
	if !ok {
		return "", apperrors.NewUnsupportedFormatError(format, SupportedFormats)
	}
	return ext, nil
}

// Destination returns the file path of t. Slashes in the field name become
// path separators.
func Destination(t Target) (string, error) {
	ext, err := Extension(t.Format)
	if err != nil {
		return "", err
	}

	parts := []string{t.OutputPath, t.Experiment}
	parts = append(parts, t.Partition...)
	parts = append(parts, strings.Split(t.Field, "/")...)
	return filepath.Join(parts...) + ext, nil
}

// Writer writes matrices to their destinations
type Writer struct {
	overwrite bool
	logger    *slog.Logger
}

// NewWriter creates a writer. Existing files are only replaced when
// overwrite is set.
func NewWriter(overwrite bool, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{overwrite: overwrite, logger: logger}
}

// Write stores m at the destination of t and returns the path. An
// unsupported format yields *errors.UnsupportedFormatError and an existing
// file without overwrite yields *errors.FileCollisionError; in both cases
// nothing is written.
func (w *Writer) Write(ctx context.Context, t Target, m *align.Matrix) (string, error) {
	path, err := Destination(t)
	if err != nil {
		w.logger.ErrorContext(ctx, "unsupported output format, skipping field",
			slog.String("experiment", t.Experiment),
			slog.String("field", t.Field),
			slog.String("format", t.Format))
		return "", err
	}

	if _, err := os.Stat(path); err == nil && !w.overwrite {
		collision := apperrors.NewFileCollisionError(path)
		w.logger.WarnContext(ctx, collision.Error(),
			slog.String("experiment", t.Experiment),
			slog.String("field", t.Field),
			slog.String("path", path))
		return path, collision
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", apperrors.NewStorageError(fmt.Sprintf("failed to create directory for %s", path), err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", apperrors.NewStorageError(fmt.Sprintf("failed to open %s", path), err)
	}

	if err := encoders[t.format()](file, m); err != nil {
		file.Close()
		return "", apperrors.NewStorageError(fmt.Sprintf("failed to write %s", path), err)
	}
	if err := file.Close(); err != nil {
		return "", apperrors.NewStorageError(fmt.Sprintf("failed to close %s", path), err)
	}

	w.logger.InfoContext(ctx, "saved field matrix",
		slog.String("experiment", t.Experiment),
		slog.String("field", t.Field),
		slog.String("format", t.format()),
		slog.String("path", path),
		slog.Int("rows", m.Rows),
		slog.Int("cols", m.Cols))

	return path, nil
}
