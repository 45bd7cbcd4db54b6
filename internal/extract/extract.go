package extract

import (
	"context"
	"log/slog"

	apperrors "runmatrix/internal/errors"
	"runmatrix/internal/tracking"
)

// FieldSequence holds one run's values of one field in step order. Its
// length is the number of snapshots that carried the field and may be zero.
type FieldSequence struct {
	Values []float64
}

// Len returns the number of samples
func (s FieldSequence) Len() int {
	return len(s.Values)
}

// RunSeries is the extracted data of one run
type RunSeries struct {
	Run    tracking.Run
	Fields map[string]FieldSequence
	// Missing lists requested fields the run never logged, in request order
	Missing []string
}

// Sequence returns the sequence of field, empty when absent
func (r RunSeries) Sequence(field string) FieldSequence {
	return r.Fields[field]
}

// Extractor fetches run histories and splits them into field sequences
type Extractor struct {
	service tracking.Service
	logger  *slog.Logger
}

// New creates an extractor reading from service
func New(service tracking.Service, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{service: service, logger: logger}
}

// Extract fetches one run. samples <= 0 reads the full history, otherwise at
// most samples values per field are requested. Runs shorter than the cap
// keep their own length.
func (e *Extractor) Extract(ctx context.Context, run tracking.Run, fields []string, samples int) (RunSeries, error) {
	snaps, err := e.service.History(ctx, run, fields, samples)
	if err != nil {
		return RunSeries{}, err
	}

	series := RunSeries{Run: run, Fields: Sequences(snaps, fields)}
	for _, field := range fields {
		if series.Fields[field].Len() > 0 {
			continue
		}
		series.Missing = append(series.Missing, field)
		warning := apperrors.NewMissingFieldWarning(run.Name, field)
		e.logger.WarnContext(ctx, warning.Error(),
			slog.String("run", run.Name),
			slog.String("field", field))
	}

	return series, nil
}

// ExtractAll extracts runs in order. The first failure aborts.
func (e *Extractor) ExtractAll(ctx context.Context, runs []tracking.Run, fields []string, samples int) ([]RunSeries, error) {
	out := make([]RunSeries, 0, len(runs))
	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		series, err := e.Extract(ctx, run, fields, samples)
		if err != nil {
			return nil, err
		}
		out = append(out, series)
	}
	return out, nil
}

// Sequences collects, per field, the values of the snapshots that carry it.
// Snapshots without the field are skipped, so a field logged at a lower
// frequency yields a shorter sequence.
func Sequences(snaps []tracking.Snapshot, fields []string) map[string]FieldSequence {
	out := make(map[string]FieldSequence, len(fields))
	for _, field := range fields {
		var values []float64
		for _, s := range snaps {
			if v, ok := s.Values[field]; ok {
				values = append(values, v)
			}
		}
		out[field] = FieldSequence{Values: values}
	}
	return out
}
