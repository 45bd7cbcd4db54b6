package align

import (
	"context"
	"log/slog"

	"runmatrix/internal/extract"
)

// Result holds one matrix per requested field, in request order
type Result struct {
	Fields   []string
	Matrices map[string]*Matrix
}

// Matrix returns the matrix of field
func (r *Result) Matrix(field string) *Matrix {
	return r.Matrices[field]
}

// Aligner builds matrices from extracted run series
type Aligner struct {
	logger *slog.Logger
}

// New creates an aligner
func New(logger *slog.Logger) *Aligner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aligner{logger: logger}
}

// Align builds one matrix per field
func (a *Aligner) Align(ctx context.Context, series []extract.RunSeries, fields []string) *Result {
	res := &Result{
		Fields:   append([]string(nil), fields...),
		Matrices: make(map[string]*Matrix, len(fields)),
	}
	for _, field := range fields {
		res.Matrices[field] = a.alignField(ctx, series, field)
	}
	return res
}

func (a *Aligner) alignField(ctx context.Context, series []extract.RunSeries, field string) *Matrix {
	m := &Matrix{Field: field}

	for i, s := range series {
		n := s.Sequence(field).Len()
		if n == 0 {
			continue
		}
		m.Runs = append(m.Runs, i)
		m.RunNames = append(m.RunNames, s.Run.Name)
		m.Lengths = append(m.Lengths, n)
		if n > m.Cols {
			m.Cols = n
		}
	}

	m.Rows = len(m.Runs)
	if m.Rows == 0 {
		m.Cols = 0
		m.Lengths = []int{}
		m.Runs = []int{}
		m.Data = []float64{}
		return m
	}

	m.Data = make([]float64, m.Rows*m.Cols)
	for row, idx := range m.Runs {
		values := series[idx].Sequence(field).Values
		dst := m.Row(row)
		copy(dst, values)
		if pad := m.Cols - len(values); pad > 0 {
			for j := len(values); j < m.Cols; j++ {
				dst[j] = Pad
			}
			m.Padded += pad
			a.logger.WarnContext(ctx, "run has fewer steps than the longest run, padding with NaN",
				slog.String("field", field),
				slog.String("run", m.RunNames[row]),
				slog.Int("padded", pad))
		}
	}

	return m
}
