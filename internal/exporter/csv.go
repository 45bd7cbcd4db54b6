package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"runmatrix/internal/align"
)

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// writeCSV writes headers and records to w
func writeCSV(w io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)

	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// matrixTable lays a matrix out as a labelled table: an empty corner cell
// followed by "step j" columns, and one "run i" row per matrix row
func matrixTable(m *align.Matrix) WriteOptions {
	headers := make([]string, 0, m.Cols+1)
	headers = append(headers, "")
	for j := 0; j < m.Cols; j++ {
		headers = append(headers, stepLabel(j))
	}

	records := make([][]string, m.Rows)
	for i := 0; i < m.Rows; i++ {
		record := make([]string, 0, m.Cols+1)
		record = append(record, runLabel(i))
		for _, v := range m.Row(i) {
			record = append(record, formatFloat(v))
		}
		records[i] = record
	}

	return WriteOptions{Headers: headers, Records: records}
}

// WriteMatrixCSV writes m as a labelled CSV table
func WriteMatrixCSV(w io.Writer, m *align.Matrix) error {
	return writeCSV(w, matrixTable(m))
}
