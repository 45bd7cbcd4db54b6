package exporter

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"runmatrix/internal/align"
)

// SheetName is the worksheet holding the matrix
const SheetName = "data"

// WriteMatrixXLSX writes m as a workbook with one labelled sheet. Pad cells
// are left empty; measured non-finite values are written as text.
func WriteMatrixXLSX(w io.Writer, m *align.Matrix) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for j := 0; j < m.Cols; j++ {
		cell, err := excelize.CoordinatesToCellName(j+2, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, stepLabel(j)); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i := 0; i < m.Rows; i++ {
		row := make([]interface{}, 0, m.Cols+1)
		row = append(row, runLabel(i))
		for j, v := range m.Row(i) {
			switch {
			case m.Missing(i, j):
				row = append(row, nil)
			case math.IsNaN(v) || math.IsInf(v, 0):
				row = append(row, formatFloat(v))
			default:
				row = append(row, v)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
