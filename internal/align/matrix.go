package align

import "math"

// Pad is the value stored in cells past the end of a row
var Pad = math.NaN()

// Matrix is the aligned data of one field, stored row-major
type Matrix struct {
	Field string
	Rows  int
	Cols  int
	Data  []float64
	// Lengths holds the number of real samples of each row
	Lengths []int
	// Runs maps each row to the index of its run in the aligned input
	Runs []int
	// RunNames holds the display name of each row's run
	RunNames []string
	// Padded is the number of pad cells
	Padded int
}

// Empty reports whether no run had a sample of the field
func (m *Matrix) Empty() bool {
	return m.Rows == 0
}

// Shape returns rows and columns
func (m *Matrix) Shape() (int, int) {
	return m.Rows, m.Cols
}

// At returns the cell at row i, column j
func (m *Matrix) At(i, j int) float64 {
	return m.Data[i*m.Cols+j]
}

// Row returns a view of row i
func (m *Matrix) Row(i int) []float64 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Missing reports whether the cell at row i, column j is padding
func (m *Matrix) Missing(i, j int) bool {
	return j >= m.Lengths[i]
}
