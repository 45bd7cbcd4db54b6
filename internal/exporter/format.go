package exporter

import (
	"fmt"
	"math"
	"strconv"
)

// Text rendering of non-finite cells, readable by numpy and pandas
const (
	nanText    = "NaN"
	posInfText = "inf"
	negInfText = "-inf"
)

// formatFloat formats a float64 value with the shortest representation that
// round-trips
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return nanText
	case math.IsInf(f, 1):
		return posInfText
	case math.IsInf(f, -1):
		return negInfText
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// runLabel is the synthetic row label of row i
func runLabel(i int) string {
	return fmt.Sprintf("run %d", i)
}

// stepLabel is the synthetic column label of column j
func stepLabel(j int) string {
	return fmt.Sprintf("step %d", j)
}
