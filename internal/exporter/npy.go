package exporter

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"runmatrix/internal/align"
)

// NumPy .npy format version 1.0
const (
	npyMagic     = "\x93NUMPY"
	npyMajor     = 1
	npyMinor     = 0
	npyAlignment = 64
	// magic + version + header length field
	npyPreamble = len(npyMagic) + 2 + 2
)

// npyHeader returns the padded header dict of a C-order little-endian
// float64 array with the given shape
func npyHeader(rows, cols int) string {
	dict := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)
	total := npyPreamble + len(dict) + 1
	if rem := total % npyAlignment; rem != 0 {
		dict += strings.Repeat(" ", npyAlignment-rem)
	}
	return dict + "\n"
}

// WriteNPY writes m as a two-dimensional float64 array, including the
// zero-by-zero case
func WriteNPY(w io.Writer, m *align.Matrix) error {
	header := npyHeader(m.Rows, m.Cols)
	if len(header) > math.MaxUint16 {
		return fmt.Errorf("npy header too long: %d bytes", len(header))
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(npyMagic)
	bw.WriteByte(npyMajor)
	bw.WriteByte(npyMinor)

	var buf [8]byte
	binary.LittleEndian.PutUint16(buf[:2], uint16(len(header)))
	bw.Write(buf[:2])
	bw.WriteString(header)

	for _, v := range m.Data {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		if _, err := bw.Write(buf[:]); err != nil {
			return fmt.Errorf("failed to write npy data: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write npy file: %w", err)
	}
	return nil
}
