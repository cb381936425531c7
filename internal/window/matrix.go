// Package window holds the histogram exchange buffers for the ensemble
// restraint: the 2D matrix handed to the cross-replica reduction and the
// fixed-depth rolling buffer of reduced windows.
package window

import "fmt"

// Matrix is a dense row-major 2D buffer. Restraint histograms are
// semantically one row, but the reduction contract exchanges 2D buffers so
// the shape travels with the data.
type Matrix struct {
	rows, cols int
	data       []float64
}

func NewMatrix(rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("matrix shape must be positive, got %dx%d", rows, cols)
	}
	return &Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}, nil
}

func (m *Matrix) Rows() int {
	return m.rows
}

func (m *Matrix) Cols() int {
	return m.cols
}

// Data returns the backing slice in row-major order.
func (m *Matrix) Data() []float64 {
	return m.data
}

func (m *Matrix) At(r, c int) float64 {
	return m.data[r*m.cols+c]
}

func (m *Matrix) Set(r, c int, v float64) {
	m.data[r*m.cols+c] = v
}

// SameShape reports whether o has identical dimensions.
func (m *Matrix) SameShape(o *Matrix) bool {
	return o != nil && m.rows == o.rows && m.cols == o.cols
}

// Clone returns an independent copy.
func (m *Matrix) Clone() *Matrix {
	out := &Matrix{rows: m.rows, cols: m.cols, data: make([]float64, len(m.data))}
	copy(out.data, m.data)
	return out
}
