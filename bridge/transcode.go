package bridge

import (
	"github.com/maxpert/mxbridge/mx"
)

// Allocator creates native double matrices. engine.Conn satisfies it.
type Allocator interface {
	NewDoubleMatrix(rows, cols int) (mx.Matrix, error)
}

// ColumnMajor flattens a rectangular row-major matrix so that element
// (r, c) lands at mx.LinearOffset(r, c, rows).
func ColumnMajor(m [][]float64) []float64 {
	if len(m) == 0 {
		return nil
	}
	rows, cols := len(m), len(m[0])
	out := make([]float64, rows*cols)
	for r, row := range m {
		for c, v := range row {
			out[mx.LinearOffset(r, c, rows)] = v
		}
	}
	return out
}

// RowMajor rebuilds rows x cols row-major rows from a column-major buffer.
func RowMajor(buf []float64, rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for r := range out {
		out[r] = make([]float64, cols)
		for c := range out[r] {
			out[r][c] = buf[mx.LinearOffset(r, c, rows)]
		}
	}
	return out
}

// checkRectangular validates a host matrix before anything is allocated.
func checkRectangular(m [][]float64) (rows, cols int, err error) {
	if len(m) == 0 {
		return 0, 0, ErrInvalidArgument
	}
	cols = len(m[0])
	for i, row := range m[1:] {
		if len(row) != cols {
			return 0, 0, &RaggedRowError{Row: i + 1, Want: cols, Got: len(row)}
		}
	}
	if cols == 0 {
		return 0, 0, ErrEmptyMatrix
	}
	return len(m), cols, nil
}

// DecodeReal converts a double array into a Value. A 1x1 array collapses
// to a Double scalar; anything larger becomes a row-major matrix.
func DecodeReal(a mx.Array) (Value, error) {
	dims := a.Dimensions()
	if len(dims) != 2 {
		return Value{}, &DimensionError{Dims: append([]int(nil), dims...)}
	}
	rows, cols := dims[0], dims[1]
	if rows <= 0 || cols <= 0 {
		return Value{}, ErrEmptyMatrix
	}
	buf := a.Data()
	if cols > len(buf)/8/rows {
		return Value{}, ErrShortBuffer
	}
	if rows == 1 && cols == 1 {
		return Value{Tag: Double, Real: mx.Float64At(buf, 0)}, nil
	}
	flat := make([]float64, rows*cols)
	for i := range flat {
		flat[i] = mx.Float64At(buf, i)
	}
	return Value{Tag: Double, IsArray: true, Matrix: RowMajor(flat, rows, cols)}, nil
}

// EncodeReal allocates a native matrix through alloc and fills it from the
// row-major host matrix m. The caller owns the returned handle.
func EncodeReal(alloc Allocator, m [][]float64) (mx.Matrix, error) {
	rows, cols, err := checkRectangular(m)
	if err != nil {
		return nil, err
	}
	handle, err := alloc.NewDoubleMatrix(rows, cols)
	if err != nil {
		return nil, err
	}
	for r, row := range m {
		for c, v := range row {
			handle.Set(mx.LinearOffset(r, c, rows), v)
		}
	}
	return handle, nil
}
