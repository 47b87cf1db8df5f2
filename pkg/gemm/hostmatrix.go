package gemm

import (
	"github.com/pkg/errors"
)

// Flatten converts a host matrix, a slice of rows, into a flat row-major slice.
//
// It returns ErrRaggedMatrix if the rows don't all have the same length. An empty matrix returns
// rows=0 and cols=0.
func Flatten[T any](matrix [][]T) (flat []T, rows, cols int, err error) {
	rows = len(matrix)
	if rows == 0 {
		return nil, 0, 0, nil
	}
	cols = len(matrix[0])
	flat = make([]T, 0, rows*cols)
	for rowIdx, row := range matrix {
		if len(row) != cols {
			return nil, 0, 0, errors.Wrapf(ErrRaggedMatrix, "row %d has %d columns, row 0 has %d", rowIdx, len(row), cols)
		}
		flat = append(flat, row...)
	}
	return flat, rows, cols, nil
}

// Reshape converts a flat row-major slice into a host matrix of rows×cols.
//
// The rows share the flat slice storage. It panics if len(flat) != rows*cols.
func Reshape[T any](flat []T, rows, cols int) [][]T {
	if len(flat) != rows*cols {
		panic(errors.Errorf("Reshape: %d elements can't be reshaped to [%d, %d]", len(flat), rows, cols))
	}
	matrix := make([][]T, rows)
	for row := range rows {
		matrix[row] = flat[row*cols : (row+1)*cols : (row+1)*cols]
	}
	return matrix
}

// checkShape returns ErrDimensionMismatch if matrix is not [rows][cols].
func checkShape[T any](matrix [][]T, rows, cols int) error {
	if len(matrix) != rows {
		return errors.Wrapf(ErrDimensionMismatch, "got %d rows, want %d", len(matrix), rows)
	}
	for rowIdx, row := range matrix {
		if len(row) != cols {
			return errors.Wrapf(ErrDimensionMismatch, "row %d has %d columns, want %d", rowIdx, len(row), cols)
		}
	}
	return nil
}
