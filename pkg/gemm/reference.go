// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import "github.com/gomlx/gemm/pkg/core/dtypes"

// Reference computes a·b on the host, with a straightforward scalar loop, where a is a row-major
// [m, k] matrix and b is a row-major [k, n] matrix. It returns the row-major [m, n] result.
//
// It is the baseline the kernels are checked against. It panics if the lengths don't match the dimensions.
func Reference[T dtypes.Number](a, b []T, m, k, n int) []T {
	if len(a) != m*k || len(b) != k*n {
		panic(ErrDimensionMismatch)
	}
	c := make([]T, m*n)
	// For row-major B [k, n], the stride between elements in the same column is n.
	bColStride := n
	for row := range m {
		aRowStart := row * k
		for col := range n {
			var sum T
			kIdx := 0
			for ; kIdx+3 < k; kIdx += 4 {
				sum = mulAdd(sum, a[aRowStart+kIdx], b[col+kIdx*bColStride])
				sum = mulAdd(sum, a[aRowStart+kIdx+1], b[col+(kIdx+1)*bColStride])
				sum = mulAdd(sum, a[aRowStart+kIdx+2], b[col+(kIdx+2)*bColStride])
				sum = mulAdd(sum, a[aRowStart+kIdx+3], b[col+(kIdx+3)*bColStride])
			}
			for ; kIdx < k; kIdx++ {
				sum = mulAdd(sum, a[aRowStart+kIdx], b[col+kIdx*bColStride])
			}
			c[row*n+col] = sum
		}
	}
	return c
}
