package gemm

import (
	"github.com/gomlx/gemm/pkg/support/xslices"
	"github.com/x448/float16"
)

// MultiplyFloat16 is like Multiply for half-precision host matrices.
//
// The operands are staged on the device as float32, accumulated in float32 and the result is rounded
// back to float16 on the host.
func MultiplyFloat16(e *Engine, a, b [][]float16.Float16, c *[][]float16.Float16, alg Algorithm) error {
	toFloat32 := func(row []float16.Float16) []float32 {
		return xslices.Map(row, float16.Float16.Float32)
	}
	a32 := xslices.Map(a, toFloat32)
	b32 := xslices.Map(b, toFloat32)

	if c == nil {
		return Multiply(e, a32, b32, nil, alg)
	}
	// The float32 output mirrors the shape of c, so Multiply validates it.
	c32 := xslices.Map(*c, func(row []float16.Float16) []float32 { return make([]float32, len(row)) })
	if err := Multiply(e, a32, b32, &c32, alg); err != nil {
		return err
	}

	if len(*c) == 0 {
		*c = xslices.Map(c32, func(row []float32) []float16.Float16 {
			return xslices.Map(row, float16.Fromfloat32)
		})
		return nil
	}
	for rowIdx, row := range c32 {
		for colIdx, value := range row {
			(*c)[rowIdx][colIdx] = float16.Fromfloat32(value)
		}
	}
	return nil
}
