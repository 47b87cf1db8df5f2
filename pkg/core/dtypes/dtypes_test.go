package dtypes

import (
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/x448/float16"
)

type myFloat float32

func TestFromGenericsType(t *testing.T) {
	assert.Equal(t, Float32, FromGenericsType[float32]())
	assert.Equal(t, Float64, FromGenericsType[float64]())
	assert.Equal(t, Int32, FromGenericsType[int32]())
	assert.Equal(t, Uint8, FromGenericsType[uint8]())
	assert.Equal(t, Float32, FromGenericsType[myFloat]())
	if strconv.IntSize == 64 {
		assert.Equal(t, Int64, FromGenericsType[int]())
	}
}

func TestSize(t *testing.T) {
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 8, Float64.Size())
	assert.Equal(t, 2, Float16.Size())
	assert.Equal(t, 0, InvalidDType.Size())
	assert.Equal(t, 4*3*5, Float32.SizeForDimensions(3, 5))
	assert.Panics(t, func() { Float32.SizeForDimensions(-1) })
}

func TestStringAndKinds(t *testing.T) {
	assert.Equal(t, "Float32", Float32.String())
	assert.Equal(t, "DType(99)", DType(99).String())
	assert.True(t, Float16.IsFloat())
	assert.False(t, Int32.IsFloat())
	assert.Equal(t, Float16, FromGoType(reflect.TypeOf(float16.Fromfloat32(1))))
}
