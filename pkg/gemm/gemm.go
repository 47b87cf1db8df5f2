// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package gemm implements dense matrix multiplication, C = A·B, on an accelerator (see package device),
// with three kernels that trade memory hierarchy usage for throughput:
//
//   - AlgorithmNaive: one output element per unit, operands read from global memory.
//   - AlgorithmShared: tiles of A and B staged in the work-group scratchpad.
//   - AlgorithmSharedRegister: scratchpad tiles, plus each unit computing a block of outputs in
//     private accumulators.
//
// All of them produce the same results, up to floating-point summation order.
//
// There are two entry points: Multiply (and MultiplyFlat, MultiplyFloat16) takes host matrices and
// orchestrates the device buffers and the synchronization; Launch takes buffers already on the device
// and only enqueues the kernel.
package gemm

import (
	"time"

	"github.com/gomlx/gemm/pkg/core/dtypes"
	"github.com/gomlx/gemm/pkg/device"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// ErrDimensionMismatch is returned when A is not [M, K], B is not [K, N] or C is not [M, N], or if
	// any of the dimensions is 0.
	ErrDimensionMismatch = errors.New("matrix dimensions mismatch")

	// ErrRaggedMatrix is returned when the rows of a host matrix don't all have the same length.
	ErrRaggedMatrix = errors.New("ragged matrix")

	// ErrUnsupportedAlgorithm is returned for Algorithm values not defined in this package.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrUnsupportedDType is returned for element types without native arithmetic, like float16.Float16.
	ErrUnsupportedDType = errors.New("unsupported dtype")

	// ErrInvalidConfig is returned for invalid kernel configurations, see Config.Validate.
	ErrInvalidConfig = errors.New("invalid gemm configuration")
)

// Engine runs matrix multiplications on a device, with a fixed kernel configuration.
//
// It is safe for concurrent use: each call uses its own stream and device buffers.
type Engine struct {
	device *device.Device
	config Config
}

// New creates an Engine for the device with the given kernel configuration.
func New(dev *device.Device, config Config) (*Engine, error) {
	if dev == nil {
		return nil, errors.New("gemm.New: nil device")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{device: dev, config: config}, nil
}

// NewDefault creates an Engine on device.Default, configured by ConfigFromEnv.
func NewDefault() (*Engine, error) {
	dev, err := device.Default()
	if err != nil {
		return nil, err
	}
	config, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(dev, config)
}

// Device used by the engine.
func (e *Engine) Device() *device.Device {
	return e.device
}

// Config returns the kernel configuration used by the engine.
func (e *Engine) Config() Config {
	return e.config
}

// MultiplyFlat returns a·b, where a is a row-major [m, k] matrix and b is a row-major [k, n] matrix.
// The result is a newly allocated row-major [m, n] matrix.
//
// It validates all parameters before using the device, allocates the device buffers, launches the
// selected kernel and waits for it. Execution faults are not retried.
func MultiplyFlat[T dtypes.Number](e *Engine, a, b []T, m, k, n int, alg Algorithm) ([]T, error) {
	if !alg.IsAAlgorithm() {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %s", alg)
	}
	if err := checkDType[T](); err != nil {
		return nil, err
	}
	if err := checkDims(m, k, n); err != nil {
		return nil, err
	}
	if len(a) != m*k || len(b) != k*n {
		return nil, errors.Wrapf(ErrDimensionMismatch, "A has %d elements (want M*K=%d), B has %d elements (want K*N=%d)",
			len(a), m*k, len(b), k*n)
	}
	if _, err := LaunchConfigFor[T](alg, m, n, e.config); err != nil {
		return nil, err
	}
	start := time.Now()

	aBuf, err := device.Alloc[T](e.device, m*k)
	if err != nil {
		return nil, err
	}
	defer aBuf.Free()
	bBuf, err := device.Alloc[T](e.device, k*n)
	if err != nil {
		return nil, err
	}
	defer bBuf.Free()
	cBuf, err := device.Alloc[T](e.device, m*n)
	if err != nil {
		return nil, err
	}
	defer cBuf.Free()
	if err = aBuf.CopyFromHost(a); err != nil {
		return nil, err
	}
	if err = bBuf.CopyFromHost(b); err != nil {
		return nil, err
	}

	stream := e.device.NewStream()
	if err = Launch(stream, aBuf, bBuf, cBuf, m, k, n, alg, e.config); err != nil {
		return nil, err
	}
	if err = stream.Synchronize(); err != nil {
		return nil, errors.WithMessagef(err, "gemm [%d, %d] x [%d, %d] with algorithm %s", m, k, k, n, alg)
	}
	c := make([]T, m*n)
	if err = cBuf.CopyToHost(c); err != nil {
		return nil, err
	}
	klog.V(1).Infof("gemm: [%d, %d] x [%d, %d] with algorithm %s done in %s", m, k, k, n, alg, time.Since(start))
	return c, nil
}

// Multiply computes a·b into c, where a is a host matrix [M][K] and b is [K][N].
//
// If *c is empty it is allocated as [M][N]. Otherwise, it must already be shaped [M][N], and its rows
// are overwritten. On error *c is left untouched.
//
// All dimension checks happen before any device work. Any of M, K or N being 0 is an error.
func Multiply[T dtypes.Number](e *Engine, a, b [][]T, c *[][]T, alg Algorithm) error {
	if !alg.IsAAlgorithm() {
		return errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %s", alg)
	}
	if c == nil {
		return errors.Wrapf(ErrDimensionMismatch, "nil output matrix")
	}
	aFlat, m, k, err := Flatten(a)
	if err != nil {
		return errors.WithMessage(err, "matrix A")
	}
	bFlat, kB, n, err := Flatten(b)
	if err != nil {
		return errors.WithMessage(err, "matrix B")
	}
	if err = checkDims(m, k, n); err != nil {
		return err
	}
	if k != kB {
		return errors.Wrapf(ErrDimensionMismatch, "A is [%d, %d] and B is [%d, %d]", m, k, kB, n)
	}
	if len(*c) != 0 {
		if err = checkShape(*c, m, n); err != nil {
			return errors.WithMessagef(err, "output matrix C for A [%d, %d] and B [%d, %d]", m, k, kB, n)
		}
	}

	cFlat, err := MultiplyFlat(e, aFlat, bFlat, m, k, n, alg)
	if err != nil {
		return err
	}
	if len(*c) == 0 {
		*c = Reshape(cFlat, m, n)
		return nil
	}
	for row := range m {
		copy((*c)[row], cFlat[row*n:(row+1)*n])
	}
	return nil
}
