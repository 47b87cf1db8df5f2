// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"github.com/gomlx/gemm/pkg/core/dtypes"
	"github.com/gomlx/gemm/pkg/device"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// LaunchConfigFor returns the grid and work-group shapes used to multiply an [m, k] by a [k, n]
// matrix of T with the given algorithm. Only m and n matter: k is walked by each unit.
func LaunchConfigFor[T dtypes.Number](alg Algorithm, m, n int, cfg Config) (device.LaunchConfig, error) {
	var launchCfg device.LaunchConfig
	if err := cfg.Validate(); err != nil {
		return launchCfg, err
	}
	launchCfg.Name = alg.String()
	switch alg {
	case AlgorithmNaive:
		nb := cfg.NaiveBlockSize
		launchCfg.Block = device.Dim(nb, nb)
		launchCfg.Grid = device.Dim(ceilDiv(n, nb), ceilDiv(m, nb))
	case AlgorithmShared:
		tile := cfg.TileSize
		launchCfg.Block = device.Dim(tile, tile)
		launchCfg.Grid = device.Dim(ceilDiv(n, tile), ceilDiv(m, tile))
		launchCfg.SharedMemBytes = scratchpadBytes[T](tile)
	case AlgorithmSharedRegister:
		tile := cfg.TileSize
		launchCfg.Block = device.Dim(tile/cfg.RegisterBlockCols, tile/cfg.RegisterBlockRows)
		launchCfg.Grid = device.Dim(ceilDiv(n, tile), ceilDiv(m, tile))
		launchCfg.SharedMemBytes = scratchpadBytes[T](tile)
	default:
		return launchCfg, errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %s", alg)
	}
	return launchCfg, nil
}

// checkDType returns ErrUnsupportedDType for types the kernels can't do arithmetic on.
func checkDType[T dtypes.Number]() error {
	dtype := dtypes.FromGenericsType[T]()
	if dtype == dtypes.Float16 || dtype == dtypes.InvalidDType {
		return errors.Wrapf(ErrUnsupportedDType, "dtype %s, use MultiplyFloat16 for half-precision", dtype)
	}
	return nil
}

// checkDims returns ErrDimensionMismatch if any dimension is not positive.
func checkDims(m, k, n int) error {
	if m < 1 || k < 1 || n < 1 {
		return errors.Wrapf(ErrDimensionMismatch, "M=%d, K=%d, N=%d: all dimensions must be >= 1", m, k, n)
	}
	return nil
}

// Launch enqueues on the stream the multiplication of device buffers: c = a·b, where a is a
// row-major [m, k] matrix, b is [k, n] and c is [m, n].
//
// It returns after the kernel is enqueued: the caller must call stream.Synchronize to wait for the
// result, and to get any execution fault. All parameters are validated before anything is enqueued.
func Launch[T dtypes.Number](stream *device.Stream, a, b, c *device.Buffer[T], m, k, n int, alg Algorithm, cfg Config) error {
	if !alg.IsAAlgorithm() {
		return errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %s", alg)
	}
	if err := checkDType[T](); err != nil {
		return err
	}
	if err := checkDims(m, k, n); err != nil {
		return err
	}
	for _, buf := range []struct {
		name   string
		buffer *device.Buffer[T]
		want   int
	}{{"A", a, m * k}, {"B", b, k * n}, {"C", c, m * n}} {
		if buf.buffer == nil || !buf.buffer.IsValid() {
			return errors.Wrapf(device.ErrInvalidBuffer, "buffer %s is nil or freed", buf.name)
		}
		if buf.buffer.Len() != buf.want {
			return errors.Wrapf(ErrDimensionMismatch, "buffer %s has %d elements, want %d for M=%d, K=%d, N=%d",
				buf.name, buf.buffer.Len(), buf.want, m, k, n)
		}
	}
	launchCfg, err := LaunchConfigFor[T](alg, m, n, cfg)
	if err != nil {
		return err
	}
	klog.V(1).Infof("gemm: launching [%d, %d] x [%d, %d] %s with %s", m, k, k, n, dtypes.FromGenericsType[T](), launchCfg)

	aFlat, bFlat, cFlat := a.Global(), b.Global(), c.Global()
	switch alg {
	case AlgorithmNaive:
		err = device.Launch(stream, launchCfg, nil, naiveKernel(aFlat, bFlat, cFlat, m, k, n))
	case AlgorithmShared:
		err = device.Launch(stream, launchCfg, newTileScratchpad[T](cfg.TileSize),
			sharedKernel(aFlat, bFlat, cFlat, m, k, n, cfg.TileSize))
	case AlgorithmSharedRegister:
		err = device.Launch(stream, launchCfg, newTileScratchpad[T](cfg.TileSize),
			sharedRegisterKernel(aFlat, bFlat, cFlat, m, k, n, cfg.TileSize, cfg.RegisterBlockRows, cfg.RegisterBlockCols))
	}
	if err != nil {
		return errors.WithMessagef(err, "gemm with algorithm %s and %s", alg, cfg)
	}
	return nil
}
