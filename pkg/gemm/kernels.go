// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"github.com/gomlx/gemm/pkg/core/dtypes"
	"github.com/gomlx/gemm/pkg/device"
)

// All kernels take flat row-major buffers: A is [m, k], B is [k, n] and C is [m, n].
// The grid X axis walks the columns of C, the Y axis its rows.

// mulAdd is the multiply-accumulate primitive shared by all kernels.
func mulAdd[T dtypes.Number](acc, a, b T) T {
	return acc + a*b
}

// naiveKernel computes one element of C per unit, reading A and B directly from global memory.
func naiveKernel[T dtypes.Number](a, b, c []T, m, k, n int) func(t *device.Thread, _ struct{}) {
	return func(t *device.Thread, _ struct{}) {
		row := t.BlockIdx.Y*t.BlockDim.Y + t.ThreadIdx.Y
		col := t.BlockIdx.X*t.BlockDim.X + t.ThreadIdx.X
		if row >= m || col >= n {
			return
		}
		var acc T
		aRow := a[row*k : (row+1)*k]
		for kIdx, aValue := range aRow {
			acc = mulAdd(acc, aValue, b[kIdx*n+col])
		}
		c[row*n+col] = acc
	}
}

// tileScratchpad is the work-group scratchpad of the shared-memory kernels: one tile×tile tile of A
// and one of B, both row-major.
type tileScratchpad[T dtypes.Number] struct {
	a, b []T
}

func newTileScratchpad[T dtypes.Number](tile int) func() *tileScratchpad[T] {
	return func() *tileScratchpad[T] {
		return &tileScratchpad[T]{
			a: make([]T, tile*tile),
			b: make([]T, tile*tile),
		}
	}
}

// scratchpadBytes is the scratchpad size used by one work-group of the shared-memory kernels.
func scratchpadBytes[T dtypes.Number](tile int) int {
	return 2 * dtypes.FromGenericsType[T]().SizeForDimensions(tile, tile)
}

// sharedKernel computes one element of C per unit, staging tile×tile tiles of A and B in the
// scratchpad for each chunk of tile columns of A (rows of B).
//
// Work-groups are tile×tile units. Per chunk, each unit loads one element of each tile (zero if
// out of bounds), then all units accumulate from the scratchpad: a barrier closes each phase.
func sharedKernel[T dtypes.Number](a, b, c []T, m, k, n, tile int) func(t *device.Thread, s *tileScratchpad[T]) {
	return func(t *device.Thread, s *tileScratchpad[T]) {
		tx, ty := t.ThreadIdx.X, t.ThreadIdx.Y
		row := t.BlockIdx.Y*tile + ty
		col := t.BlockIdx.X*tile + tx
		slot := ty*tile + tx
		var acc T
		for k0 := 0; k0 < k; k0 += tile {
			// Load phase: each unit writes only its own slot.
			if aCol := k0 + tx; row < m && aCol < k {
				s.a[slot] = a[row*k+aCol]
			} else {
				s.a[slot] = 0
			}
			if bRow := k0 + ty; bRow < k && col < n {
				s.b[slot] = b[bRow*n+col]
			} else {
				s.b[slot] = 0
			}
			t.SyncThreads()

			// Compute phase: read only.
			aTileRow := s.a[ty*tile : (ty+1)*tile]
			for kk, aValue := range aTileRow {
				acc = mulAdd(acc, aValue, s.b[kk*tile+tx])
			}
			t.SyncThreads()
		}
		if row < m && col < n {
			c[row*n+col] = acc
		}
	}
}

// sharedRegisterKernel extends sharedKernel: each unit computes a rm×rn block of C, accumulated in
// private arrays, re-using each value read from the scratchpad rn (for A) or rm (for B) times.
//
// Work-groups are (tile/rn)×(tile/rm) units, and still cover a tile×tile block of C. The
// cooperative load is strided: each unit loads rm*rn elements of each tile.
func sharedRegisterKernel[T dtypes.Number](a, b, c []T, m, k, n, tile, rm, rn int) func(t *device.Thread, s *tileScratchpad[T]) {
	return func(t *device.Thread, s *tileScratchpad[T]) {
		tx, ty := t.ThreadIdx.X, t.ThreadIdx.Y
		numUnits := t.BlockDim.X * t.BlockDim.Y
		unitIdx := t.LinearThreadIdx()
		blockRow := t.BlockIdx.Y * tile
		blockCol := t.BlockIdx.X * tile

		// Private storage: accumulators and the operands of one step.
		var (
			acc  [MaxRegisterBlock * MaxRegisterBlock]T
			aReg [MaxRegisterBlock]T
			bReg [MaxRegisterBlock]T
		)

		for k0 := 0; k0 < k; k0 += tile {
			// Load phase.
			for slot := unitIdx; slot < tile*tile; slot += numUnits {
				tileRow, tileCol := slot/tile, slot%tile
				if aRow, aCol := blockRow+tileRow, k0+tileCol; aRow < m && aCol < k {
					s.a[slot] = a[aRow*k+aCol]
				} else {
					s.a[slot] = 0
				}
				if bRow, bCol := k0+tileRow, blockCol+tileCol; bRow < k && bCol < n {
					s.b[slot] = b[bRow*n+bCol]
				} else {
					s.b[slot] = 0
				}
			}
			t.SyncThreads()

			// Compute phase.
			for kk := range tile {
				for i := range rm {
					aReg[i] = s.a[(ty*rm+i)*tile+kk]
				}
				bTileRow := s.b[kk*tile+tx*rn : kk*tile+(tx+1)*rn]
				copy(bReg[:rn], bTileRow)
				for i := range rm {
					for j := range rn {
						acc[i*rn+j] = mulAdd(acc[i*rn+j], aReg[i], bReg[j])
					}
				}
			}
			t.SyncThreads()
		}

		// Write each in-bounds element of the block.
		for i := range rm {
			row := blockRow + ty*rm + i
			if row >= m {
				break
			}
			for j := range rn {
				col := blockCol + tx*rn + j
				if col >= n {
					break
				}
				c[row*n+col] = acc[i*rn+j]
			}
		}
	}
}
