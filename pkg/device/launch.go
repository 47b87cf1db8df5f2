// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gemm/pkg/support/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Dim3 are the dimensions (or an index) of a grid or of a work-group. X is the fastest varying axis.
type Dim3 struct {
	X, Y, Z int
}

// Dim returns a 2D Dim3, with Z=1.
func Dim(x, y int) Dim3 {
	return Dim3{X: x, Y: y, Z: 1}
}

// Size returns the number of elements X*Y*Z.
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// String implements fmt.Stringer.
func (d Dim3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", d.X, d.Y, d.Z)
}

// unflatten converts a linear index into the corresponding Dim3 index, X varying fastest.
func (d Dim3) unflatten(idx int) Dim3 {
	return Dim3{
		X: idx % d.X,
		Y: (idx / d.X) % d.Y,
		Z: idx / (d.X * d.Y),
	}
}

// LaunchConfig describes the grid of work-groups of a kernel launch.
type LaunchConfig struct {
	// Name of the kernel, used in logs and errors.
	Name string

	// Grid is the number of work-groups on each axis.
	Grid Dim3

	// Block is the number of units per work-group on each axis.
	Block Dim3

	// SharedMemBytes is the scratchpad used by each work-group. It must fit the device SharedMemPerBlock.
	SharedMemBytes int
}

// String implements fmt.Stringer.
func (cfg LaunchConfig) String() string {
	return fmt.Sprintf("%s<<<grid=%s, block=%s, smem=%s>>>", cfg.Name, cfg.Grid, cfg.Block,
		humanize.IBytes(uint64(cfg.SharedMemBytes)))
}

// Thread is the context of one unit of work of a kernel.
type Thread struct {
	// BlockIdx is the index of the work-group in the grid.
	BlockIdx Dim3

	// ThreadIdx is the index of the unit within its work-group.
	ThreadIdx Dim3

	// BlockDim and GridDim are the dimensions of the launch.
	BlockDim, GridDim Dim3

	group *workGroup
}

// LinearThreadIdx returns the index of the unit within its work-group, flattened with X varying fastest.
func (t *Thread) LinearThreadIdx() int {
	return t.ThreadIdx.X + t.BlockDim.X*(t.ThreadIdx.Y+t.BlockDim.Y*t.ThreadIdx.Z)
}

// SyncThreads is the work-group barrier: it returns only after every unit of the work-group called it.
//
// Every unit of the work-group must reach the same sequence of SyncThreads calls, so it must never
// be called from a branch that depends on the unit's index.
func (t *Thread) SyncThreads() {
	if err := t.group.barrier.Wait(); err != nil {
		// Another unit faulted: unwind this one.
		panic(errGroupAborted)
	}
}

// errGroupAborted is the panic used to unwind the units of a work-group after another unit faulted.
var errGroupAborted = errors.New("work-group aborted")

// workGroup is the state shared by the units of one work-group.
type workGroup struct {
	barrier *xsync.Barrier
}

// Launch enqueues a kernel on the stream and returns immediately: faults are reported by
// Stream.Synchronize.
//
// The kernel function is called once per unit of the grid, each on its own goroutine. For each
// work-group newShared is called once to create its scratchpad, shared by all units of the
// work-group. If newShared is nil, the units get the zero value of S.
//
// It returns ErrInvalidLaunch if the configuration exceeds the device limits.
func Launch[S any](s *Stream, cfg LaunchConfig, newShared func() S, kernel func(t *Thread, shared S)) error {
	d := s.device
	if err := d.validateLaunch(cfg); err != nil {
		return err
	}
	if kernel == nil {
		return errors.Wrapf(ErrInvalidLaunch, "kernel %q: nil kernel function", cfg.Name)
	}
	if newShared == nil {
		newShared = func() (zero S) { return }
	}
	klog.V(1).Infof("device: enqueuing %s", cfg)
	s.enqueue(cfg.Name, false, func() error {
		return d.runGrid(cfg, func(blockIdx Dim3) error {
			return runWorkGroup(cfg, blockIdx, newShared, kernel)
		})
	})
	return nil
}

// validateLaunch checks cfg against the device properties.
func (d *Device) validateLaunch(cfg LaunchConfig) error {
	for _, dims := range []Dim3{cfg.Grid, cfg.Block} {
		if dims.X < 1 || dims.Y < 1 || dims.Z < 1 {
			return errors.Wrapf(ErrInvalidLaunch, "%s: all dimensions must be >= 1", cfg)
		}
	}
	if cfg.Block.Size() > d.props.MaxThreadsPerBlock {
		return errors.Wrapf(ErrInvalidLaunch, "%s: %d threads per block exceeds device limit of %d",
			cfg, cfg.Block.Size(), d.props.MaxThreadsPerBlock)
	}
	if cfg.SharedMemBytes < 0 || cfg.SharedMemBytes > d.props.SharedMemPerBlock {
		return errors.Wrapf(ErrInvalidLaunch, "%s: scratchpad exceeds device limit of %s per block",
			cfg, humanize.IBytes(uint64(d.props.SharedMemPerBlock)))
	}
	return nil
}

// runGrid runs all work-groups of the grid on the device pool, and waits for them to finish.
//
// After the first failing work-group, no new work-group is started.
func (d *Device) runGrid(cfg LaunchConfig, runGroup func(blockIdx Dim3) error) error {
	var (
		wg       sync.WaitGroup
		failed   atomic.Bool
		muErr    sync.Mutex
		firstErr error
	)
	numGroups := cfg.Grid.Size()
	klog.V(2).Infof("device: running %d work-groups of %s, at most %d resident", numGroups, cfg.Name,
		d.pool.MaxParallelism())
	for groupIdx := range numGroups {
		if failed.Load() {
			break
		}
		blockIdx := cfg.Grid.unflatten(groupIdx)
		wg.Add(1)
		d.pool.WaitToStart(func() {
			defer wg.Done()
			if failed.Load() {
				return
			}
			if err := runGroup(blockIdx); err != nil {
				muErr.Lock()
				if firstErr == nil {
					firstErr = err
				}
				muErr.Unlock()
				failed.Store(true)
			}
		})
	}
	wg.Wait()
	return firstErr
}

// runWorkGroup runs all the units of one work-group, each in its own goroutine, and waits for them.
//
// If a unit panics, the work-group barrier is broken so the other units unwind, and the fault is returned.
func runWorkGroup[S any](cfg LaunchConfig, blockIdx Dim3, newShared func() S, kernel func(t *Thread, shared S)) error {
	numUnits := cfg.Block.Size()
	group := &workGroup{barrier: xsync.NewBarrier(numUnits)}
	shared := newShared()

	var (
		wg    sync.WaitGroup
		once  sync.Once
		fault error
	)
	for unitIdx := range numUnits {
		t := &Thread{
			BlockIdx:  blockIdx,
			ThreadIdx: cfg.Block.unflatten(unitIdx),
			BlockDim:  cfg.Block,
			GridDim:   cfg.Grid,
			group:     group,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			exception := exceptions.Try(func() { kernel(t, shared) })
			if exception == nil {
				return
			}
			if err, ok := exception.(error); ok && errors.Is(err, errGroupAborted) {
				return
			}
			once.Do(func() {
				fault = errors.Wrapf(ErrKernelFault, "kernel %q, block %s, thread %s: %v",
					cfg.Name, t.BlockIdx, t.ThreadIdx, exception)
			})
			group.barrier.Break()
		}()
	}
	wg.Wait()
	return fault
}
