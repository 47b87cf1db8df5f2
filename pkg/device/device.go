// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package device emulates a massively parallel accelerator on the host.
//
// It exposes the execution model of GPU-style accelerators:
//
//   - Global memory: typed Buffer values allocated against a fixed capacity, see Alloc.
//   - Kernels launched on a grid of work-groups (blocks), each a set of parallel units (threads)
//     that share a scratchpad and synchronize with a barrier (Thread.SyncThreads), see Launch.
//   - Streams: in-order queues of device operations, synchronized by the host with
//     Stream.Synchronize or polled with Stream.Query.
//
// Each unit runs in its own goroutine, and work-groups are scheduled on a pool capped by the
// number of multiprocessors. Units of different work-groups never communicate.
//
// A panic in a unit (out-of-bounds access and the like) is reported as an ErrKernelFault by the
// stream: faults are fatal for the operation, nothing is retried.
package device

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gemm/internal/workerspool"
	"github.com/gomlx/gemm/pkg/support/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// EnvDeviceConfig is the environment variable with the configuration used by Default.
const EnvDeviceConfig = "GEMM_DEVICE"

var (
	// ErrInvalidConfig is returned by New for malformed configurations.
	ErrInvalidConfig = errors.New("invalid device configuration")

	// ErrOutOfMemory is returned when the device global memory can't hold a requested allocation.
	ErrOutOfMemory = errors.New("device out of memory")

	// ErrInvalidBuffer is returned when using a freed buffer or with mismatched sizes.
	ErrInvalidBuffer = errors.New("invalid device buffer")

	// ErrInvalidLaunch is returned by Launch when the launch configuration exceeds the device limits.
	ErrInvalidLaunch = errors.New("invalid kernel launch configuration")

	// ErrKernelFault is reported by Stream.Synchronize when a unit of a kernel faulted during execution.
	ErrKernelFault = errors.New("kernel execution fault")
)

// Properties of an emulated device.
type Properties struct {
	Name                string
	MultiProcessorCount int    // Number of work-groups running concurrently.
	SharedMemPerBlock   int    // Scratchpad bytes available to one work-group.
	TotalGlobalMem      uint64 // Capacity of the global memory, in bytes.
	MaxThreadsPerBlock  int    // Maximum number of units in a work-group.
}

// DefaultProperties used by New for values not given in the configuration.
func DefaultProperties() Properties {
	return Properties{
		Name:                "emulated",
		MultiProcessorCount: runtime.NumCPU(),
		SharedMemPerBlock:   48 * 1024,
		TotalGlobalMem:      1 << 30,
		MaxThreadsPerBlock:  1024,
	}
}

// Device is an emulated accelerator. It is safe for concurrent use.
type Device struct {
	props Properties
	pool  *workerspool.Pool

	muMem     sync.Mutex
	allocated uint64

	// bufferPools holds freed storage for reuse, per dtype and length.
	bufferPools xsync.SyncMap[bufferPoolKey, *sync.Pool]

}

// New creates a new emulated device.
//
// The config is a comma-separated list of "key=value" options:
//
//   - "sm=<int>": number of multiprocessors, that is, of work-groups running concurrently.
//   - "smem=<bytes>": scratchpad bytes per work-group. E.g.: "smem=48KiB".
//   - "mem=<bytes>": capacity of the global memory. E.g.: "mem=256MB".
//   - "threads=<int>": maximum number of units per work-group.
//   - "name=<string>": device name used in logs.
//
// An empty config uses DefaultProperties.
func New(config string) (*Device, error) {
	props := DefaultProperties()
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return nil, errors.Wrapf(ErrInvalidConfig, "option %q is not in the form key=value", part)
		}
		var err error
		switch key {
		case "sm":
			props.MultiProcessorCount, err = parsePositiveInt(value)
		case "threads":
			props.MaxThreadsPerBlock, err = parsePositiveInt(value)
		case "smem":
			var bytes uint64
			bytes, err = humanize.ParseBytes(value)
			props.SharedMemPerBlock = int(bytes)
		case "mem":
			props.TotalGlobalMem, err = humanize.ParseBytes(value)
		case "name":
			props.Name = value
		default:
			return nil, errors.Wrapf(ErrInvalidConfig, "unknown option %q", key)
		}
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "option %q: %v", part, err)
		}
	}
	return NewWithProperties(props)
}

// NewWithProperties creates a new emulated device with the given properties.
func NewWithProperties(props Properties) (*Device, error) {
	if props.MultiProcessorCount < 1 || props.MaxThreadsPerBlock < 1 || props.SharedMemPerBlock < 0 ||
		props.TotalGlobalMem == 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "invalid properties %+v", props)
	}
	d := &Device{
		props: props,
		pool:  workerspool.New(props.MultiProcessorCount),
	}
	klog.V(1).Infof("device: created %s", d)
	return d, nil
}

func parsePositiveInt(value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return 0, errors.Errorf("value must be >= 1, got %d", v)
	}
	return v, nil
}

var defaultDevice = sync.OnceValues(func() (*Device, error) {
	return New(os.Getenv(EnvDeviceConfig))
})

// Default returns a device shared by the whole program, created on first use with the
// configuration in the environment variable GEMM_DEVICE.
func Default() (*Device, error) {
	return defaultDevice()
}

// Properties returns the properties of the device.
func (d *Device) Properties() Properties {
	return d.props
}

// String implements fmt.Stringer.
func (d *Device) String() string {
	return fmt.Sprintf("device %q (%d multiprocessors, %d threads/block, %s scratchpad/block, %s global memory)",
		d.props.Name, d.props.MultiProcessorCount, d.props.MaxThreadsPerBlock,
		humanize.IBytes(uint64(d.props.SharedMemPerBlock)), humanize.IBytes(d.props.TotalGlobalMem))
}

// Description is a longer description of the device, including the features of the host CPU
// emulating it.
func (d *Device) Description() string {
	features := HostFeatures()
	if len(features) == 0 {
		return d.String()
	}
	return fmt.Sprintf("%s on %s host [%s]", d, runtime.GOARCH, strings.Join(features, ","))
}

// AllocatedBytes returns the number of bytes of global memory currently allocated.
func (d *Device) AllocatedBytes() uint64 {
	d.muMem.Lock()
	defer d.muMem.Unlock()
	return d.allocated
}

// reserve global memory for an allocation.
func (d *Device) reserve(bytes uint64) error {
	d.muMem.Lock()
	defer d.muMem.Unlock()
	if d.allocated+bytes > d.props.TotalGlobalMem {
		return errors.Wrapf(ErrOutOfMemory, "requested %s, with %s of %s in use",
			humanize.IBytes(bytes), humanize.IBytes(d.allocated), humanize.IBytes(d.props.TotalGlobalMem))
	}
	d.allocated += bytes
	return nil
}

// release global memory of a freed allocation.
func (d *Device) release(bytes uint64) {
	d.muMem.Lock()
	defer d.muMem.Unlock()
	if bytes > d.allocated {
		panic(errors.Errorf("device: releasing %d bytes, but only %d allocated", bytes, d.allocated))
	}
	d.allocated -= bytes
}
