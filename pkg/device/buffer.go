// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gemm/pkg/core/dtypes"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Buffer is a region of device global memory holding length elements of type T.
//
// Kernels access its contents through Global; the host through CopyFromHost and CopyToHost.
// A Buffer is owned by whoever allocated it until Free is called. It is not safe to free a buffer
// while kernels using it are still enqueued.
type Buffer[T dtypes.Number] struct {
	device *Device
	id     uuid.UUID
	dtype  dtypes.DType
	bytes  uint64

	mu   sync.Mutex
	data *[]T // nil once freed.
}

type bufferPoolKey struct {
	dtype  dtypes.DType
	length int
}

// getBufferPool for given dtype/length.
func getBufferPool[T dtypes.Number](d *Device, dtype dtypes.DType, length int) *sync.Pool {
	key := bufferPoolKey{dtype: dtype, length: length}
	pool, found := d.bufferPools.Load(key)
	if !found {
		pool, _ = d.bufferPools.LoadOrStore(key, &sync.Pool{
			New: func() any {
				data := make([]T, length)
				return &data
			},
		})
	}
	return pool
}

// Alloc allocates a buffer of length elements of type T on the device.
//
// It returns ErrOutOfMemory if the device global memory can't hold it. The contents of a
// newly allocated buffer are undefined: storage is recycled from freed buffers.
func Alloc[T dtypes.Number](d *Device, length int) (*Buffer[T], error) {
	dtype := dtypes.FromGenericsType[T]()
	if length <= 0 {
		return nil, errors.Wrapf(ErrInvalidBuffer, "cannot allocate %d elements of %s", length, dtype)
	}
	bytes := uint64(dtype.SizeForDimensions(length))
	if err := d.reserve(bytes); err != nil {
		return nil, errors.WithMessagef(err, "allocating %d elements of %s", length, dtype)
	}
	pool := getBufferPool[T](d, dtype, length)
	// The pool is keyed by dtype, but different Go types may share a dtype (e.g. named types).
	data, ok := pool.Get().(*[]T)
	if !ok {
		fresh := make([]T, length)
		data = &fresh
	}
	b := &Buffer[T]{
		device: d,
		id:     uuid.New(),
		dtype:  dtype,
		bytes:  bytes,
		data:   data,
	}
	klog.V(2).Infof("device: allocated %s", b)
	return b, nil
}

// String implements fmt.Stringer.
func (b *Buffer[T]) String() string {
	return fmt.Sprintf("buffer %s (%d x %s, %s)", b.id, b.Len(), b.dtype, humanize.IBytes(b.bytes))
}

// ID returns the unique identifier of the buffer, used in logs.
func (b *Buffer[T]) ID() uuid.UUID {
	return b.id
}

// Len returns the number of elements of the buffer, or 0 if it has been freed.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return 0
	}
	return len(*b.data)
}

// IsValid returns whether the buffer hasn't been freed.
func (b *Buffer[T]) IsValid() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data != nil
}

// Global returns the device view of the buffer, to be used by kernels only.
//
// It returns nil if the buffer has been freed: any kernel access will then fault.
func (b *Buffer[T]) Global() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil
	}
	return *b.data
}

// CopyFromHost copies the host slice src into the buffer. The lengths must match.
//
// The copy is synchronous with respect to the host; it's up to the caller to make sure no
// enqueued kernel is using the buffer.
func (b *Buffer[T]) CopyFromHost(src []T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return errors.Wrapf(ErrInvalidBuffer, "copy to freed buffer %s", b.id)
	}
	if len(src) != len(*b.data) {
		return errors.Wrapf(ErrInvalidBuffer, "copy of %d host elements to buffer %s of %d elements",
			len(src), b.id, len(*b.data))
	}
	copy(*b.data, src)
	klog.V(2).Infof("device: copied %s host->device into buffer %s", humanize.IBytes(b.bytes), b.id)
	return nil
}

// CopyToHost copies the contents of the buffer into the host slice dst. The lengths must match.
func (b *Buffer[T]) CopyToHost(dst []T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return errors.Wrapf(ErrInvalidBuffer, "copy from freed buffer %s", b.id)
	}
	if len(dst) != len(*b.data) {
		return errors.Wrapf(ErrInvalidBuffer, "copy of buffer %s of %d elements to %d host elements",
			b.id, len(*b.data), len(dst))
	}
	copy(dst, *b.data)
	klog.V(2).Infof("device: copied %s device->host from buffer %s", humanize.IBytes(b.bytes), b.id)
	return nil
}

// Free releases the buffer memory back to the device. Freeing an already freed buffer is a no-op.
func (b *Buffer[T]) Free() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return
	}
	pool := getBufferPool[T](b.device, b.dtype, len(*b.data))
	pool.Put(b.data)
	b.data = nil
	b.device.release(b.bytes)
	klog.V(2).Infof("device: freed buffer %s", b.id)
}
