// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package device

import (
	"sync"
	"time"

	"github.com/gomlx/gemm/pkg/support/xsync"
	"k8s.io/klog/v2"
)

// Stream is an in-order queue of device operations: each operation starts only after the previous
// one finished.
//
// After an operation fails, the following operations are skipped until Synchronize reports the error.
type Stream struct {
	device *Device

	mu       sync.Mutex
	tail     *xsync.Latch // Triggered when the last enqueued operation finishes.
	inFlight *xsync.DynamicWaitGroup
	err      error // First error since the last Synchronize.
}

// NewStream creates a new stream on the device.
func (d *Device) NewStream() *Stream {
	return &Stream{
		device:   d,
		inFlight: xsync.NewDynamicWaitGroup(),
	}
}

// Device returns the device of the stream.
func (s *Stream) Device() *Device {
	return s.device
}

// enqueue an operation on the stream.
//
// If alwaysRun is false the operation is skipped when a previous operation failed.
func (s *Stream) enqueue(name string, alwaysRun bool, op func() error) {
	s.mu.Lock()
	prev := s.tail
	done := xsync.NewLatch()
	s.tail = done
	s.inFlight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inFlight.Done()
		defer done.Trigger()
		if prev != nil {
			prev.Wait()
		}
		if !alwaysRun && s.failed() {
			klog.V(1).Infof("device: skipping %q, stream has a pending error", name)
			return
		}
		if err := op(); err != nil {
			s.mu.Lock()
			if s.err == nil {
				s.err = err
			}
			s.mu.Unlock()
		}
	}()
}

func (s *Stream) failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err != nil
}

// Synchronize blocks until all operations enqueued on the stream are finished.
//
// It returns the first error (e.g. ErrKernelFault) of the operations since the last call to
// Synchronize, and clears it.
func (s *Stream) Synchronize() error {
	s.inFlight.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.err
	s.err = nil
	return err
}

// Query returns whether all operations enqueued on the stream are finished, without blocking.
func (s *Stream) Query() bool {
	return s.inFlight.Count() == 0
}

// Event marks a point in a stream, triggered when all operations enqueued before it are finished.
type Event struct {
	latch *xsync.LatchWithValue[time.Time]
}

// Record enqueues an Event on the stream. Events are triggered even if a previous operation failed.
func (s *Stream) Record() *Event {
	e := &Event{latch: xsync.NewLatchWithValue[time.Time]()}
	s.enqueue("event", true, func() error {
		e.latch.Trigger(time.Now())
		return nil
	})
	return e
}

// Wait blocks until the event is triggered and returns the time it happened.
func (e *Event) Wait() time.Time {
	return e.latch.Wait()
}

// Done returns whether the event has been triggered, without blocking.
func (e *Event) Done() bool {
	return e.latch.Test()
}

// Elapsed waits for both events and returns the time elapsed between them.
func Elapsed(start, end *Event) time.Duration {
	return end.Wait().Sub(start.Wait())
}
