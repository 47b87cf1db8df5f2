package xsync

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// waitOrFail waits for the latch, failing the test if it takes more than a second.
func waitOrFail(t *testing.T, l *Latch, msg string) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		l.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal(msg)
	}
}

func TestLatch(t *testing.T) {
	l := NewLatch()
	assert.False(t, l.Test())
	go l.Trigger()
	waitOrFail(t, l, "latch was never triggered")
	assert.True(t, l.Test())
	l.Trigger() // Second trigger is a no-op.
	l.Wait()
}

func TestLatchWithValue(t *testing.T) {
	l := NewLatchWithValue[int]()
	assert.False(t, l.Test())
	l.Trigger(3)
	l.Trigger(7)
	assert.True(t, l.Test())
	assert.Equal(t, 3, l.Wait())
}

func TestBarrier(t *testing.T) {
	const parties = 8
	const rounds = 50
	b := NewBarrier(parties)

	// Every party increments the counter of the round, and after the barrier checks that all parties did.
	var counters [rounds]atomic.Int32
	var failures atomic.Int32
	var wg sync.WaitGroup
	for range parties {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := range rounds {
				counters[round].Add(1)
				if err := b.Wait(); err != nil {
					failures.Add(1)
					return
				}
				if counters[round].Load() != parties {
					failures.Add(1)
				}
				if err := b.Wait(); err != nil {
					failures.Add(1)
					return
				}
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, failures.Load())
	assert.Panics(t, func() { NewBarrier(0) })
}

func TestBarrierBreak(t *testing.T) {
	b := NewBarrier(3)
	errs := make(chan error, 2)
	for range 2 {
		go func() { errs <- b.Wait() }()
	}
	// Give the waiters a chance to block, but it is also correct if they arrive after Break.
	time.Sleep(10 * time.Millisecond)
	b.Break()
	for range 2 {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrBarrierBroken)
		case <-time.After(time.Second):
			t.Fatal("waiter not released by Break")
		}
	}
	assert.ErrorIs(t, b.Wait(), ErrBarrierBroken)
}

func TestDynamicWaitGroup(t *testing.T) {
	wg := NewDynamicWaitGroup()
	wg.Wait() // Zero counter doesn't block.
	wg.Add(2)
	assert.Equal(t, 2, wg.Count())
	done := NewLatch()
	go func() {
		wg.Wait()
		done.Trigger()
	}()
	wg.Done()
	wg.Add(1) // Added while someone is waiting.
	wg.Done()
	assert.False(t, done.Test())
	wg.Done()
	waitOrFail(t, done, "Wait never returned")
	assert.Panics(t, func() { wg.Done() })
}

func TestSyncMap(t *testing.T) {
	var m SyncMap[string, int]
	_, found := m.Load("a")
	assert.False(t, found)
	v, loaded := m.LoadOrStore("a", 1)
	assert.False(t, loaded)
	assert.Equal(t, 1, v)
	v, loaded = m.LoadOrStore("a", 2)
	assert.True(t, loaded)
	assert.Equal(t, 1, v)
	_, found = m.Load("b")
	assert.False(t, found)
}
