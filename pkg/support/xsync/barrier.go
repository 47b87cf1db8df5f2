package xsync

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrBarrierBroken is returned by Barrier.Wait when the barrier was broken, either before or while waiting.
var ErrBarrierBroken = errors.New("barrier broken")

// Barrier is a reusable (cyclic) barrier for a fixed number of parties.
//
// Each call to Wait blocks until all parties have called Wait for the current generation, at which point
// they are all released and the barrier is ready for the next generation.
//
// A Barrier can be broken (see Break), in which case every current and future Wait returns ErrBarrierBroken.
// This is used to unwind a group of goroutines when one of them fails, instead of leaving the others
// waiting forever.
type Barrier struct {
	mu         sync.Mutex
	cond       sync.Cond
	parties    int
	arrived    int
	generation uint64
	broken     bool
}

// NewBarrier creates a Barrier for the given number of parties. It panics if parties < 1.
func NewBarrier(parties int) *Barrier {
	if parties < 1 {
		panic(errors.Errorf("NewBarrier(%d): number of parties must be >= 1", parties))
	}
	b := &Barrier{parties: parties}
	b.cond = sync.Cond{L: &b.mu}
	return b
}

// Wait until all parties of the current generation arrive.
func (b *Barrier) Wait() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broken {
		return ErrBarrierBroken
	}
	generation := b.generation
	b.arrived++
	if b.arrived == b.parties {
		b.arrived = 0
		b.generation++
		b.cond.Broadcast()
		return nil
	}
	for generation == b.generation && !b.broken {
		b.cond.Wait()
	}
	if generation == b.generation {
		// Woken up by Break before the generation tripped.
		return ErrBarrierBroken
	}
	return nil
}

// Break the barrier: all parties currently waiting are released with ErrBarrierBroken, and so will be
// any future call to Wait.
func (b *Barrier) Break() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broken = true
	b.cond.Broadcast()
}
