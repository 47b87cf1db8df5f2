package device

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/gomlx/gemm/pkg/support/xslices"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence returns [start, start+1, ..., start+n-1].
func sequence[T int64 | float32](start T, n int) []T {
	s := make([]T, n)
	for ii := range s {
		s[ii] = start + T(ii)
	}
	return s
}

func TestDim3(t *testing.T) {
	d := Dim3{X: 4, Y: 3, Z: 2}
	assert.Equal(t, 24, d.Size())
	assert.Equal(t, "(4,3,2)", d.String())
	assert.Equal(t, Dim3{X: 1, Y: 2, Z: 1}, d.unflatten(1+2*4+1*12))
	assert.Equal(t, Dim3{X: 5, Y: 7, Z: 1}, Dim(5, 7))
}

func TestLaunch_VectorAdd(t *testing.T) {
	d := must.M1(New("sm=2"))
	s := d.NewStream()
	const n = 1000
	const blockSize = 64
	a := must.M1(Alloc[float32](d, n))
	b := must.M1(Alloc[float32](d, n))
	c := must.M1(Alloc[float32](d, n))
	defer a.Free()
	defer b.Free()
	defer c.Free()
	require.NoError(t, a.CopyFromHost(sequence(float32(0), n)))
	require.NoError(t, b.CopyFromHost(xslices.SliceWithValue(n, float32(10))))

	cfg := LaunchConfig{
		Name:  "vector_add",
		Grid:  Dim((n+blockSize-1)/blockSize, 1),
		Block: Dim(blockSize, 1),
	}
	aG, bG, cG := a.Global(), b.Global(), c.Global()
	err := Launch(s, cfg, nil, func(t *Thread, _ struct{}) {
		idx := t.BlockIdx.X*t.BlockDim.X + t.ThreadIdx.X
		if idx < n {
			cG[idx] = aG[idx] + bG[idx]
		}
	})
	require.NoError(t, err)
	require.NoError(t, s.Synchronize())
	assert.True(t, s.Query())

	got := make([]float32, n)
	require.NoError(t, c.CopyToHost(got))
	assert.Equal(t, sequence(float32(10), n), got)
}

// TestLaunch_SharedReduction sums blocks of values using the scratchpad and barriers.
func TestLaunch_SharedReduction(t *testing.T) {
	d := must.M1(New(""))
	s := d.NewStream()
	const blockSize = 32
	const numBlocks = 5
	in := must.M1(Alloc[int64](d, blockSize*numBlocks))
	out := must.M1(Alloc[int64](d, numBlocks))
	require.NoError(t, in.CopyFromHost(sequence(int64(1), blockSize*numBlocks)))

	inG, outG := in.Global(), out.Global()
	cfg := LaunchConfig{Name: "block_sum", Grid: Dim(numBlocks, 1), Block: Dim(blockSize, 1), SharedMemBytes: blockSize * 8}
	require.NoError(t, Launch(s, cfg,
		func() []int64 { return make([]int64, blockSize) },
		func(t *Thread, scratch []int64) {
			tid := t.ThreadIdx.X
			scratch[tid] = inG[t.BlockIdx.X*blockSize+tid]
			t.SyncThreads()
			for stride := blockSize / 2; stride > 0; stride /= 2 {
				if tid < stride {
					scratch[tid] += scratch[tid+stride]
				}
				t.SyncThreads()
			}
			if tid == 0 {
				outG[t.BlockIdx.X] = scratch[0]
			}
		}))
	require.NoError(t, s.Synchronize())
	got := make([]int64, numBlocks)
	require.NoError(t, out.CopyToHost(got))
	for block := range numBlocks {
		first := int64(block*blockSize + 1)
		last := first + blockSize - 1
		assert.Equal(t, (first+last)*blockSize/2, got[block], "block %d", block)
	}
}

// TestLaunch_ResidentGroups checks that no more than "sm" work-groups run at the same time.
func TestLaunch_ResidentGroups(t *testing.T) {
	const sm = 2
	d := must.M1(New("sm=2"))
	s := d.NewStream()
	var running, peak atomic.Int32
	cfg := LaunchConfig{Name: "resident", Grid: Dim(8, 2), Block: Dim(4, 1)}
	require.NoError(t, Launch(s, cfg, nil, func(t *Thread, _ struct{}) {
		isLeader := t.LinearThreadIdx() == 0
		if isLeader {
			current := running.Add(1)
			for {
				old := peak.Load()
				if current <= old || peak.CompareAndSwap(old, current) {
					break
				}
			}
		}
		time.Sleep(time.Millisecond)
		// Nobody leaves before the leader counted the group as running.
		t.SyncThreads()
		if isLeader {
			running.Add(-1)
		}
	}))
	require.NoError(t, s.Synchronize())
	assert.LessOrEqual(t, int(peak.Load()), sm)
	assert.Greater(t, int(peak.Load()), 0)
}

func TestLaunch_Invalid(t *testing.T) {
	d := must.M1(New("threads=64,smem=1KiB"))
	s := d.NewStream()
	noop := func(t *Thread, _ struct{}) {}
	for _, cfg := range []LaunchConfig{
		{Name: "zero_grid", Grid: Dim(0, 1), Block: Dim(1, 1)},
		{Name: "zero_block", Grid: Dim(1, 1), Block: Dim3{X: 1, Y: 1}},
		{Name: "too_many_threads", Grid: Dim(1, 1), Block: Dim(16, 16)},
		{Name: "too_much_smem", Grid: Dim(1, 1), Block: Dim(8, 8), SharedMemBytes: 2048},
	} {
		err := Launch(s, cfg, nil, noop)
		assert.ErrorIs(t, err, ErrInvalidLaunch, "launch %s", cfg.Name)
	}
	assert.ErrorIs(t, Launch[struct{}](s, LaunchConfig{Name: "nil", Grid: Dim(1, 1), Block: Dim(1, 1)}, nil, nil),
		ErrInvalidLaunch)
	require.NoError(t, s.Synchronize())
}

func TestLaunch_Fault(t *testing.T) {
	d := must.M1(New("sm=2"))
	s := d.NewStream()
	buf := must.M1(Alloc[float32](d, 16))
	bufG := buf.Global()

	// Thread 3 of block 1 reads out of bounds, while the others wait on the barrier.
	cfg := LaunchConfig{Name: "faulty", Grid: Dim(4, 1), Block: Dim(8, 1)}
	require.NoError(t, Launch(s, cfg, nil, func(t *Thread, _ struct{}) {
		idx := t.ThreadIdx.X
		if t.BlockIdx.X == 1 && t.ThreadIdx.X == 3 {
			idx = len(bufG)
		}
		v := bufG[idx]
		t.SyncThreads()
		_ = v
	}))

	// The following kernel is skipped.
	var ran atomic.Bool
	require.NoError(t, Launch(s, LaunchConfig{Name: "after", Grid: Dim(1, 1), Block: Dim(1, 1)}, nil,
		func(t *Thread, _ struct{}) { ran.Store(true) }))

	done := make(chan error)
	go func() { done <- s.Synchronize() }()
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrKernelFault)
		assert.Contains(t, err.Error(), "faulty")
	case <-time.After(5 * time.Second):
		t.Fatal("faulty kernel deadlocked")
	}
	assert.False(t, ran.Load())

	// The error is cleared: new operations run.
	require.NoError(t, Launch(s, LaunchConfig{Name: "after", Grid: Dim(1, 1), Block: Dim(1, 1)}, nil,
		func(t *Thread, _ struct{}) { ran.Store(true) }))
	require.NoError(t, s.Synchronize())
	assert.True(t, ran.Load())
}

func TestStream_Events(t *testing.T) {
	d := must.M1(New(""))
	s := d.NewStream()
	start := s.Record()
	require.NoError(t, Launch(s, LaunchConfig{Name: "sleep", Grid: Dim(2, 1), Block: Dim(2, 1)}, nil,
		func(t *Thread, _ struct{}) { time.Sleep(5 * time.Millisecond) }))
	end := s.Record()
	assert.GreaterOrEqual(t, Elapsed(start, end), 5*time.Millisecond)
	assert.True(t, start.Done())
	assert.True(t, end.Done())
	require.NoError(t, s.Synchronize())
}
