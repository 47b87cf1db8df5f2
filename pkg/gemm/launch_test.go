package gemm_test

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/gomlx/gemm/pkg/device"
	"github.com/gomlx/gemm/pkg/gemm"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunch(t *testing.T) {
	dev := must.M1(device.New("sm=3"))
	rng := rand.New(rand.NewPCG(20, 21))
	const m, k, n = 33, 18, 47
	a, b := smallIntMatrix(rng, m, k), smallIntMatrix(rng, k, n)
	want := gemm.Reference(a, b, m, k, n)

	aBuf := must.M1(device.Alloc[float32](dev, m*k))
	defer aBuf.Free()
	bBuf := must.M1(device.Alloc[float32](dev, k*n))
	defer bBuf.Free()
	require.NoError(t, aBuf.CopyFromHost(a))
	require.NoError(t, bBuf.CopyFromHost(b))

	stream := dev.NewStream()
	for _, alg := range gemm.AlgorithmValues() {
		t.Run(alg.String(), func(t *testing.T) {
			cBuf := must.M1(device.Alloc[float32](dev, m*n))
			defer cBuf.Free()
			start := stream.Record()
			require.NoError(t, gemm.Launch(stream, aBuf, bBuf, cBuf, m, k, n, alg, gemm.DefaultConfig()))
			end := stream.Record()
			require.NoError(t, stream.Synchronize())
			assert.True(t, end.Done())
			assert.GreaterOrEqual(t, device.Elapsed(start, end), time.Duration(0))

			got := make([]float32, m*n)
			require.NoError(t, cBuf.CopyToHost(got))
			require.Equal(t, want, got)
		})
	}
}

func TestLaunch_Validation(t *testing.T) {
	dev := must.M1(device.New(""))
	const m, k, n = 4, 5, 6
	aBuf := must.M1(device.Alloc[float64](dev, m*k))
	defer aBuf.Free()
	bBuf := must.M1(device.Alloc[float64](dev, k*n))
	defer bBuf.Free()
	cBuf := must.M1(device.Alloc[float64](dev, m*n))
	defer cBuf.Free()
	stream := dev.NewStream()
	cfg := gemm.DefaultConfig()

	// Wrong dimensions for the buffers.
	err := gemm.Launch(stream, aBuf, bBuf, cBuf, m, k+1, n, gemm.AlgorithmShared, cfg)
	require.ErrorIs(t, err, gemm.ErrDimensionMismatch)
	err = gemm.Launch(stream, aBuf, bBuf, cBuf, m, k, 0, gemm.AlgorithmShared, cfg)
	require.ErrorIs(t, err, gemm.ErrDimensionMismatch)
	err = gemm.Launch(stream, bBuf, aBuf, cBuf, m, k, n, gemm.AlgorithmNaive, cfg)
	require.ErrorIs(t, err, gemm.ErrDimensionMismatch)

	// Bad algorithm or configuration.
	err = gemm.Launch(stream, aBuf, bBuf, cBuf, m, k, n, gemm.Algorithm(3), cfg)
	require.ErrorIs(t, err, gemm.ErrUnsupportedAlgorithm)
	err = gemm.Launch(stream, aBuf, bBuf, cBuf, m, k, n, gemm.AlgorithmSharedRegister, gemm.Config{TileSize: 16})
	require.ErrorIs(t, err, gemm.ErrInvalidConfig)

	// Scratchpad doesn't fit the device: 2*64*64*8 bytes = 64KiB.
	err = gemm.Launch(stream, aBuf, bBuf, cBuf, m, k, n, gemm.AlgorithmSharedRegister,
		gemm.Config{TileSize: 64, RegisterBlockRows: 8, RegisterBlockCols: 8, NaiveBlockSize: 16})
	require.ErrorIs(t, err, device.ErrInvalidLaunch)

	// Nil and freed buffers.
	err = gemm.Launch(stream, aBuf, nil, cBuf, m, k, n, gemm.AlgorithmNaive, cfg)
	require.ErrorIs(t, err, device.ErrInvalidBuffer)
	freed := must.M1(device.Alloc[float64](dev, m*n))
	freed.Free()
	err = gemm.Launch(stream, aBuf, bBuf, freed, m, k, n, gemm.AlgorithmNaive, cfg)
	require.ErrorIs(t, err, device.ErrInvalidBuffer)

	// Nothing was enqueued.
	require.NoError(t, stream.Synchronize())
}
