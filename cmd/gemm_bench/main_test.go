package main

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/gemm/pkg/device"
	"github.com/gomlx/gemm/pkg/gemm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// The flag takes precedence: an invalid environment variable is not even parsed.
	t.Setenv(gemm.EnvConfig, "tile=banana")
	cfg, err := loadConfig("tile=8,reg=2x2")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.TileSize)

	_, err = loadConfig("")
	require.ErrorIs(t, err, gemm.ErrInvalidConfig)

	_, err = loadConfig("tile=0")
	require.ErrorIs(t, err, gemm.ErrInvalidConfig)

	t.Setenv(gemm.EnvConfig, "tile=32")
	cfg, err = loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.TileSize)
}

func TestLoadDevice(t *testing.T) {
	t.Setenv(device.EnvDeviceConfig, "sm=lots")
	dev, err := loadDevice("sm=2,name=bench")
	require.NoError(t, err)
	assert.Equal(t, 2, dev.Properties().MultiProcessorCount)
	assert.Equal(t, "bench", dev.Properties().Name)

	_, err = loadDevice("color=blue")
	require.ErrorIs(t, err, device.ErrInvalidConfig)
}

func TestParseSizes(t *testing.T) {
	cases, err := parseSizes("16, 3x5x7,")
	require.NoError(t, err)
	assert.Equal(t, []benchmarkCase{{16, 16, 16}, {3, 5, 7}}, cases)
	assert.Equal(t, float64(2*3*5*7), cases[1].flops())

	for _, sizes := range []string{"", "3x5", "0", "4x-1x2", "ax2x2"} {
		_, err = parseSizes(sizes)
		assert.Error(t, err, "sizes %q", sizes)
	}
}

func TestParseAlgorithms(t *testing.T) {
	algs, err := parseAlgorithms("naive,2")
	require.NoError(t, err)
	assert.Equal(t, []gemm.Algorithm{gemm.AlgorithmNaive, gemm.AlgorithmSharedRegister}, algs)

	_, err = parseAlgorithms(",")
	require.Error(t, err)
	_, err = parseAlgorithms("fastest")
	require.ErrorIs(t, err, gemm.ErrUnsupportedAlgorithm)
}

func TestNewTable(t *testing.T) {
	table := newTable([]string{"Size", "Algorithm"}, lipgloss.Left)
	table.Row(false, "[2, 2] x [2, 2]", "naive")
	table.Row(true, "[4, 4] x [4, 4]", "shared")
	assert.Equal(t, map[int]bool{1: true}, table.failed)
	rendered := table.Table.Render()
	for _, text := range []string{"Size", "Algorithm", "naive", "shared"} {
		assert.Contains(t, rendered, text)
	}
	assert.Contains(t, sectionTitle("Results"), "Results")
}
