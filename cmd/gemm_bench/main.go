// gemm_bench measures the throughput of the matrix multiplication kernels on the emulated device,
// and prints a table with the best time and GFLOP/s of each size and algorithm.
//
// Example:
//
//	$ go run ./cmd/gemm_bench -sizes=128,256,100x300x200 -algorithms=shared,shared_register -config=tile=32,reg=8x4 -verify
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gemm/pkg/core/dtypes"
	"github.com/gomlx/gemm/pkg/device"
	"github.com/gomlx/gemm/pkg/gemm"
	"github.com/gomlx/gemm/pkg/support/xslices"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagSizes = flag.String("sizes", "64,128,256",
		"Comma-separated list of problem sizes. Each is either N, for square matrices, or MxKxN.")
	flagAlgorithms = flag.String("algorithms", strings.Join(gemm.AlgorithmStrings(), ","),
		"Comma-separated list of algorithms to benchmark.")
	flagConfig = flag.String("config", "",
		"Kernel configuration, e.g. \"tile=32,reg=8x4\". If empty, $"+gemm.EnvConfig+" is used.")
	flagDevice = flag.String("device", "",
		"Device configuration, e.g. \"sm=8,smem=64KiB,mem=4GiB\". If empty, $"+device.EnvDeviceConfig+" is used.")
	flagDType   = flag.String("dtype", "float32", "Element type: float32, float64 or int32.")
	flagRepeats = flag.Int("repeats", 3, "Number of runs of each case, the best time is reported.")
	flagVerify  = flag.Bool("verify", false, "Verify the results against the host reference implementation.")
)

// benchmarkCase is one problem size: A is [M, K] and B is [K, N].
type benchmarkCase struct {
	m, k, n int
}

func (c benchmarkCase) String() string {
	return fmt.Sprintf("[%d, %d] x [%d, %d]", c.m, c.k, c.k, c.n)
}

// flops is the number of floating point operations of the multiplication.
func (c benchmarkCase) flops() float64 {
	return 2 * float64(c.m) * float64(c.k) * float64(c.n)
}

// benchmarkResult of one case with one algorithm.
type benchmarkResult struct {
	c        benchmarkCase
	alg      gemm.Algorithm
	best     time.Duration
	verified bool
	err      error
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	cases, err := parseSizes(*flagSizes)
	if err != nil {
		klog.Exitf("Invalid -sizes: %+v", err)
	}
	algs, err := parseAlgorithms(*flagAlgorithms)
	if err != nil {
		klog.Exitf("Invalid -algorithms: %+v", err)
	}
	if *flagRepeats < 1 {
		klog.Exitf("-repeats must be >= 1, got %d", *flagRepeats)
	}
	cfg, err := loadConfig(*flagConfig)
	if err != nil {
		klog.Exitf("Invalid kernel configuration: %+v", err)
	}
	dev, err := loadDevice(*flagDevice)
	if err != nil {
		klog.Exitf("Invalid device configuration: %+v", err)
	}
	engine := must.M1(gemm.New(dev, cfg))

	printSummary(engine)
	var results []benchmarkResult
	switch *flagDType {
	case "float32":
		results = runAll[float32](engine, cases, algs)
	case "float64":
		results = runAll[float64](engine, cases, algs)
	case "int32":
		results = runAll[int32](engine, cases, algs)
	default:
		klog.Exitf("Unsupported -dtype=%q", *flagDType)
	}
	if printResults(results) {
		os.Exit(1)
	}
}

// loadConfig parses the -config flag, or $GEMM_CONFIG if the flag is empty.
func loadConfig(config string) (gemm.Config, error) {
	if config == "" {
		return gemm.ConfigFromEnv()
	}
	cfg, err := gemm.ParseConfig(config)
	if err != nil {
		return cfg, errors.WithMessage(err, "-config")
	}
	return cfg, nil
}

// loadDevice creates the device from the -device flag, or uses the default device (configured
// by $GEMM_DEVICE) if the flag is empty.
func loadDevice(config string) (*device.Device, error) {
	if config == "" {
		return device.Default()
	}
	dev, err := device.New(config)
	if err != nil {
		return nil, errors.WithMessage(err, "-device")
	}
	return dev, nil
}

// parseSizes parses the -sizes flag.
func parseSizes(sizes string) ([]benchmarkCase, error) {
	var cases []benchmarkCase
	for _, part := range strings.Split(sizes, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dims := strings.Split(part, "x")
		if len(dims) != 1 && len(dims) != 3 {
			return nil, errors.Errorf("size %q must be N or MxKxN", part)
		}
		values := make([]int, len(dims))
		for ii, dim := range dims {
			v, err := strconv.Atoi(dim)
			if err != nil || v < 1 {
				return nil, errors.Errorf("size %q: dimension %q must be a positive integer", part, dim)
			}
			values[ii] = v
		}
		if len(values) == 1 {
			cases = append(cases, benchmarkCase{values[0], values[0], values[0]})
		} else {
			cases = append(cases, benchmarkCase{values[0], values[1], values[2]})
		}
	}
	if len(cases) == 0 {
		return nil, errors.New("no sizes given")
	}
	return cases, nil
}

// parseAlgorithms parses the -algorithms flag.
func parseAlgorithms(names string) ([]gemm.Algorithm, error) {
	var algs []gemm.Algorithm
	for _, name := range strings.Split(names, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		alg, err := gemm.ParseAlgorithm(name)
		if err != nil {
			return nil, err
		}
		algs = append(algs, alg)
	}
	if len(algs) == 0 {
		return nil, errors.New("no algorithms given")
	}
	return algs, nil
}

// runAll runs every case with every algorithm, displaying the progress.
func runAll[T dtypes.Number](engine *gemm.Engine, cases []benchmarkCase, algs []gemm.Algorithm) []benchmarkResult {
	progress := newProgress(len(cases) * len(algs) * *flagRepeats)
	defer progress.Done()
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	results := make([]benchmarkResult, 0, len(cases)*len(algs))
	for _, c := range cases {
		a := randomMatrix[T](rng, c.m*c.k)
		b := randomMatrix[T](rng, c.k*c.n)
		var want []T
		if *flagVerify {
			want = gemm.Reference(a, b, c.m, c.k, c.n)
		}
		for _, alg := range algs {
			result := runCase(engine, c, alg, a, b, want, func() {
				progress.Add(fmt.Sprintf("%s %s", c, alg))
			})
			if result.err != nil {
				klog.Errorf("%s with %s failed: %+v", c, alg, result.err)
			}
			results = append(results, result)
		}
	}
	return results
}

// randomMatrix returns a flat matrix with values in [-1, 1], or small integers for integer types.
func randomMatrix[T dtypes.Number](rng *rand.Rand, size int) []T {
	flat := make([]T, size)
	isFloat := dtypes.FromGenericsType[T]().IsFloat()
	for ii := range flat {
		if isFloat {
			flat[ii] = T(rng.Float64()*2 - 1)
		} else {
			flat[ii] = T(rng.IntN(5))
		}
	}
	return flat
}

// runCase runs c with alg *flagRepeats times on a new stream, timing each run with device events.
func runCase[T dtypes.Number](engine *gemm.Engine, c benchmarkCase, alg gemm.Algorithm, a, b, want []T, onRun func()) (result benchmarkResult) {
	result = benchmarkResult{c: c, alg: alg}
	dev := engine.Device()
	aBuf, err := device.Alloc[T](dev, len(a))
	if err != nil {
		result.err = err
		return
	}
	defer aBuf.Free()
	bBuf, err := device.Alloc[T](dev, len(b))
	if err != nil {
		result.err = err
		return
	}
	defer bBuf.Free()
	cBuf, err := device.Alloc[T](dev, c.m*c.n)
	if err != nil {
		result.err = err
		return
	}
	defer cBuf.Free()
	if err = aBuf.CopyFromHost(a); err != nil {
		result.err = err
		return
	}
	if err = bBuf.CopyFromHost(b); err != nil {
		result.err = err
		return
	}

	stream := dev.NewStream()
	for repeat := range *flagRepeats {
		start := stream.Record()
		if err = gemm.Launch(stream, aBuf, bBuf, cBuf, c.m, c.k, c.n, alg, engine.Config()); err != nil {
			result.err = err
			return
		}
		end := stream.Record()
		if err = stream.Synchronize(); err != nil {
			result.err = err
			return
		}
		elapsed := device.Elapsed(start, end)
		klog.V(2).Infof("%s with %s, run #%d: %s", c, alg, repeat, elapsed)
		if repeat == 0 || elapsed < result.best {
			result.best = elapsed
		}
		onRun()
	}

	if want != nil {
		got := make([]T, c.m*c.n)
		if err = cBuf.CopyToHost(got); err != nil {
			result.err = err
			return
		}
		if err = xslices.SlicesInRelData(got, want, 1e-4); err != nil {
			result.err = errors.WithMessage(err, "verification failed")
			return
		}
		result.verified = true
	}
	return
}

// printSummary prints the device and kernel configuration.
func printSummary(engine *gemm.Engine) {
	props := engine.Device().Properties()
	fmt.Println(sectionTitle("Configuration"))
	table := newTable([]string{"Property", "Value"}, lipgloss.Right, lipgloss.Left)
	table.Row(false, "device", engine.Device().Description())
	table.Row(false, "multiprocessors", humanize.Comma(int64(props.MultiProcessorCount)))
	table.Row(false, "scratchpad per block", humanize.IBytes(uint64(props.SharedMemPerBlock)))
	table.Row(false, "global memory", humanize.IBytes(props.TotalGlobalMem))
	table.Row(false, "max threads per block", humanize.Comma(int64(props.MaxThreadsPerBlock)))
	table.Row(false, "kernel config", engine.Config().String())
	table.Row(false, "dtype", *flagDType)
	fmt.Println(table.Table.Render())
}

// printResults prints the results table. It returns whether any case failed.
func printResults(results []benchmarkResult) (failed bool) {
	fmt.Println(sectionTitle("Results"))
	table := newTable([]string{"Size", "Algorithm", "Best Time", "Throughput", "Verified"},
		lipgloss.Left, lipgloss.Left, lipgloss.Right)
	for _, r := range results {
		if r.err != nil {
			failed = true
			table.Row(true, r.c.String(), r.alg.String(), "-", "-", "error")
			continue
		}
		verified := "-"
		if r.verified {
			verified = "ok"
		}
		throughput := "-"
		if r.best > 0 {
			throughput = humanize.SIWithDigits(r.c.flops()/r.best.Seconds(), 2, "FLOP/s")
		}
		table.Row(false, r.c.String(), r.alg.String(), r.best.String(), throughput, verified)
	}
	fmt.Println(table.Table.Render())
	return failed
}
