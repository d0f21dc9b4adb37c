// Command butterflybench times the four butterfly operations under every CPU
// partition strategy and optionally on the WebGPU backend. The fastest CPU
// strategy per operation and size can be exported as wisdom.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/cwbudde/butterfly"
	"github.com/cwbudde/butterfly/gpu"
	"github.com/cwbudde/butterfly/gpu/webgpu"
	"github.com/cwbudde/butterfly/internal/bftypes"
	"github.com/cwbudde/butterfly/internal/cpu"
)

type benchResult struct {
	op       butterfly.Op
	size     int
	engine   string
	strategy butterfly.Strategy
	nsPerOp  float64
}

// operands holds one set of float32 buffers for a size.
type operands struct {
	twiddle, cos, sin     []float32
	input, output, grad   []float32
	dst, dTwiddle, dInput []float32
	dCos, dSin, recovered []float32
}

func main() {
	var (
		sizeList   = flag.String("sizes", "64,256,1024,4096", "comma-separated transform lengths")
		opList     = flag.String("ops", "all", "comma-separated operations or all")
		iters      = flag.Int("iters", 50, "benchmark iterations")
		warmup     = flag.Int("warmup", 5, "warmup iterations")
		batch      = flag.Int("batch", 16, "batch size")
		nstack     = flag.Int("nstack", 1, "independent transforms per sample")
		workers    = flag.Int("workers", 0, "CPU workers, 0 for the default")
		useGPU     = flag.Bool("webgpu", false, "also benchmark the WebGPU backend")
		wisdomFile = flag.String("wisdom", "", "export the fastest CPU strategies to file")
		seed       = flag.Uint64("seed", 1, "rng seed")
	)
	flag.Parse()

	sizes := parseSizes(*sizeList)
	if len(sizes) == 0 {
		fmt.Println("no sizes specified")
		return
	}

	ops, err := parseOps(*opList)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	if *useGPU {
		webgpu.Register()

		if err := gpu.Install(gpu.Options{}); err != nil {
			fmt.Printf("webgpu unavailable: %v\n", err)

			*useGPU = false
		} else {
			defer gpu.Uninstall()
		}
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))

	features := cpu.DetectFeatures()
	if *workers <= 0 {
		*workers = features.DefaultWorkers()
	}

	fmt.Printf("cpu=%q workers=%d iters=%d warmup=%d batch=%d nstack=%d\n",
		features.BrandName, *workers, *iters, *warmup, *batch, *nstack)
	fmt.Printf("%8s  %26s  %16s  %12s\n", "size", "op", "engine", "ns/op")

	var best []benchResult

	for _, n := range sizes {
		x := newOperands(rng, *batch, *nstack, n)

		for _, op := range ops {
			if n > butterfly.OpCeiling(op) {
				continue
			}

			results := benchmarkOp(op, x, n, *nstack, *workers, *iters, *warmup, *useGPU)
			if len(results) == 0 {
				continue
			}

			sort.Slice(results, func(i, j int) bool {
				return results[i].nsPerOp < results[j].nsPerOp
			})

			for _, res := range results {
				fmt.Printf("%8d  %26s  %16s  %12.1f\n", n, op, res.engine, res.nsPerOp)
			}

			for _, res := range results {
				if res.strategy != butterfly.StrategyAuto {
					best = append(best, res)
					break
				}
			}
		}
	}

	if *wisdomFile == "" {
		return
	}

	for _, res := range best {
		butterfly.RecordStrategy[float32](res.op, res.size, res.strategy)
	}

	if err := butterfly.ExportWisdom(*wisdomFile); err != nil {
		fmt.Printf("error exporting wisdom: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nWisdom exported to: %s\n", *wisdomFile)
}

func benchmarkOp(op butterfly.Op, x *operands, n, nstack, workers, iters, warmup int, useGPU bool) []benchResult {
	configs := []butterfly.Options{
		{Workers: workers, Strategy: butterfly.StrategySequential},
		{Workers: workers, Strategy: butterfly.StrategySamples},
		{Workers: workers, Strategy: butterfly.StrategyPairs},
	}

	if useGPU {
		configs = append(configs, butterfly.Options{Target: butterfly.TargetAccelerator})
	}

	results := make([]benchResult, 0, len(configs))

	for _, opts := range configs {
		plan, err := butterfly.NewPlan[float32](n, nstack, butterfly.IncreasingStride, opts)
		if err != nil {
			continue
		}

		run := func() error { return runOp(plan, op, x) }

		elapsed, err := timeRuns(run, iters, warmup)
		if err != nil {
			fmt.Printf("%8d  %26s  %16s  error: %v\n", n, op, plan.Engine(), err)
			continue
		}

		res := benchResult{
			op:      op,
			size:    n,
			engine:  plan.Engine(),
			nsPerOp: float64(elapsed.Nanoseconds()) / float64(iters),
		}

		if opts.Target == butterfly.TargetCPU {
			res.strategy = opts.Strategy
			res.engine = opts.Strategy.String()
		}

		results = append(results, res)
	}

	return results
}

func timeRuns(run func() error, iters, warmup int) (time.Duration, error) {
	for range warmup {
		if err := run(); err != nil {
			return 0, err
		}
	}

	runtime.GC()

	start := time.Now()

	for range iters {
		if err := run(); err != nil {
			return 0, err
		}
	}

	return time.Since(start), nil
}

func runOp(plan *butterfly.Plan[float32], op butterfly.Op, x *operands) error {
	switch op {
	case butterfly.OpGeneralForward:
		return plan.GeneralForward(x.dst, x.twiddle, x.input)
	case butterfly.OpGeneralForwardBackward:
		return plan.GeneralForwardBackward(x.dTwiddle, x.dInput, x.twiddle, x.input, x.grad)
	case butterfly.OpOrthogonalForward:
		return plan.OrthogonalForward(x.dst, x.cos, x.sin, x.input)
	default:
		return plan.OrthogonalBackward(x.dCos, x.dSin, x.dInput, x.recovered, x.cos, x.sin, x.output, x.grad)
	}
}

func newOperands(rng *rand.Rand, batch, nstack, n int) *operands {
	logN := 0
	for 1<<logN < n {
		logN++
	}

	data := batch * nstack * n
	angles := nstack * logN * n / 2

	x := &operands{
		twiddle:   make([]float32, nstack*logN*2*n),
		cos:       make([]float32, angles),
		sin:       make([]float32, angles),
		input:     make([]float32, data),
		output:    make([]float32, data),
		grad:      make([]float32, data),
		dst:       make([]float32, data),
		dTwiddle:  make([]float32, nstack*logN*2*n),
		dInput:    make([]float32, data),
		dCos:      make([]float32, angles),
		dSin:      make([]float32, angles),
		recovered: make([]float32, data),
	}

	for i := range x.twiddle {
		x.twiddle[i] = float32(rng.NormFloat64() * math.Sqrt1_2)
	}

	for i := range x.cos {
		theta := rng.Float64() * 2 * math.Pi
		x.cos[i] = float32(math.Cos(theta))
		x.sin[i] = float32(math.Sin(theta))
	}

	for i := range x.input {
		x.input[i] = float32(rng.NormFloat64())
		x.output[i] = float32(rng.NormFloat64())
		x.grad[i] = float32(rng.NormFloat64())
	}

	return x
}

func parseOps(list string) ([]butterfly.Op, error) {
	if list == "all" {
		return bftypes.Ops(), nil
	}

	var out []butterfly.Op

	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		op, ok := bftypes.ParseOp(part)
		if !ok {
			return nil, fmt.Errorf("unknown operation %q", part)
		}

		out = append(out, op)
	}

	return out, nil
}

func parseSizes(list string) []int {
	parts := strings.Split(list, ",")

	out := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		var n int

		_, err := fmt.Sscanf(part, "%d", &n)
		if err != nil || n <= 0 {
			continue
		}

		out = append(out, n)
	}

	return out
}
