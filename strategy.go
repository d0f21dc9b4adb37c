package butterfly

import (
	"sync/atomic"

	"github.com/cwbudde/butterfly/internal/bftypes"
	"github.com/cwbudde/butterfly/internal/cpu"
	"github.com/cwbudde/butterfly/internal/planner"
)

const (
	// minParallelWork is the number of element updates (samples * n * logN)
	// below which goroutine start-up outweighs the work.
	minParallelWork = 1 << 15

	// minPairsPerWorker is the smallest per-stage share for the pairs partition.
	minPairsPerWorker = 512
)

var globalStrategy atomic.Uint32

// SetStrategy sets the process-wide CPU partition strategy. StrategyAuto
// restores automatic selection. A non-auto Options.Strategy takes precedence.
func SetStrategy(s Strategy) {
	globalStrategy.Store(uint32(s))
}

// CurrentStrategy returns the process-wide CPU partition strategy.
func CurrentStrategy() Strategy {
	return Strategy(globalStrategy.Load())
}

// resolveStrategy picks the partition for one call: an explicit strategy
// first, then the global setting, then recorded wisdom, then the heuristic.
func resolveStrategy[T Float](op Op, d Dims, workers int, explicit Strategy) Strategy {
	if explicit != StrategyAuto {
		return explicit
	}

	if s := CurrentStrategy(); s != StrategyAuto {
		return s
	}

	features := cpu.DetectFeatures()

	s, ok := planner.DefaultWisdom.LookupStrategy(op, d.N, bftypes.PrecisionOf[T](), features.Mask())
	if ok && s != StrategyAuto {
		return s
	}

	return heuristicStrategy[T](op, d, workers, features)
}

func heuristicStrategy[T Float](op Op, d Dims, workers int, features cpu.Features) Strategy {
	samples := d.Samples()
	pairsFit := d.N/2 >= workers*minPairsPerWorker

	switch {
	case workers <= 1 || samples*d.N*d.LogN() < minParallelWork:
		return StrategySequential
	case op == OpGeneralForwardBackward && pairsFit && !features.FitsL2(workers*savedBytes[T](d)):
		// One scratch per worker would spill out of L2; share a single one.
		return StrategyPairs
	case samples >= workers:
		return StrategySamples
	case pairsFit:
		return StrategyPairs
	case samples > 1:
		return StrategySamples
	default:
		return StrategySequential
	}
}

// savedBytes is the per-sample scratch of the general fused pass.
func savedBytes[T Float](d Dims) int {
	var zero T

	size := 4
	if _, ok := any(zero).(float64); ok {
		size = 8
	}

	return d.LogN() * d.N * size
}
