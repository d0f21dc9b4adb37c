package bftypes

// Strategy controls how the CPU engines partition work across goroutines.
type Strategy uint32

const (
	StrategyAuto       Strategy = iota
	StrategySequential          // single goroutine, sample after sample
	StrategySamples             // (batch, stack) samples split across workers
	StrategyPairs               // pairs of each stage split across workers, barrier per stage
)

// String returns a human-readable name for the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategySequential:
		return "sequential"
	case StrategySamples:
		return "samples"
	case StrategyPairs:
		return "pairs"
	default:
		return "unknown"
	}
}

// ParseStrategy is the inverse of Strategy.String.
func ParseStrategy(name string) (Strategy, bool) {
	switch name {
	case "auto":
		return StrategyAuto, true
	case "sequential":
		return StrategySequential, true
	case "samples":
		return StrategySamples, true
	case "pairs":
		return StrategyPairs, true
	default:
		return StrategyAuto, false
	}
}

// SIMDLevel describes the widest vector extension reported by the CPU.
// It is part of the wisdom key so that decisions recorded on one machine
// are not applied to a different one.
type SIMDLevel uint8

const (
	SIMDNone   SIMDLevel = iota // Pure Go implementation
	SIMDSSE2                    // Requires SSE2 (x86_64 baseline)
	SIMDSSE3                    // Requires SSE3
	SIMDAVX2                    // Requires AVX2
	SIMDAVX512                  // Requires AVX-512
	SIMDNEON                    // Requires ARM NEON
)

// String returns a human-readable name for the SIMD level.
func (s SIMDLevel) String() string {
	switch s {
	case SIMDNone:
		return "generic"
	case SIMDSSE2:
		return "sse2"
	case SIMDSSE3:
		return "sse3"
	case SIMDAVX2:
		return "avx2"
	case SIMDAVX512:
		return "avx512"
	case SIMDNEON:
		return "neon"
	default:
		return "unknown"
	}
}
