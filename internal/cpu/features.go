// Package cpu reports the CPU capabilities the engines use for strategy
// selection: vector extensions keyed into wisdom, core counts for the default
// worker count and data cache sizes for the fused scratch fit.
package cpu

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sys/cpu"

	"github.com/cwbudde/butterfly/internal/bftypes"
)

// Features describes the host CPU.
type Features struct {
	HasSSE2   bool
	HasSSE3   bool
	HasAVX2   bool
	HasAVX512 bool
	HasNEON   bool

	// ForceGeneric makes SIMD() report SIMDNone regardless of the flags above.
	ForceGeneric bool

	Architecture  string
	BrandName     string
	PhysicalCores int
	LogicalCores  int

	// Cache sizes in bytes, 0 when unknown.
	L1DataCache int
	L2Cache     int
}

var (
	detectOnce sync.Once
	detected   Features
)

// DetectFeatures reports the available CPU features for the current process.
// Detection runs once; later calls return the cached result.
func DetectFeatures() Features {
	detectOnce.Do(func() {
		detected = detectFeatures()
	})

	return detected
}

func detectFeatures() Features {
	f := Features{
		HasSSE2:       cpu.X86.HasSSE2,
		HasSSE3:       cpu.X86.HasSSE3,
		HasAVX2:       cpu.X86.HasAVX2,
		HasAVX512:     cpu.X86.HasAVX512,
		HasNEON:       cpu.ARM64.HasASIMD,
		Architecture:  runtime.GOARCH,
		BrandName:     cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		L1DataCache:   max(cpuid.CPU.Cache.L1D, 0),
		L2Cache:       max(cpuid.CPU.Cache.L2, 0),
	}

	// cpuid reports 0 cores on platforms it cannot query (wasm, some VMs).
	if f.LogicalCores <= 0 {
		f.LogicalCores = runtime.NumCPU()
	}

	if f.PhysicalCores <= 0 {
		f.PhysicalCores = f.LogicalCores
	}

	return f
}

// SIMD returns the widest vector extension available.
func (f Features) SIMD() bftypes.SIMDLevel {
	switch {
	case f.ForceGeneric:
		return bftypes.SIMDNone
	case f.HasAVX512:
		return bftypes.SIMDAVX512
	case f.HasAVX2:
		return bftypes.SIMDAVX2
	case f.HasSSE3:
		return bftypes.SIMDSSE3
	case f.HasSSE2:
		return bftypes.SIMDSSE2
	case f.HasNEON:
		return bftypes.SIMDNEON
	default:
		return bftypes.SIMDNone
	}
}

// Mask packs the feature bits into the integer stored in wisdom keys.
func (f Features) Mask() uint64 {
	var m uint64

	for i, set := range []bool{f.HasSSE2, f.HasSSE3, f.HasAVX2, f.HasAVX512, f.HasNEON, f.ForceGeneric} {
		if set {
			m |= 1 << uint(i)
		}
	}

	return m
}

// DefaultWorkers is the worker count used when none is configured: the
// physical core count, capped by GOMAXPROCS.
func (f Features) DefaultWorkers() int {
	w := f.PhysicalCores
	if procs := runtime.GOMAXPROCS(0); w > procs || w <= 0 {
		w = procs
	}

	return max(w, 1)
}

// FitsL2 reports whether a scratch region of the given size in bytes fits
// in the L2 cache. It reports true when the cache size is unknown.
func (f Features) FitsL2(bytes int) bool {
	if f.L2Cache == 0 {
		return true
	}

	return bytes <= f.L2Cache
}
