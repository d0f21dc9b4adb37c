package cpu

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cwbudde/butterfly/internal/bftypes"
)

func TestDetectFeatures(t *testing.T) {
	t.Parallel()

	f := DetectFeatures()
	t.Logf("Platform: %s/%s, brand %q", runtime.GOOS, f.Architecture, f.BrandName)
	t.Logf("Cores: physical=%d logical=%d, L1D=%d L2=%d", f.PhysicalCores, f.LogicalCores, f.L1DataCache, f.L2Cache)

	assert.Equal(t, runtime.GOARCH, f.Architecture)
	assert.Positive(t, f.PhysicalCores)
	assert.Positive(t, f.LogicalCores)
	assert.GreaterOrEqual(t, f.L1DataCache, 0)
	assert.GreaterOrEqual(t, f.L2Cache, 0)
	assert.Equal(t, f, DetectFeatures(), "detection must be cached")
}

func TestSIMDLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		f    Features
		want bftypes.SIMDLevel
	}{
		{"none", Features{}, bftypes.SIMDNone},
		{"sse2", Features{HasSSE2: true}, bftypes.SIMDSSE2},
		{"avx2 beats sse", Features{HasSSE2: true, HasSSE3: true, HasAVX2: true}, bftypes.SIMDAVX2},
		{"avx512", Features{HasAVX2: true, HasAVX512: true}, bftypes.SIMDAVX512},
		{"neon", Features{HasNEON: true}, bftypes.SIMDNEON},
		{"forced generic", Features{HasAVX2: true, ForceGeneric: true}, bftypes.SIMDNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.f.SIMD())
		})
	}
}

func TestMaskDistinguishesFeatures(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Features{}.Mask())
	assert.NotEqual(t, Features{HasAVX2: true}.Mask(), Features{HasSSE2: true}.Mask())
	assert.Equal(t, uint64(1|4), Features{HasSSE2: true, HasAVX2: true}.Mask())
}

func TestDefaultWorkers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, Features{PhysicalCores: 1}.DefaultWorkers())
	assert.LessOrEqual(t, Features{PhysicalCores: 1 << 20}.DefaultWorkers(), runtime.GOMAXPROCS(0))
	assert.Equal(t, runtime.GOMAXPROCS(0), Features{}.DefaultWorkers())
}

func TestFitsL2(t *testing.T) {
	t.Parallel()

	assert.True(t, Features{}.FitsL2(1<<30), "unknown cache size")
	assert.True(t, Features{L2Cache: 1 << 20}.FitsL2(1<<19))
	assert.False(t, Features{L2Cache: 1 << 20}.FitsL2(1<<21))
}
