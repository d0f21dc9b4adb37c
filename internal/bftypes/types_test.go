package bftypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrategyRoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []Strategy{StrategyAuto, StrategySequential, StrategySamples, StrategyPairs} {
		got, ok := ParseStrategy(s.String())
		assert.True(t, ok, s.String())
		assert.Equal(t, s, got)
	}

	_, ok := ParseStrategy("fastest")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Strategy(42).String())
}

func TestOpRoundTrip(t *testing.T) {
	t.Parallel()

	for _, o := range Ops() {
		got, ok := ParseOp(o.String())
		assert.True(t, ok, o.String())
		assert.Equal(t, o, got)
	}

	_, ok := ParseOp("general")
	assert.False(t, ok)
}

func TestPrecisionOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, PrecisionFloat32, PrecisionOf[float32]())
	assert.Equal(t, PrecisionFloat64, PrecisionOf[float64]())
}

func TestDirection(t *testing.T) {
	t.Parallel()

	assert.True(t, IncreasingStride.Increasing())
	assert.False(t, DecreasingStride.Increasing())
	assert.Equal(t, "decreasing", DecreasingStride.String())
	assert.Equal(t, "accelerator", TargetAccelerator.String())
	assert.Equal(t, "avx2", SIMDAVX2.String())
}
