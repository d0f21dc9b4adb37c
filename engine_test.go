package butterfly

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineCase struct {
	name   string
	engine Engine[float64]
}

func cpuEngines() []engineCase {
	return []engineCase{
		{"samples/4", &parallelEngine[float64]{workers: 4, strategy: StrategySamples}},
		{"samples/3", &parallelEngine[float64]{workers: 3, strategy: StrategySamples}},
		{"pairs/4", &parallelEngine[float64]{workers: 4, strategy: StrategyPairs}},
		{"auto/8", &parallelEngine[float64]{workers: 8}},
	}
}

func TestParallelEnginesMatchSequential(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		batch, nstack, n int
	}{
		{1, 1, 2},
		{5, 3, 16},
		{2, 1, 2048},
		{7, 2, 64},
	} {
		d := Dims{Batch: tc.batch, NStack: tc.nstack, N: tc.n}
		rng := newRNG(uint64(d.DataLen()))
		tw := mustRandomTwiddle(t, rng, d.NStack, d.N)
		cos, sin := mustRandomAngles(t, rng, d.NStack, d.N)
		in := randTensor[float64](rng, d.DataShape()...)
		grad := randTensor[float64](rng, d.DataShape()...)

		for _, dir := range directions {
			ref := runAll(t, sequentialEngine[float64]{}, d, dir, tw.Data, cos.Data, sin.Data, in.Data, grad.Data)

			for _, ec := range cpuEngines() {
				got := runAll(t, ec.engine, d, dir, tw.Data, cos.Data, sin.Data, in.Data, grad.Data)

				for i := range ref {
					requireAllClose(t, ref[i], got[i], 1e-10, "%s %v %s result %d", ec.name, d, dir, i)
				}
			}
		}
	}
}

// runAll executes the four operations and returns every output buffer.
func runAll(t *testing.T, e Engine[float64], d Dims, dir Direction, tw, cos, sin, in, grad []float64) [][]float64 {
	t.Helper()

	out := make([]float64, d.DataLen())
	require.NoError(t, e.GeneralForward(out, tw, in, d, dir))

	dTw := make([]float64, len(tw))
	dIn := make([]float64, d.DataLen())

	// Garbage in the output buffers must be overwritten.
	for i := range dTw {
		dTw[i] = 99
	}

	require.NoError(t, e.GeneralForwardBackward(dTw, dIn, tw, in, grad, d, dir))

	rot := make([]float64, d.DataLen())
	require.NoError(t, e.OrthogonalForward(rot, cos, sin, in, d, dir))

	dCos := make([]float64, len(cos))
	dSin := make([]float64, len(sin))
	dRot := make([]float64, d.DataLen())
	rec := make([]float64, d.DataLen())

	for i := range dCos {
		dCos[i], dSin[i] = -7, 7
	}

	require.NoError(t, e.OrthogonalBackward(dCos, dSin, dRot, rec, cos, sin, rot, grad, d, dir))

	return [][]float64{out, dTw, dIn, rot, dCos, dSin, dRot, rec}
}

// countingEngine wraps the sequential engine and counts calls, standing in
// for an accelerator.
type countingEngine struct {
	sequentialEngine[float64]

	calls atomic.Int32
}

func (c *countingEngine) Name() string { return "test/accelerator" }

func (c *countingEngine) GeneralForward(dst, twiddle, input []float64, d Dims, dir Direction) error {
	c.calls.Add(1)
	return c.sequentialEngine.GeneralForward(dst, twiddle, input, d, dir)
}

func (c *countingEngine) OrthogonalBackward(dCos, dSin, dInput, input, cos, sin, output, grad []float64, d Dims, dir Direction) error {
	c.calls.Add(1)
	return c.sequentialEngine.OrthogonalBackward(dCos, dSin, dInput, input, cos, sin, output, grad, d, dir)
}

//nolint:paralleltest // mutates the accelerator registry
func TestAcceleratorRegistry(t *testing.T) {
	rng := newRNG(131)
	tw := mustRandomTwiddle(t, rng, 1, 8).To(TargetAccelerator)
	in := randTensor[float64](rng, 2, 1, 8).To(TargetAccelerator)

	_, err := GeneralForward(tw, in, IncreasingStride)
	require.ErrorIs(t, err, ErrUnsupportedTarget)

	acc := &countingEngine{}
	RegisterAccelerator[float64](acc)
	defer RegisterAccelerator[float64](nil)

	got, ok := Accelerator[float64]()
	require.True(t, ok)
	assert.Equal(t, "test/accelerator", got.Name())

	_, ok = Accelerator[float32]()
	assert.False(t, ok, "registration is per precision")

	out, err := GeneralForward(tw, in, IncreasingStride)
	require.NoError(t, err)
	assert.Equal(t, TargetAccelerator, out.Target)
	assert.Equal(t, int32(1), acc.calls.Load())

	want, err := GeneralForward(tw.To(TargetCPU), in.To(TargetCPU), IncreasingStride)
	require.NoError(t, err)
	requireAllClose(t, want.Data, out.Data, 1e-12)

	cos, sin := mustRandomAngles(t, rng, 1, 8)
	res, err := OrthogonalBackward(cos.To(TargetAccelerator), sin.To(TargetAccelerator), in, in, DecreasingStride)
	require.NoError(t, err)
	assert.Equal(t, TargetAccelerator, res.DTheta.Target)
	assert.Equal(t, int32(2), acc.calls.Load())

	plan, err := NewPlan[float64](8, 1, IncreasingStride, Options{Target: TargetAccelerator})
	require.NoError(t, err)
	assert.Equal(t, "test/accelerator", plan.Engine())

	RegisterAccelerator[float64](nil)

	_, err = NewPlan[float64](8, 1, IncreasingStride, Options{Target: TargetAccelerator})
	require.ErrorIs(t, err, ErrUnsupportedTarget)
}

func TestNewCPUEngine(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cpu/sequential", newCPUEngine[float32](Options{Workers: 1}).Name())
	assert.Equal(t, "cpu/sequential", newCPUEngine[float32](Options{Workers: 8, Strategy: StrategySequential}).Name())
	assert.Equal(t, "cpu/parallel", newCPUEngine[float64](Options{Workers: 8}).Name())
}
