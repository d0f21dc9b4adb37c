package butterfly

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

var directions = []Direction{IncreasingStride, DecreasingStride}

func TestGeneralForwardShape(t *testing.T) {
	t.Parallel()

	for _, n := range []int{2, 8, 256} {
		rng := newRNG(uint64(n))
		tw := mustRandomTwiddle(t, rng, 3, n)
		in := randTensor[float64](rng, 5, 3, n)

		out, err := GeneralForward(tw, in, IncreasingStride)
		require.NoError(t, err)
		assert.Equal(t, []int{5, 3, n}, out.Shape)
		assert.Len(t, out.Data, 5*3*n)
		assert.Equal(t, TargetCPU, out.Target)
	}
}

func TestGeneralIdentityN2(t *testing.T) {
	t.Parallel()

	tw, err := IdentityTwiddle[float64](1, 2)
	require.NoError(t, err)

	in := NewTensor([]float64{3.5, -1.25}, 1, 1, 2)
	out, err := GeneralForward(tw, in, IncreasingStride)
	require.NoError(t, err)
	assert.Equal(t, in.Data, out.Data)
}

func TestOrthogonalZeroAnglesN4(t *testing.T) {
	t.Parallel()

	cos, sin, err := ZeroAngleTwiddle[float64](1, 4)
	require.NoError(t, err)

	in := NewTensor([]float64{1, -2, 3, -4}, 1, 1, 4)
	for _, dir := range directions {
		out, err := OrthogonalForward(cos, sin, in, dir)
		require.NoError(t, err)
		assert.Equal(t, in.Data, out.Data, "forward %s", dir)

		grad := NewTensor([]float64{0.5, 0.25, -1, 2}, 1, 1, 4)
		res, err := OrthogonalBackward(cos, sin, out, grad, dir)
		require.NoError(t, err)
		assert.Equal(t, in.Data, res.Input.Data, "reconstructed input %s", dir)
		assert.Equal(t, grad.Data, res.DInput.Data, "input gradient %s", dir)

		f := func() float64 {
			y, err := OrthogonalForward(cos, sin, in, dir)
			require.NoError(t, err)

			return loss(grad.Data, y.Data)
		}

		const h = 1e-6

		for _, c := range []struct {
			name string
			p    []float64
			want []float64
		}{
			{"dCos", cos.Data, res.DCos.Data},
			{"dSin", sin.Data, res.DSin.Data},
		} {
			for i := range c.p {
				orig := c.p[i]
				c.p[i] = orig + h
				up := f()
				c.p[i] = orig - h
				down := f()
				c.p[i] = orig

				require.InDelta(t, (up-down)/(2*h), c.want[i], 1e-6, "%s[%d] %s", c.name, i, dir)
			}
		}

		// At θ = 0 the angle gradient equals the sine gradient.
		requireAllClose(t, res.DSin.Data, res.DTheta.Data, 1e-12, "dTheta %s", dir)
	}
}

func TestGeneralForwardBackwardFiniteDifference(t *testing.T) {
	t.Parallel()

	const h = 1e-6

	for _, dir := range directions {
		t.Run(dir.String(), func(t *testing.T) {
			t.Parallel()

			rng := newRNG(21 + uint64(dir))
			tw := mustRandomTwiddle(t, rng, 2, 8)
			in := randTensor[float64](rng, 3, 2, 8)
			grad := randTensor[float64](rng, 3, 2, 8)

			f := func() float64 {
				out, err := GeneralForward(tw, in, dir)
				require.NoError(t, err)

				return loss(grad.Data, out.Data)
			}

			dTw, dIn, err := GeneralForwardBackward(tw, in, grad, dir)
			require.NoError(t, err)
			assert.Equal(t, tw.Shape, dTw.Shape)
			assert.Equal(t, in.Shape, dIn.Shape)

			for _, c := range []struct {
				name string
				p    []float64
				want []float64
			}{
				{"dTwiddle", tw.Data, dTw.Data},
				{"dInput", in.Data, dIn.Data},
			} {
				for i := range c.p {
					orig := c.p[i]
					c.p[i] = orig + h
					up := f()
					c.p[i] = orig - h
					down := f()
					c.p[i] = orig

					require.InDelta(t, (up-down)/(2*h), c.want[i], 1e-5, "%s[%d]", c.name, i)
				}
			}
		})
	}
}

func TestOrthogonalBackwardFiniteDifference(t *testing.T) {
	t.Parallel()

	const h = 1e-6

	for _, dir := range directions {
		t.Run(dir.String(), func(t *testing.T) {
			t.Parallel()

			rng := newRNG(31 + uint64(dir))
			cos, sin := mustRandomAngles(t, rng, 2, 16)
			in := randTensor[float64](rng, 2, 2, 16)
			grad := randTensor[float64](rng, 2, 2, 16)

			f := func() float64 {
				out, err := OrthogonalForward(cos, sin, in, dir)
				require.NoError(t, err)

				return loss(grad.Data, out.Data)
			}

			out, err := OrthogonalForward(cos, sin, in, dir)
			require.NoError(t, err)

			res, err := OrthogonalBackward(cos, sin, out, grad, dir)
			require.NoError(t, err)

			requireAllClose(t, in.Data, res.Input.Data, 1e-12, "reconstructed input")

			for _, c := range []struct {
				name string
				p    []float64
				want []float64
			}{
				{"dCos", cos.Data, res.DCos.Data},
				{"dSin", sin.Data, res.DSin.Data},
				{"dInput", in.Data, res.DInput.Data},
			} {
				for i := range c.p {
					orig := c.p[i]
					c.p[i] = orig + h
					up := f()
					c.p[i] = orig - h
					down := f()
					c.p[i] = orig

					require.InDelta(t, (up-down)/(2*h), c.want[i], 1e-5, "%s[%d]", c.name, i)
				}
			}

			for i := range res.DTheta.Data {
				c0, s0 := cos.Data[i], sin.Data[i]
				theta := math.Atan2(s0, c0)

				sin.Data[i], cos.Data[i] = math.Sincos(theta + h)
				up := f()
				sin.Data[i], cos.Data[i] = math.Sincos(theta - h)
				down := f()
				cos.Data[i], sin.Data[i] = c0, s0

				require.InDelta(t, (up-down)/(2*h), res.DTheta.Data[i], 1e-5, "dTheta[%d]", i)
			}
		})
	}
}

func TestOrthogonalPreservesNorm(t *testing.T) {
	t.Parallel()

	rng := newRNG(41)
	n := 1024
	cos, sin := mustRandomAngles(t, rng, 2, n)
	in := randTensor[float64](rng, 4, 2, n)

	for _, dir := range directions {
		out, err := OrthogonalForward(cos, sin, in, dir)
		require.NoError(t, err)

		for s := range 8 {
			x := in.Data[s*n : (s+1)*n]
			y := out.Data[s*n : (s+1)*n]
			assert.InDelta(t, floats.Norm(x, 2), floats.Norm(y, 2), 1e-10, "%s sample %d", dir, s)
		}
	}
}

// One stage has a single stride, so both directions agree for n=2; with more
// stages the order matters.
func TestDirectionAsymmetry(t *testing.T) {
	t.Parallel()

	rng := newRNG(51)

	for _, n := range []int{2, 4, 64} {
		tw := mustRandomTwiddle(t, rng, 1, n)
		in := randTensor[float64](rng, 1, 1, n)

		inc, err := GeneralForward(tw, in, IncreasingStride)
		require.NoError(t, err)
		dec, err := GeneralForward(tw, in, DecreasingStride)
		require.NoError(t, err)

		if n == 2 {
			assert.Equal(t, inc.Data, dec.Data)
		} else {
			assert.False(t, floats.EqualApprox(inc.Data, dec.Data, 1e-9), "n=%d", n)
		}
	}
}

func TestSamplesAreIndependent(t *testing.T) {
	t.Parallel()

	rng := newRNG(61)
	const batch, nstack, n = 3, 2, 32

	tw := mustRandomTwiddle(t, rng, nstack, n)
	in := randTensor[float64](rng, batch, nstack, n)

	all, err := GeneralForward(tw, in, DecreasingStride)
	require.NoError(t, err)

	for b := range batch {
		one := NewTensor(in.Data[b*nstack*n:(b+1)*nstack*n], 1, nstack, n)
		out, err := GeneralForward(tw, one, DecreasingStride)
		require.NoError(t, err)
		assert.Equal(t, all.Data[b*nstack*n:(b+1)*nstack*n], out.Data, "batch %d", b)
	}

	// The batch-summed twiddle gradient is the sum of per-batch gradients.
	grad := randTensor[float64](rng, batch, nstack, n)
	dTw, _, err := GeneralForwardBackward(tw, in, grad, DecreasingStride)
	require.NoError(t, err)

	sum := make([]float64, len(dTw.Data))
	for b := range batch {
		one := NewTensor(in.Data[b*nstack*n:(b+1)*nstack*n], 1, nstack, n)
		g := NewTensor(grad.Data[b*nstack*n:(b+1)*nstack*n], 1, nstack, n)
		part, _, err := GeneralForwardBackward(tw, one, g, DecreasingStride)
		require.NoError(t, err)
		floats.Add(sum, part.Data)
	}

	requireAllClose(t, sum, dTw.Data, 1e-10)
}

func TestInputsAreNotModified(t *testing.T) {
	t.Parallel()

	rng := newRNG(71)
	tw := mustRandomTwiddle(t, rng, 2, 16)
	cos, sin := mustRandomAngles(t, rng, 2, 16)
	in := randTensor[float64](rng, 3, 2, 16)
	grad := randTensor[float64](rng, 3, 2, 16)

	snap := []*Tensor[float64]{tw.Clone(), cos.Clone(), sin.Clone(), in.Clone(), grad.Clone()}

	_, err := GeneralForward(tw, in, IncreasingStride)
	require.NoError(t, err)
	_, _, err = GeneralForwardBackward(tw, in, grad, IncreasingStride)
	require.NoError(t, err)
	out, err := OrthogonalForward(cos, sin, in, IncreasingStride)
	require.NoError(t, err)

	outSnap := out.Clone()
	_, err = OrthogonalBackward(cos, sin, out, grad, IncreasingStride)
	require.NoError(t, err)

	for i, cur := range []*Tensor[float64]{tw, cos, sin, in, grad} {
		assert.Equal(t, snap[i].Data, cur.Data, "operand %d", i)
	}

	assert.Equal(t, outSnap.Data, out.Data)
}

func TestFloat32MatchesFloat64(t *testing.T) {
	t.Parallel()

	rng := newRNG(81)
	tw := mustRandomTwiddle(t, rng, 2, 64)
	cos, sin := mustRandomAngles(t, rng, 2, 64)
	in := randTensor[float64](rng, 2, 2, 64)

	narrow := func(x *Tensor[float64]) *Tensor[float32] {
		out := Zeros[float32](x.Shape...)
		for i, v := range x.Data {
			out.Data[i] = float32(v)
		}

		return out
	}

	want, err := GeneralForward(tw, in, IncreasingStride)
	require.NoError(t, err)
	got, err := GeneralForward(narrow(tw), narrow(in), IncreasingStride)
	require.NoError(t, err)

	for i := range want.Data {
		assert.InDelta(t, want.Data[i], float64(got.Data[i]), 1e-3*math.Max(1, math.Abs(want.Data[i])), "general[%d]", i)
	}

	wantO, err := OrthogonalForward(cos, sin, in, DecreasingStride)
	require.NoError(t, err)
	gotO, err := OrthogonalForward(narrow(cos), narrow(sin), narrow(in), DecreasingStride)
	require.NoError(t, err)
	requireAllClose(t, toFloat32(wantO.Data), gotO.Data, 1e-4)
}

func toFloat32(xs []float64) []float32 {
	out := make([]float32, len(xs))
	for i, v := range xs {
		out[i] = float32(v)
	}

	return out
}

func TestEmptyBatch(t *testing.T) {
	t.Parallel()

	rng := newRNG(91)
	tw := mustRandomTwiddle(t, rng, 2, 8)
	in := Zeros[float64](0, 2, 8)

	out, err := GeneralForward(tw, in, IncreasingStride)
	require.NoError(t, err)
	assert.Empty(t, out.Data)

	dTw, dIn, err := GeneralForwardBackward(tw, in, Zeros[float64](0, 2, 8), IncreasingStride)
	require.NoError(t, err)
	assert.Empty(t, dIn.Data)
	assert.Zero(t, floats.Norm(dTw.Data, 1))
}

func ExampleOrthogonalForward() {
	cos, sin, _ := ZeroAngleTwiddle[float64](1, 4)
	in := NewTensor([]float64{1, 2, 3, 4}, 1, 1, 4)

	out, _ := OrthogonalForward(cos, sin, in, IncreasingStride)
	fmt.Println(out.Data)
	// Output: [1 2 3 4]
}
