package butterfly

import (
	"math"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestGeneralMatrixMatchesForward(t *testing.T) {
	t.Parallel()

	rng := newRNG(161)
	const nstack, n = 2, 16

	tw := mustRandomTwiddle(t, rng, nstack, n)
	in := randTensor[float64](rng, 1, nstack, n)

	for _, dir := range directions {
		out, err := GeneralForward(tw, in, dir)
		require.NoError(t, err)

		for s := range nstack {
			m, err := GeneralMatrix(tw, s, dir)
			require.NoError(t, err)

			x := mat.NewVecDense(n, in.Data[s*n:(s+1)*n])

			var y mat.VecDense
			y.MulVec(m, x)

			requireAllClose(t, out.Data[s*n:(s+1)*n], y.RawVector().Data, 1e-12, "%s stack %d", dir, s)
		}
	}
}

func TestOrthogonalMatrixIsOrthogonal(t *testing.T) {
	t.Parallel()

	rng := newRNG(171)
	cos, sin := mustRandomAngles(t, rng, 1, 32)

	for _, dir := range directions {
		m, err := OrthogonalMatrix(cos, sin, 0, dir)
		require.NoError(t, err)

		var mtm mat.Dense
		mtm.Mul(m.T(), m)

		assert.True(t, mat.EqualApprox(&mtm, eye(32), 1e-12), "%s: MᵀM != I", dir)
	}
}

func TestHadamardMatrix(t *testing.T) {
	t.Parallel()

	for _, n := range []int{2, 8, 64} {
		tw, err := HadamardTwiddle[float64](1, n)
		require.NoError(t, err)

		want := mat.NewDense(n, n, nil)
		scale := 1 / math.Sqrt(float64(n))

		for i := range n {
			for j := range n {
				v := scale
				if bits.OnesCount(uint(i&j))%2 == 1 {
					v = -scale
				}

				want.Set(i, j, v)
			}
		}

		for _, dir := range directions {
			m, err := GeneralMatrix(tw, 0, dir)
			require.NoError(t, err)
			assert.True(t, mat.EqualApprox(m, want, 1e-12), "n=%d %s", n, dir)
		}
	}
}

func TestIdentityMatrices(t *testing.T) {
	t.Parallel()

	tw, err := IdentityTwiddle[float32](3, 16)
	require.NoError(t, err)

	cos, sin, err := ZeroAngleTwiddle[float32](3, 16)
	require.NoError(t, err)

	for s := range 3 {
		m, err := GeneralMatrix(tw, s, DecreasingStride)
		require.NoError(t, err)
		assert.True(t, mat.Equal(m, eye(16)), "general stack %d", s)

		m, err = OrthogonalMatrix(cos, sin, s, IncreasingStride)
		require.NoError(t, err)
		assert.True(t, mat.Equal(m, eye(16)), "orthogonal stack %d", s)
	}
}

func TestMatrixErrors(t *testing.T) {
	t.Parallel()

	tw, err := IdentityTwiddle[float64](2, 8)
	require.NoError(t, err)

	_, err = GeneralMatrix[float64](nil, 0, IncreasingStride)
	require.ErrorIs(t, err, ErrNilTensor)

	_, err = GeneralMatrix(Zeros[float64](2, 8), 0, IncreasingStride)
	require.ErrorIs(t, err, ErrRankMismatch)

	_, err = GeneralMatrix(tw, 2, IncreasingStride)
	require.ErrorIs(t, err, ErrShapeMismatch, "stack out of range")

	_, err = GeneralMatrix(tw, -1, IncreasingStride)
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = GeneralMatrix(tw, 0, Direction(5))
	require.ErrorIs(t, err, ErrInvalidDirection)

	_, err = GeneralMatrix(Zeros[float64](1, 2, 2, 6), 0, IncreasingStride)
	require.ErrorIs(t, err, ErrInvalidLength)

	_, err = GeneralMatrix(Zeros[float64](1, 3, 2, 4), 0, IncreasingStride)
	require.ErrorIs(t, err, ErrShapeMismatch, "logN axis does not match n")

	cos, _, err := ZeroAngleTwiddle[float64](1, 8)
	require.NoError(t, err)

	_, err = OrthogonalMatrix(cos, nil, 0, IncreasingStride)
	require.ErrorIs(t, err, ErrNilTensor)

	_, err = OrthogonalMatrix(cos, Zeros[float64](1, 3, 2), 0, IncreasingStride)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := range n {
		m.Set(i, i, 1)
	}

	return m
}
