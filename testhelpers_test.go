package butterfly

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

// Shared test helper functions used across multiple test files

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func randTensor[T Float](rng *rand.Rand, shape ...int) *Tensor[T] {
	t := Zeros[T](shape...)
	for i := range t.Data {
		t.Data[i] = T(rng.NormFloat64())
	}

	return t
}

func mustRandomTwiddle(t *testing.T, rng *rand.Rand, nstack, n int) *Tensor[float64] {
	t.Helper()

	tw, err := RandomTwiddle[float64](rng, nstack, n, 1)
	require.NoError(t, err)

	return tw
}

func mustRandomAngles(t *testing.T, rng *rand.Rand, nstack, n int) (cos, sin *Tensor[float64]) {
	t.Helper()

	cos, sin, err := RandomAngles[float64](rng, nstack, n)
	require.NoError(t, err)

	return cos, sin
}

func toFloat64[T Float](xs []T) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = float64(v)
	}

	return out
}

func requireAllClose[T Float](t *testing.T, want, got []T, tol float64, msgAndArgs ...any) {
	t.Helper()

	require.Len(t, got, len(want), msgAndArgs...)

	w, g := toFloat64(want), toFloat64(got)
	if !floats.EqualApprox(w, g, tol) {
		diff := make([]float64, len(w))
		floats.SubTo(diff, w, g)
		require.Failf(t, "values differ", "max abs diff %g > %g", floats.Norm(diff, math.Inf(1)), tol)
	}
}

// loss is <grad, y>, the scalar whose derivatives the backward passes compute.
func loss(grad, y []float64) float64 {
	return floats.Dot(grad, y)
}
