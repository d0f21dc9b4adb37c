package butterfly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationTaxonomy(t *testing.T) {
	t.Parallel()

	rng := newRNG(101)
	tw := mustRandomTwiddle(t, rng, 2, 8)
	in := randTensor[float64](rng, 3, 2, 8)

	onAccel := in.To(TargetAccelerator)
	truncated := &Tensor[float64]{Data: in.Data[:10], Shape: in.Shape}
	wrongStack := randTensor[float64](rng, 3, 1, 8)

	twOdd := Zeros[float64](2, 3, 2, 12)
	inOdd := Zeros[float64](3, 2, 12)

	twBig := Zeros[float64](1, 15, 2, 1<<15)
	inBig := Zeros[float64](1, 1, 1<<15)

	tests := []struct {
		name    string
		twiddle *Tensor[float64]
		input   *Tensor[float64]
		dir     Direction
		want    error
	}{
		{"nil twiddle", nil, in, IncreasingStride, ErrNilTensor},
		{"nil input", tw, nil, IncreasingStride, ErrNilTensor},
		{"input rank", tw, Zeros[float64](3, 16), IncreasingStride, ErrRankMismatch},
		{"twiddle rank", Zeros[float64](2, 3, 16), in, IncreasingStride, ErrRankMismatch},
		{"not a power of two", twOdd, inOdd, IncreasingStride, ErrInvalidLength},
		{"n=1", Zeros[float64](1, 0, 2, 1), Zeros[float64](1, 1, 1), IncreasingStride, ErrInvalidLength},
		{"above ceiling", twBig, inBig, IncreasingStride, ErrUnsupportedSize},
		{"unknown direction", tw, in, Direction(7), ErrInvalidDirection},
		{"device mismatch", tw, onAccel, IncreasingStride, ErrDeviceMismatch},
		{"stack mismatch", tw, wrongStack, IncreasingStride, ErrShapeMismatch},
		{"data shorter than shape", tw, truncated, IncreasingStride, ErrShapeMismatch},
		{"zero stacks", Zeros[float64](0, 3, 2, 8), Zeros[float64](3, 0, 8), IncreasingStride, ErrShapeMismatch},
		{"shape overflows int", Zeros[float64](1, 2, 2, 4), &Tensor[float64]{Shape: []int{1 << 62, 1, 4}}, IncreasingStride, ErrShapeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := GeneralForward(tt.twiddle, tt.input, tt.dir)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, out)
		})
	}
}

func TestFusedCeiling(t *testing.T) {
	t.Parallel()

	const n = 8192 // above MaxFusedLength, within MaxLength

	tw := Zeros[float32](1, 13, 2, n)
	in := Zeros[float32](1, 1, n)

	_, err := GeneralForward(tw, in, IncreasingStride)
	require.NoError(t, err)

	_, _, err = GeneralForwardBackward(tw, in, in, IncreasingStride)
	require.ErrorIs(t, err, ErrUnsupportedSize)

	cos := Zeros[float32](1, 13, n/2)
	res, err := OrthogonalBackward(cos, cos, in, in, IncreasingStride)
	require.NoError(t, err, "orthogonal backward accepts up to MaxLength")
	assert.Len(t, res.DTheta.Data, 13*n/2)
}

func TestOrthogonalValidation(t *testing.T) {
	t.Parallel()

	rng := newRNG(111)
	cos, sin := mustRandomAngles(t, rng, 2, 16)
	out := randTensor[float64](rng, 1, 2, 16)

	_, err := OrthogonalBackward(cos, sin, out, nil, IncreasingStride)
	require.ErrorIs(t, err, ErrNilTensor)

	_, err = OrthogonalBackward(cos, sin, out, randTensor[float64](rng, 2, 2, 16), IncreasingStride)
	require.ErrorIs(t, err, ErrShapeMismatch, "grad batch differs")

	_, err = OrthogonalForward(cos, Zeros[float64](2, 4, 16), out, IncreasingStride)
	require.ErrorIs(t, err, ErrShapeMismatch, "sin must be (nstack, logN, n/2)")

	_, err = OrthogonalForward(cos, sin.To(TargetAccelerator), out, IncreasingStride)
	require.ErrorIs(t, err, ErrDeviceMismatch)
}

func TestGradShapeChecked(t *testing.T) {
	t.Parallel()

	rng := newRNG(121)
	tw := mustRandomTwiddle(t, rng, 1, 8)
	in := randTensor[float64](rng, 2, 1, 8)

	_, _, err := GeneralForwardBackward(tw, in, randTensor[float64](rng, 2, 1, 4), IncreasingStride)
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, _, err = GeneralForwardBackward(tw, in, in.To(TargetAccelerator), IncreasingStride)
	require.ErrorIs(t, err, ErrDeviceMismatch)
}
