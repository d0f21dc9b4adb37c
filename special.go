package butterfly

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/cwbudde/butterfly/internal/kernels"
)

func twiddleDims(nstack, n int) (Dims, error) {
	d := Dims{Batch: 1, NStack: nstack, N: n}
	if err := checkMatrixDims(OpGeneralForward, d); err != nil {
		return Dims{}, err
	}

	return d, nil
}

// fillPairs sets the 2×2 map [[m00, m01], [m10, m11]] on every pair of every
// stage of a general twiddle.
func fillPairs[T Float](tw *Tensor[T], d Dims, m00, m01, m10, m11 T) {
	l := kernels.NewLayout(1, d.NStack, d.N)

	for s := range d.NStack {
		for k := range d.LogN() {
			t0, t1 := kernels.GeneralSlab(tw.Data, l, s, k)
			stride := 1 << k

			for a := range d.N {
				if a&stride != 0 {
					continue
				}

				b := a + stride
				t0[a], t1[a] = m00, m01
				t1[b], t0[b] = m10, m11
			}
		}
	}
}

// IdentityTwiddle returns a general twiddle whose transform is the identity.
func IdentityTwiddle[T Float](nstack, n int) (*Tensor[T], error) {
	d, err := twiddleDims(nstack, n)
	if err != nil {
		return nil, err
	}

	tw := Zeros[T](d.GeneralTwiddleShape()...)
	fillPairs(tw, d, 1, 0, 0, 1)

	return tw, nil
}

// HadamardTwiddle returns a general twiddle in which every pair map is
// [[1, 1], [1, -1]]/√2. Its transform is the orthonormal Walsh–Hadamard
// transform in natural order, for either direction.
func HadamardTwiddle[T Float](nstack, n int) (*Tensor[T], error) {
	d, err := twiddleDims(nstack, n)
	if err != nil {
		return nil, err
	}

	r := T(1 / math.Sqrt2)
	tw := Zeros[T](d.GeneralTwiddleShape()...)
	fillPairs(tw, d, r, r, r, -r)

	return tw, nil
}

// RandomTwiddle returns a general twiddle with entries drawn from a normal
// distribution with standard deviation scale.
func RandomTwiddle[T Float](rng *rand.Rand, nstack, n int, scale float64) (*Tensor[T], error) {
	d, err := twiddleDims(nstack, n)
	if err != nil {
		return nil, err
	}

	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrNilTensor)
	}

	tw := Zeros[T](d.GeneralTwiddleShape()...)
	for i := range tw.Data {
		tw.Data[i] = T(rng.NormFloat64() * scale)
	}

	return tw, nil
}

// ZeroAngleTwiddle returns cos and sin tensors for θ = 0 everywhere, whose
// transform is the identity.
func ZeroAngleTwiddle[T Float](nstack, n int) (cos, sin *Tensor[T], err error) {
	d, err := twiddleDims(nstack, n)
	if err != nil {
		return nil, nil, err
	}

	cos = Zeros[T](d.OrthogonalTwiddleShape()...)
	for i := range cos.Data {
		cos.Data[i] = 1
	}

	return cos, Zeros[T](d.OrthogonalTwiddleShape()...), nil
}

// RandomAngles returns cos and sin tensors for angles drawn uniformly from
// [0, 2π).
func RandomAngles[T Float](rng *rand.Rand, nstack, n int) (cos, sin *Tensor[T], err error) {
	d, err := twiddleDims(nstack, n)
	if err != nil {
		return nil, nil, err
	}

	if rng == nil {
		return nil, nil, fmt.Errorf("%w: nil random source", ErrNilTensor)
	}

	theta := Zeros[T](d.OrthogonalTwiddleShape()...)
	for i := range theta.Data {
		theta.Data[i] = T(rng.Float64() * 2 * math.Pi)
	}

	cos, sin = Rotations(theta)

	return cos, sin, nil
}

// Rotations evaluates cos θ and sin θ element-wise. The results keep the
// shape and target of theta.
func Rotations[T Float](theta *Tensor[T]) (cos, sin *Tensor[T]) {
	cos = zerosOn[T](theta.Target, theta.Shape)
	sin = zerosOn[T](theta.Target, theta.Shape)

	for i, v := range theta.Data {
		s, c := math.Sincos(float64(v))
		cos.Data[i], sin.Data[i] = T(c), T(s)
	}

	return cos, sin
}
