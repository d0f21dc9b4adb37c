package butterfly

import "github.com/cwbudde/butterfly/internal/kernels"

// GeneralForward applies the general butterfly transform.
//
// twiddle has shape (nstack, log2 n, 2, n) and input (batch, nstack, n).
// Stage slabs are selected by log2 of their stride, so the same twiddle
// describes the same factors in both directions. The result has the shape
// and target of input. Requires n <= MaxLength.
func GeneralForward[T Float](twiddle, input *Tensor[T], dir Direction) (*Tensor[T], error) {
	d, target, err := validate(OpGeneralForward, dir,
		dataOperand("input", input),
		generalOperand("twiddle", twiddle))
	if err != nil {
		return nil, err
	}

	engine, err := engineFor[T](target, Options{})
	if err != nil {
		return nil, err
	}

	out := zerosOn[T](target, d.DataShape())
	if err := engine.GeneralForward(out.Data, twiddle.Data, input.Data, d, dir); err != nil {
		return nil, err
	}

	return out, nil
}

// GeneralForwardBackward computes the gradients of the general transform
// with respect to its twiddle and input, given the gradient grad of its
// output. The forward activations are recomputed within the call and never
// returned. dTwiddle is summed over the batch. Requires n <= MaxFusedLength.
func GeneralForwardBackward[T Float](twiddle, input, grad *Tensor[T], dir Direction) (dTwiddle, dInput *Tensor[T], err error) {
	d, target, err := validate(OpGeneralForwardBackward, dir,
		dataOperand("input", input),
		generalOperand("twiddle", twiddle),
		dataOperand("grad", grad))
	if err != nil {
		return nil, nil, err
	}

	engine, err := engineFor[T](target, Options{})
	if err != nil {
		return nil, nil, err
	}

	dTwiddle = zerosOn[T](target, d.GeneralTwiddleShape())
	dInput = zerosOn[T](target, d.DataShape())

	err = engine.GeneralForwardBackward(dTwiddle.Data, dInput.Data, twiddle.Data, input.Data, grad.Data, d, dir)
	if err != nil {
		return nil, nil, err
	}

	return dTwiddle, dInput, nil
}

// OrthogonalForward applies the orthogonal butterfly transform. Every pair
// of every stage is rotated by R(θ) = [[c, -s], [s, c]] with c and s read
// from cos and sin, each of shape (nstack, log2 n, n/2). Requires
// n <= MaxLength.
func OrthogonalForward[T Float](cos, sin, input *Tensor[T], dir Direction) (*Tensor[T], error) {
	d, target, err := validate(OpOrthogonalForward, dir,
		dataOperand("input", input),
		orthogonalOperand("cos", cos),
		orthogonalOperand("sin", sin))
	if err != nil {
		return nil, err
	}

	engine, err := engineFor[T](target, Options{})
	if err != nil {
		return nil, err
	}

	out := zerosOn[T](target, d.DataShape())
	if err := engine.OrthogonalForward(out.Data, cos.Data, sin.Data, input.Data, d, dir); err != nil {
		return nil, err
	}

	return out, nil
}

// OrthogonalGrads holds the results of OrthogonalBackward.
type OrthogonalGrads[T Float] struct {
	// DCos and DSin are the partial derivatives with respect to the cos and
	// sin tensors, treated as independent inputs, summed over the batch.
	DCos *Tensor[T]
	DSin *Tensor[T]

	// DTheta is the derivative with respect to the rotation angles,
	// c·DSin − s·DCos.
	DTheta *Tensor[T]

	// DInput is the gradient with respect to the original input.
	DInput *Tensor[T]

	// Input is the original input, reconstructed from the output.
	Input *Tensor[T]
}

// OrthogonalBackward computes the gradients of the orthogonal transform from
// its final output and the gradient grad of that output. Because every stage
// is a rotation, the stage inputs are reconstructed by applying the
// transposed rotations instead of being stored. Requires n <= MaxLength.
func OrthogonalBackward[T Float](cos, sin, output, grad *Tensor[T], dir Direction) (*OrthogonalGrads[T], error) {
	d, target, err := validate(OpOrthogonalBackward, dir,
		dataOperand("output", output),
		orthogonalOperand("cos", cos),
		orthogonalOperand("sin", sin),
		dataOperand("grad", grad))
	if err != nil {
		return nil, err
	}

	engine, err := engineFor[T](target, Options{})
	if err != nil {
		return nil, err
	}

	res := &OrthogonalGrads[T]{
		DCos:   zerosOn[T](target, d.OrthogonalTwiddleShape()),
		DSin:   zerosOn[T](target, d.OrthogonalTwiddleShape()),
		DTheta: zerosOn[T](target, d.OrthogonalTwiddleShape()),
		DInput: zerosOn[T](target, d.DataShape()),
		Input:  zerosOn[T](target, d.DataShape()),
	}

	err = engine.OrthogonalBackward(res.DCos.Data, res.DSin.Data, res.DInput.Data, res.Input.Data,
		cos.Data, sin.Data, output.Data, grad.Data, d, dir)
	if err != nil {
		return nil, err
	}

	kernels.ThetaGrad(res.DTheta.Data, cos.Data, sin.Data, res.DCos.Data, res.DSin.Data)

	return res, nil
}

func zerosOn[T Float](target Target, shape []int) *Tensor[T] {
	t := Zeros[T](shape...)
	t.Target = target

	return t
}
