package butterfly

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/butterfly/internal/kernels"
	"github.com/cwbudde/butterfly/internal/schedule"
)

// GeneralMatrix returns the dense n×n matrix M of one stack of a general
// twiddle, such that GeneralForward computes output = M·input for that stack.
// Column j is the transform of the j-th standard basis vector.
func GeneralMatrix[T Float](twiddle *Tensor[T], stack int, dir Direction) (*mat.Dense, error) {
	if twiddle == nil {
		return nil, fmt.Errorf("%w: twiddle", ErrNilTensor)
	}

	if twiddle.Rank() != 4 {
		return nil, fmt.Errorf("%w: twiddle has rank %d, want 4", ErrRankMismatch, twiddle.Rank())
	}

	d := Dims{Batch: 1, NStack: twiddle.Shape[0], N: twiddle.Shape[3]}
	if err := checkMatrixDims(OpGeneralForward, d); err != nil {
		return nil, err
	}

	_, _, err := validate(OpGeneralForward, dir,
		operand[T]{name: "basis", t: Zeros[T](d.DataShape()...), shape: Dims.DataShape},
		generalOperand("twiddle", twiddle.To(TargetCPU)))
	if err != nil {
		return nil, err
	}

	return materialize(d, stack, dir, func(x []T, l kernels.Layout, sched *schedule.Schedule) {
		kernels.GeneralForward(x, twiddle.Data, l, stack, sched)
	})
}

// OrthogonalMatrix returns the dense n×n matrix of one stack of an orthogonal
// twiddle. The result is orthogonal up to rounding.
func OrthogonalMatrix[T Float](cos, sin *Tensor[T], stack int, dir Direction) (*mat.Dense, error) {
	if cos == nil || sin == nil {
		return nil, fmt.Errorf("%w: cos/sin", ErrNilTensor)
	}

	if cos.Rank() != 3 {
		return nil, fmt.Errorf("%w: cos has rank %d, want 3", ErrRankMismatch, cos.Rank())
	}

	d := Dims{Batch: 1, NStack: cos.Shape[0], N: 2 * cos.Shape[2]}
	if err := checkMatrixDims(OpOrthogonalForward, d); err != nil {
		return nil, err
	}

	_, _, err := validate(OpOrthogonalForward, dir,
		operand[T]{name: "basis", t: Zeros[T](d.DataShape()...), shape: Dims.DataShape},
		orthogonalOperand("cos", cos.To(TargetCPU)),
		orthogonalOperand("sin", sin.To(TargetCPU)))
	if err != nil {
		return nil, err
	}

	return materialize(d, stack, dir, func(x []T, l kernels.Layout, sched *schedule.Schedule) {
		kernels.OrthoForward(x, cos.Data, sin.Data, l, stack, sched)
	})
}

func checkMatrixDims(op Op, d Dims) error {
	if err := checkLength(op, d.N); err != nil {
		return err
	}

	if d.NStack < 1 {
		return fmt.Errorf("%w: %s: nstack=%d", ErrShapeMismatch, op, d.NStack)
	}

	return nil
}

func materialize[T Float](d Dims, stack int, dir Direction, apply func(x []T, l kernels.Layout, sched *schedule.Schedule)) (*mat.Dense, error) {
	if stack < 0 || stack >= d.NStack {
		return nil, fmt.Errorf("%w: stack %d out of range [0, %d)", ErrShapeMismatch, stack, d.NStack)
	}

	sched, l, err := prepare(d, dir)
	if err != nil {
		return nil, err
	}

	m := mat.NewDense(d.N, d.N, nil)
	x := make([]T, d.N)

	for j := range d.N {
		clear(x)
		x[j] = 1
		apply(x, l, sched)

		for i, v := range x {
			m.Set(i, j, float64(v))
		}
	}

	return m, nil
}
