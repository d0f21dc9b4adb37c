package butterfly

import (
	"github.com/cwbudde/butterfly/internal/kernels"
	"github.com/cwbudde/butterfly/internal/schedule"
)

// sequentialEngine runs every sample on the calling goroutine. It is the
// reference the other engines are tested against.
type sequentialEngine[T Float] struct{}

func (sequentialEngine[T]) Name() string {
	return "cpu/sequential"
}

func (sequentialEngine[T]) GeneralForward(dst, twiddle, input []T, d Dims, dir Direction) error {
	sched, l, err := prepare(d, dir)
	if err != nil {
		return err
	}

	copy(dst, input)
	generalForwardRange(dst, twiddle, l, sched, 0, l.Samples())

	return nil
}

func (sequentialEngine[T]) GeneralForwardBackward(dTwiddle, dInput, twiddle, input, grad []T, d Dims, dir Direction) error {
	sched, l, err := prepare(d, dir)
	if err != nil {
		return err
	}

	clear(dTwiddle)
	copy(dInput, grad)

	saved := scratchPool[T]().Get(l.SavedLen())
	defer scratchPool[T]().Put(saved)

	generalBackwardRange(dTwiddle, dInput, twiddle, input, saved, l, sched, 0, l.Samples())

	return nil
}

func (sequentialEngine[T]) OrthogonalForward(dst, cos, sin, input []T, d Dims, dir Direction) error {
	sched, l, err := prepare(d, dir)
	if err != nil {
		return err
	}

	copy(dst, input)
	orthoForwardRange(dst, cos, sin, l, sched, 0, l.Samples())

	return nil
}

func (sequentialEngine[T]) OrthogonalBackward(dCos, dSin, dInput, input, cos, sin, output, grad []T, d Dims, dir Direction) error {
	sched, l, err := prepare(d, dir)
	if err != nil {
		return err
	}

	clear(dCos)
	clear(dSin)
	copy(input, output)
	copy(dInput, grad)
	orthoBackwardRange(dCos, dSin, dInput, input, cos, sin, l, sched, 0, l.Samples())

	return nil
}

func prepare(d Dims, dir Direction) (*schedule.Schedule, kernels.Layout, error) {
	sched, err := schedule.New(d.N, dir)
	if err != nil {
		return nil, kernels.Layout{}, err
	}

	return sched, kernels.NewLayout(d.Batch, d.NStack, d.N), nil
}

// The range helpers process samples [lo, hi) in place. They are shared by the
// sequential engine and the sample-partitioned parallel engine.

func generalForwardRange[T Float](x, twiddle []T, l kernels.Layout, sched *schedule.Schedule, lo, hi int) {
	for i := lo; i < hi; i++ {
		kernels.GeneralForward(kernels.Sample(x, l, i), twiddle, l, l.Stack(i), sched)
	}
}

func generalBackwardRange[T Float](dTwiddle, g, twiddle, input, saved []T, l kernels.Layout, sched *schedule.Schedule, lo, hi int) {
	for i := lo; i < hi; i++ {
		kernels.GeneralForwardBackward(kernels.Sample(input, l, i), kernels.Sample(g, l, i),
			twiddle, dTwiddle, saved, l, l.Stack(i), sched)
	}
}

func orthoForwardRange[T Float](x, cos, sin []T, l kernels.Layout, sched *schedule.Schedule, lo, hi int) {
	for i := lo; i < hi; i++ {
		kernels.OrthoForward(kernels.Sample(x, l, i), cos, sin, l, l.Stack(i), sched)
	}
}

func orthoBackwardRange[T Float](dCos, dSin, g, y, cos, sin []T, l kernels.Layout, sched *schedule.Schedule, lo, hi int) {
	for i := lo; i < hi; i++ {
		kernels.OrthoBackward(kernels.Sample(y, l, i), kernels.Sample(g, l, i),
			cos, sin, dCos, dSin, l, l.Stack(i), sched)
	}
}
