package butterfly

import (
	"github.com/cwbudde/butterfly/internal/kernels"
	"github.com/cwbudde/butterfly/internal/parallel"
	"github.com/cwbudde/butterfly/internal/schedule"
)

var (
	pool32 parallel.Pool[float32]
	pool64 parallel.Pool[float64]
)

func scratchPool[T Float]() *parallel.Pool[T] {
	var zero T
	switch any(zero).(type) {
	case float64:
		return any(&pool64).(*parallel.Pool[T])
	default:
		return any(&pool32).(*parallel.Pool[T])
	}
}

// parallelEngine spreads a call across goroutines. Each call picks one of
// two partitions:
//
//   - samples: contiguous ranges of the Batch*NStack vectors go to workers.
//     Gradient calls give every worker a private twiddle-gradient partial and
//     sum the partials afterwards in worker order.
//   - pairs: vectors are processed one at a time and the N/2 pairs of every
//     stage are split across workers, with a barrier between stages. Within a
//     stage each gradient slot is owned by exactly one pair, so no partials
//     are needed.
type parallelEngine[T Float] struct {
	workers  int
	strategy Strategy
}

func (e *parallelEngine[T]) Name() string {
	return "cpu/parallel"
}

func (e *parallelEngine[T]) GeneralForward(dst, twiddle, input []T, d Dims, dir Direction) error {
	sched, l, err := prepare(d, dir)
	if err != nil {
		return err
	}

	copy(dst, input)

	switch resolveStrategy[T](OpGeneralForward, d, e.workers, e.strategy) {
	case StrategySamples:
		parallel.For(l.Samples(), e.workers, func(_, lo, hi int) {
			generalForwardRange(dst, twiddle, l, sched, lo, hi)
		})
	case StrategyPairs:
		for i := range l.Samples() {
			x := kernels.Sample(dst, l, i)
			for _, st := range sched.Stages {
				t0, t1 := kernels.GeneralSlab(twiddle, l, l.Stack(i), st.LogStride)
				parallel.For(sched.Pairs(), e.workers, func(_, lo, hi int) {
					kernels.GeneralStage(x, x, t0, t1, st, lo, hi)
				})
			}
		}
	default:
		generalForwardRange(dst, twiddle, l, sched, 0, l.Samples())
	}

	return nil
}

func (e *parallelEngine[T]) GeneralForwardBackward(dTwiddle, dInput, twiddle, input, grad []T, d Dims, dir Direction) error {
	sched, l, err := prepare(d, dir)
	if err != nil {
		return err
	}

	clear(dTwiddle)
	copy(dInput, grad)

	pool := scratchPool[T]()

	switch resolveStrategy[T](OpGeneralForwardBackward, d, e.workers, e.strategy) {
	case StrategySamples:
		partials := make([][]T, parallel.Chunks(l.Samples(), e.workers))
		parallel.For(l.Samples(), e.workers, func(w, lo, hi int) {
			saved := pool.Get(l.SavedLen())
			defer pool.Put(saved)

			partials[w] = pool.Get(l.GeneralLen())
			generalBackwardRange(partials[w], dInput, twiddle, input, saved, l, sched, lo, hi)
		})
		e.reduce(dTwiddle, partials)
	case StrategyPairs:
		saved := pool.Get(l.SavedLen())
		defer pool.Put(saved)

		for i := range l.Samples() {
			e.generalBackwardPairs(dTwiddle, kernels.Sample(dInput, l, i), twiddle,
				kernels.Sample(input, l, i), saved, l, l.Stack(i), sched)
		}
	default:
		saved := pool.Get(l.SavedLen())
		defer pool.Put(saved)

		generalBackwardRange(dTwiddle, dInput, twiddle, input, saved, l, sched, 0, l.Samples())
	}

	return nil
}

// generalBackwardPairs is the pair-partitioned form of
// kernels.GeneralForwardBackward for one sample.
func (e *parallelEngine[T]) generalBackwardPairs(dTwiddle, g, twiddle, x, saved []T, l kernels.Layout, stack int, sched *schedule.Schedule) {
	n := l.N
	last := len(sched.Stages) - 1

	copy(saved[:n], x)

	for k, st := range sched.Stages[:last] {
		src, dst := saved[k*n:(k+1)*n], saved[(k+1)*n:(k+2)*n]
		t0, t1 := kernels.GeneralSlab(twiddle, l, stack, st.LogStride)
		parallel.For(sched.Pairs(), e.workers, func(_, lo, hi int) {
			kernels.GeneralStage(dst, src, t0, t1, st, lo, hi)
		})
	}

	for k := last; k >= 0; k-- {
		st := sched.Stages[k]
		in := saved[k*n : (k+1)*n]
		t0, t1 := kernels.GeneralSlab(twiddle, l, stack, st.LogStride)
		dt0, dt1 := kernels.GeneralSlab(dTwiddle, l, stack, st.LogStride)
		parallel.For(sched.Pairs(), e.workers, func(_, lo, hi int) {
			kernels.GeneralStageBackward(in, g, t0, t1, dt0, dt1, st, lo, hi)
		})
	}
}

func (e *parallelEngine[T]) OrthogonalForward(dst, cos, sin, input []T, d Dims, dir Direction) error {
	sched, l, err := prepare(d, dir)
	if err != nil {
		return err
	}

	copy(dst, input)

	switch resolveStrategy[T](OpOrthogonalForward, d, e.workers, e.strategy) {
	case StrategySamples:
		parallel.For(l.Samples(), e.workers, func(_, lo, hi int) {
			orthoForwardRange(dst, cos, sin, l, sched, lo, hi)
		})
	case StrategyPairs:
		for i := range l.Samples() {
			x := kernels.Sample(dst, l, i)
			for _, st := range sched.Stages {
				c := kernels.OrthoSlab(cos, l, l.Stack(i), st.LogStride)
				s := kernels.OrthoSlab(sin, l, l.Stack(i), st.LogStride)
				parallel.For(sched.Pairs(), e.workers, func(_, lo, hi int) {
					kernels.OrthoStage(x, x, c, s, st, lo, hi)
				})
			}
		}
	default:
		orthoForwardRange(dst, cos, sin, l, sched, 0, l.Samples())
	}

	return nil
}

func (e *parallelEngine[T]) OrthogonalBackward(dCos, dSin, dInput, input, cos, sin, output, grad []T, d Dims, dir Direction) error {
	sched, l, err := prepare(d, dir)
	if err != nil {
		return err
	}

	clear(dCos)
	clear(dSin)
	copy(input, output)
	copy(dInput, grad)

	switch resolveStrategy[T](OpOrthogonalBackward, d, e.workers, e.strategy) {
	case StrategySamples:
		pool := scratchPool[T]()
		cosParts := make([][]T, parallel.Chunks(l.Samples(), e.workers))
		sinParts := make([][]T, len(cosParts))

		parallel.For(l.Samples(), e.workers, func(w, lo, hi int) {
			cosParts[w] = pool.Get(l.OrthoLen())
			sinParts[w] = pool.Get(l.OrthoLen())
			orthoBackwardRange(cosParts[w], sinParts[w], dInput, input, cos, sin, l, sched, lo, hi)
		})
		e.reduce(dCos, cosParts)
		e.reduce(dSin, sinParts)
	case StrategyPairs:
		for i := range l.Samples() {
			y, g, stack := kernels.Sample(input, l, i), kernels.Sample(dInput, l, i), l.Stack(i)
			for k := len(sched.Stages) - 1; k >= 0; k-- {
				st := sched.Stages[k]
				c := kernels.OrthoSlab(cos, l, stack, st.LogStride)
				s := kernels.OrthoSlab(sin, l, stack, st.LogStride)
				dc := kernels.OrthoSlab(dCos, l, stack, st.LogStride)
				ds := kernels.OrthoSlab(dSin, l, stack, st.LogStride)
				parallel.For(sched.Pairs(), e.workers, func(_, lo, hi int) {
					kernels.OrthoStageBackward(y, g, c, s, dc, ds, st, lo, hi)
				})
			}
		}
	default:
		orthoBackwardRange(dCos, dSin, dInput, input, cos, sin, l, sched, 0, l.Samples())
	}

	return nil
}

// reduce sums the worker partials into dst, split by element range, and
// returns the partials to the pool. Partials are added in worker order so the
// result does not depend on scheduling.
func (e *parallelEngine[T]) reduce(dst []T, partials [][]T) {
	parallel.For(len(dst), e.workers, func(_, lo, hi int) {
		for _, p := range partials {
			kernels.Accumulate(dst[lo:hi], p[lo:hi])
		}
	})

	pool := scratchPool[T]()
	for _, p := range partials {
		pool.Put(p)
	}
}
