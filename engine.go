package butterfly

import (
	"fmt"
	"sync"

	"github.com/cwbudde/butterfly/internal/bftypes"
)

// Engine executes the four operations for one execution target on flat
// row-major buffers. Callers validate shapes before calling an engine, so
// implementations may assume every buffer has exactly the length implied by
// d. Engines fully overwrite every output buffer, including gradients, and
// never modify their inputs. Outputs must not overlap inputs, except that
// the forward operations accept dst equal to input.
//
// The CPU engines live in this package; accelerator engines are provided by
// package gpu and installed with RegisterAccelerator.
type Engine[T Float] interface {
	// Name identifies the engine in diagnostics and benchmarks.
	Name() string

	// GeneralForward writes the transform of input into dst.
	GeneralForward(dst, twiddle, input []T, d Dims, dir Direction) error

	// GeneralForwardBackward writes the twiddle gradient summed over the batch
	// into dTwiddle and the input gradient into dInput.
	GeneralForwardBackward(dTwiddle, dInput, twiddle, input, grad []T, d Dims, dir Direction) error

	// OrthogonalForward writes the rotated input into dst.
	OrthogonalForward(dst, cos, sin, input []T, d Dims, dir Direction) error

	// OrthogonalBackward reconstructs the input from output into input and
	// writes the gradients with respect to cos, sin (summed over the batch)
	// and the input.
	OrthogonalBackward(dCos, dSin, dInput, input, cos, sin, output, grad []T, d Dims, dir Direction) error
}

var (
	acceleratorMu sync.RWMutex
	accelerators  = map[bftypes.Precision]any{}
)

// RegisterAccelerator installs e as the engine for TargetAccelerator tensors
// of element type T. Passing nil removes it.
func RegisterAccelerator[T Float](e Engine[T]) {
	acceleratorMu.Lock()
	defer acceleratorMu.Unlock()

	if e == nil {
		delete(accelerators, bftypes.PrecisionOf[T]())
		return
	}

	accelerators[bftypes.PrecisionOf[T]()] = e
}

// Accelerator returns the registered accelerator engine for T, if any.
func Accelerator[T Float]() (Engine[T], bool) {
	acceleratorMu.RLock()
	defer acceleratorMu.RUnlock()

	e, ok := accelerators[bftypes.PrecisionOf[T]()].(Engine[T])

	return e, ok
}

// engineFor resolves the engine that executes tensors on target.
func engineFor[T Float](target Target, opts Options) (Engine[T], error) {
	switch target {
	case TargetCPU:
		return newCPUEngine[T](opts), nil
	case TargetAccelerator:
		if e, ok := Accelerator[T](); ok {
			return e, nil
		}

		var zero T

		return nil, fmt.Errorf("%w: no accelerator engine registered for %T", ErrUnsupportedTarget, zero)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, target)
	}
}

// newCPUEngine returns the sequential engine when only one worker is
// available or requested, and the parallel engine otherwise.
func newCPUEngine[T Float](opts Options) Engine[T] {
	workers := opts.workers()
	if workers <= 1 || opts.Strategy == StrategySequential {
		return sequentialEngine[T]{}
	}

	return &parallelEngine[T]{workers: workers, strategy: opts.Strategy}
}
