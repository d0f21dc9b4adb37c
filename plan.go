package butterfly

import (
	"fmt"

	"github.com/cwbudde/butterfly/internal/cpu"
	"github.com/cwbudde/butterfly/internal/schedule"
)

// Options controls engine selection.
type Options struct {
	// Workers is the CPU worker count. Zero selects the physical core count
	// capped by GOMAXPROCS.
	Workers int

	// Strategy forces a CPU partition. StrategyAuto defers to SetStrategy,
	// recorded wisdom and the built-in heuristic, in that order.
	Strategy Strategy

	// Target selects the engine of a Plan. The tensor operations take the
	// target from their tensors instead.
	Target Target
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}

	return cpu.DetectFeatures().DefaultWorkers()
}

// Plan is a pre-validated, reusable form of the four operations for a fixed
// transform length, stack count and direction. Buffers are flat row-major
// slices with the layouts documented on the tensor operations; the batch size
// is derived from the input length on every call.
//
// Output buffers must not overlap each other or any input; such calls fail
// with ErrShapeMismatch. The forward operations accept dst equal to input and
// transform it in place.
//
// A Plan holds no mutable state and is safe for concurrent use.
type Plan[T Float] struct {
	n      int
	nstack int
	dir    Direction
	engine Engine[T]
}

// NewPlan creates a plan for nstack independent length-n transforms.
// At most one Options value is used.
func NewPlan[T Float](n, nstack int, dir Direction, opts ...Options) (*Plan[T], error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	if nstack < 1 {
		return nil, fmt.Errorf("%w: nstack=%d", ErrShapeMismatch, nstack)
	}

	if err := checkLength(OpGeneralForward, n); err != nil {
		return nil, err
	}

	if err := checkDirection(OpGeneralForward, dir); err != nil {
		return nil, err
	}

	// Warm the schedule cache.
	if _, err := schedule.New(n, dir); err != nil {
		return nil, err
	}

	engine, err := engineFor[T](o.Target, o)
	if err != nil {
		return nil, err
	}

	return &Plan[T]{n: n, nstack: nstack, dir: dir, engine: engine}, nil
}

// Len returns the transform length n.
func (p *Plan[T]) Len() int {
	return p.n
}

// NStack returns the number of stacked transforms.
func (p *Plan[T]) NStack() int {
	return p.nstack
}

// Direction returns the stage order of the plan.
func (p *Plan[T]) Direction() Direction {
	return p.dir
}

// Engine returns the name of the engine executing the plan.
func (p *Plan[T]) Engine() string {
	return p.engine.Name()
}

// dims derives the batch size from a data buffer length.
func (p *Plan[T]) dims(op Op, name string, dataLen int) (Dims, error) {
	per := p.nstack * p.n
	if dataLen%per != 0 {
		return Dims{}, fmt.Errorf("%w: %s: %s has %d elements, not a multiple of nstack*n=%d",
			ErrShapeMismatch, op, name, dataLen, per)
	}

	return Dims{Batch: dataLen / per, NStack: p.nstack, N: p.n}, nil
}

// GeneralForward writes the transform of input into dst.
func (p *Plan[T]) GeneralForward(dst, twiddle, input []T) error {
	d, err := p.dims(OpGeneralForward, "input", len(input))
	if err != nil {
		return err
	}

	err = checkBuffers(OpGeneralForward,
		bufferArg{"dst", len(dst), d.DataLen()},
		bufferArg{"twiddle", len(twiddle), shapeLen(d.GeneralTwiddleShape())})
	if err == nil {
		err = checkDisjoint(OpGeneralForward,
			[]planBuf[T]{{"dst", dst}},
			[]planBuf[T]{{"twiddle", twiddle}, {"input", input}})
	}

	if err != nil {
		return err
	}

	return p.engine.GeneralForward(dst, twiddle, input, d, p.dir)
}

// GeneralForwardBackward writes the twiddle gradient summed over the batch
// into dTwiddle and the input gradient into dInput.
func (p *Plan[T]) GeneralForwardBackward(dTwiddle, dInput, twiddle, input, grad []T) error {
	if err := checkLength(OpGeneralForwardBackward, p.n); err != nil {
		return err
	}

	d, err := p.dims(OpGeneralForwardBackward, "input", len(input))
	if err != nil {
		return err
	}

	tw := shapeLen(d.GeneralTwiddleShape())

	err = checkBuffers(OpGeneralForwardBackward,
		bufferArg{"dTwiddle", len(dTwiddle), tw},
		bufferArg{"dInput", len(dInput), d.DataLen()},
		bufferArg{"twiddle", len(twiddle), tw},
		bufferArg{"grad", len(grad), d.DataLen()})
	if err == nil {
		err = checkDisjoint(OpGeneralForwardBackward,
			[]planBuf[T]{{"dTwiddle", dTwiddle}, {"dInput", dInput}},
			[]planBuf[T]{{"twiddle", twiddle}, {"input", input}, {"grad", grad}})
	}

	if err != nil {
		return err
	}

	return p.engine.GeneralForwardBackward(dTwiddle, dInput, twiddle, input, grad, d, p.dir)
}

// OrthogonalForward writes the rotated input into dst.
func (p *Plan[T]) OrthogonalForward(dst, cos, sin, input []T) error {
	d, err := p.dims(OpOrthogonalForward, "input", len(input))
	if err != nil {
		return err
	}

	tw := shapeLen(d.OrthogonalTwiddleShape())

	err = checkBuffers(OpOrthogonalForward,
		bufferArg{"dst", len(dst), d.DataLen()},
		bufferArg{"cos", len(cos), tw},
		bufferArg{"sin", len(sin), tw})
	if err == nil {
		err = checkDisjoint(OpOrthogonalForward,
			[]planBuf[T]{{"dst", dst}},
			[]planBuf[T]{{"cos", cos}, {"sin", sin}, {"input", input}})
	}

	if err != nil {
		return err
	}

	return p.engine.OrthogonalForward(dst, cos, sin, input, d, p.dir)
}

// OrthogonalBackward reconstructs the original input from output into input
// and writes the gradients with respect to cos, sin and the input.
func (p *Plan[T]) OrthogonalBackward(dCos, dSin, dInput, input, cos, sin, output, grad []T) error {
	d, err := p.dims(OpOrthogonalBackward, "output", len(output))
	if err != nil {
		return err
	}

	tw := shapeLen(d.OrthogonalTwiddleShape())

	err = checkBuffers(OpOrthogonalBackward,
		bufferArg{"dCos", len(dCos), tw},
		bufferArg{"dSin", len(dSin), tw},
		bufferArg{"dInput", len(dInput), d.DataLen()},
		bufferArg{"input", len(input), d.DataLen()},
		bufferArg{"cos", len(cos), tw},
		bufferArg{"sin", len(sin), tw},
		bufferArg{"grad", len(grad), d.DataLen()})
	if err == nil {
		err = checkDisjoint(OpOrthogonalBackward,
			[]planBuf[T]{{"dCos", dCos}, {"dSin", dSin}, {"dInput", dInput}, {"input", input}},
			[]planBuf[T]{{"cos", cos}, {"sin", sin}, {"output", output}, {"grad", grad}})
	}

	if err != nil {
		return err
	}

	return p.engine.OrthogonalBackward(dCos, dSin, dInput, input, cos, sin, output, grad, d, p.dir)
}
