package butterfly

import (
	"fmt"
	"slices"
	"unsafe"

	"github.com/cwbudde/butterfly/internal/schedule"
)

// operand is one tensor argument together with the shape the call requires
// of it.
type operand[T Float] struct {
	name  string
	t     *Tensor[T]
	shape func(Dims) []int
}

func dataOperand[T Float](name string, t *Tensor[T]) operand[T] {
	return operand[T]{name: name, t: t, shape: Dims.DataShape}
}

func generalOperand[T Float](name string, t *Tensor[T]) operand[T] {
	return operand[T]{name: name, t: t, shape: Dims.GeneralTwiddleShape}
}

func orthogonalOperand[T Float](name string, t *Tensor[T]) operand[T] {
	return operand[T]{name: name, t: t, shape: Dims.OrthogonalTwiddleShape}
}

// validate checks every precondition of op before anything is allocated.
// The dimensions are read from lead, a (batch, nstack, n) tensor.
func validate[T Float](op Op, dir Direction, lead operand[T], params ...operand[T]) (Dims, Target, error) {
	all := append([]operand[T]{lead}, params...)

	for _, o := range all {
		if o.t == nil {
			return Dims{}, 0, fmt.Errorf("%w: %s: %s", ErrNilTensor, op, o.name)
		}
	}

	for _, o := range all {
		if want := len(o.shape(Dims{N: 2})); o.t.Rank() != want {
			return Dims{}, 0, fmt.Errorf("%w: %s: %s has rank %d, want %d", ErrRankMismatch, op, o.name, o.t.Rank(), want)
		}
	}

	d := Dims{Batch: lead.t.Shape[0], NStack: lead.t.Shape[1], N: lead.t.Shape[2]}
	if d.Batch < 0 || d.NStack < 1 {
		return Dims{}, 0, fmt.Errorf("%w: %s: %s shape %v", ErrShapeMismatch, op, lead.name, lead.t.Shape)
	}

	if err := checkLength(op, d.N); err != nil {
		return Dims{}, 0, err
	}

	if err := checkDirection(op, dir); err != nil {
		return Dims{}, 0, err
	}

	target := lead.t.Target
	for _, o := range params {
		if o.t.Target != target {
			return Dims{}, 0, fmt.Errorf("%w: %s: %s is on %s, %s is on %s",
				ErrDeviceMismatch, op, o.name, o.t.Target, lead.name, target)
		}
	}

	for _, o := range all {
		if want := o.shape(d); !slices.Equal(o.t.Shape, want) {
			return Dims{}, 0, fmt.Errorf("%w: %s: %s has shape %v, want %v", ErrShapeMismatch, op, o.name, o.t.Shape, want)
		}

		if len(o.t.Data) != o.t.Len() {
			return Dims{}, 0, fmt.Errorf("%w: %s: %s has %d elements, shape %v needs %d",
				ErrShapeMismatch, op, o.name, len(o.t.Data), o.t.Shape, o.t.Len())
		}
	}

	return d, target, nil
}

func checkDirection(op Op, dir Direction) error {
	if dir != IncreasingStride && dir != DecreasingStride {
		return fmt.Errorf("%w: %s: %d", ErrInvalidDirection, op, dir)
	}

	return nil
}

// checkLength rejects n that is not a power of two or exceeds the ceiling of op.
func checkLength(op Op, n int) error {
	if n < 2 || !schedule.IsPowerOf2(n) {
		return fmt.Errorf("%w: %s: n=%d", ErrInvalidLength, op, n)
	}

	if limit := OpCeiling(op); n > limit {
		return fmt.Errorf("%w: %s supports n <= %d, got %d", ErrUnsupportedSize, op, limit, n)
	}

	return nil
}

// checkBuffers validates flat buffer lengths for Plan methods.
func checkBuffers(op Op, bufs ...bufferArg) error {
	for _, b := range bufs {
		if b.got != b.want {
			return fmt.Errorf("%w: %s: %s has %d elements, want %d", ErrShapeMismatch, op, b.name, b.got, b.want)
		}
	}

	return nil
}

type bufferArg struct {
	name      string
	got, want int
}

// planBuf is a Plan buffer argument for the overlap check.
type planBuf[T Float] struct {
	name string
	s    []T
}

// checkDisjoint rejects outputs that share memory with another output or with
// an input. The forward operations may write dst over input itself.
func checkDisjoint[T Float](op Op, outs, ins []planBuf[T]) error {
	inPlace := op == OpGeneralForward || op == OpOrthogonalForward

	for i, o := range outs {
		for _, other := range outs[i+1:] {
			if overlaps(o.s, other.s) {
				return fmt.Errorf("%w: %s: %s overlaps %s", ErrShapeMismatch, op, o.name, other.name)
			}
		}

		for _, in := range ins {
			if inPlace && sameSlice(o.s, in.s) {
				continue
			}

			if overlaps(o.s, in.s) {
				return fmt.Errorf("%w: %s: %s overlaps %s", ErrShapeMismatch, op, o.name, in.name)
			}
		}
	}

	return nil
}

func overlaps[T Float](a, b []T) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}

	size := unsafe.Sizeof(a[0])
	a0 := uintptr(unsafe.Pointer(unsafe.SliceData(a)))
	b0 := uintptr(unsafe.Pointer(unsafe.SliceData(b)))

	return a0 < b0+uintptr(len(b))*size && b0 < a0+uintptr(len(a))*size
}

func sameSlice[T Float](a, b []T) bool {
	return len(a) == len(b) && unsafe.SliceData(a) == unsafe.SliceData(b)
}
