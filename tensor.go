package butterfly

import (
	"fmt"
	"math"
	"slices"
)

// Tensor is a flat row-major buffer tagged with a shape and the execution
// target it lives on. Operations never modify their input tensors; returned
// tensors are freshly allocated and owned by the caller.
//
// Accelerator tensors keep their data in host memory; the accelerator engine
// moves it to and from the device within each call.
type Tensor[T Float] struct {
	Data   []T
	Shape  []int
	Target Target
}

// NewTensor wraps data as a CPU tensor of the given shape. It panics if the
// shape does not describe len(data) elements.
func NewTensor[T Float](data []T, shape ...int) *Tensor[T] {
	if n := shapeLen(shape); n != len(data) {
		panic(fmt.Sprintf("butterfly: shape %v describes %d elements, data has %d", shape, n, len(data)))
	}

	return &Tensor[T]{Data: data, Shape: slices.Clone(shape)}
}

// Zeros returns a zero-filled CPU tensor.
func Zeros[T Float](shape ...int) *Tensor[T] {
	return &Tensor[T]{Data: make([]T, shapeLen(shape)), Shape: slices.Clone(shape)}
}

// Rank is the number of dimensions.
func (t *Tensor[T]) Rank() int {
	return len(t.Shape)
}

// Len is the number of elements described by the shape, or -1 if the shape
// has a negative dimension or its product overflows int.
func (t *Tensor[T]) Len() int {
	return shapeLen(t.Shape)
}

// Clone returns a deep copy.
func (t *Tensor[T]) Clone() *Tensor[T] {
	return &Tensor[T]{Data: slices.Clone(t.Data), Shape: slices.Clone(t.Shape), Target: t.Target}
}

// To returns a shallow copy of t tagged with target. The data is shared.
func (t *Tensor[T]) To(target Target) *Tensor[T] {
	return &Tensor[T]{Data: t.Data, Shape: t.Shape, Target: target}
}

func (t *Tensor[T]) String() string {
	return fmt.Sprintf("Tensor%v@%s", t.Shape, t.Target)
}

func shapeLen(shape []int) int {
	n := 1
	for _, d := range shape {
		if d < 0 || (d != 0 && n > math.MaxInt/d) {
			return -1
		}

		n *= d
	}

	return n
}
