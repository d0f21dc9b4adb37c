package butterfly

import (
	"github.com/cwbudde/butterfly/internal/bftypes"
	"github.com/cwbudde/butterfly/internal/schedule"
)

// Float is the element constraint for tensors: float32 or float64.
// The canonical definition is in internal/bftypes.
type Float = bftypes.Float

// Direction selects the order in which stages are applied.
type Direction = bftypes.Direction

const (
	// IncreasingStride applies strides 1, 2, ..., n/2.
	IncreasingStride = bftypes.IncreasingStride
	// DecreasingStride applies strides n/2, ..., 2, 1.
	DecreasingStride = bftypes.DecreasingStride
)

// Target identifies where a tensor lives.
type Target = bftypes.Target

const (
	TargetCPU         = bftypes.TargetCPU
	TargetAccelerator = bftypes.TargetAccelerator
)

// Strategy selects how the CPU engine partitions work across goroutines.
type Strategy = bftypes.Strategy

const (
	StrategyAuto       = bftypes.StrategyAuto
	StrategySequential = bftypes.StrategySequential
	StrategySamples    = bftypes.StrategySamples
	StrategyPairs      = bftypes.StrategyPairs
)

// Op names one of the four operations. It keys strategy wisdom.
type Op = bftypes.Op

const (
	OpGeneralForward         = bftypes.OpGeneralForward
	OpGeneralForwardBackward = bftypes.OpGeneralForwardBackward
	OpOrthogonalForward      = bftypes.OpOrthogonalForward
	OpOrthogonalBackward     = bftypes.OpOrthogonalBackward
)

const (
	// MaxLength is the largest n accepted by the forward operations and by
	// OrthogonalBackward.
	MaxLength = schedule.MaxLength

	// MaxFusedLength is the largest n accepted by GeneralForwardBackward.
	MaxFusedLength = schedule.MaxFusedLength
)

// Dims are the dimensions of one call: Batch vectors of NStack independent
// length-N transforms.
type Dims struct {
	Batch  int
	NStack int
	N      int
}

// Samples is the number of length-N vectors, Batch*NStack.
func (d Dims) Samples() int {
	return d.Batch * d.NStack
}

// DataLen is the element count of an input, output or gradient buffer.
func (d Dims) DataLen() int {
	return d.Batch * d.NStack * d.N
}

// LogN is log2(N).
func (d Dims) LogN() int {
	return schedule.Log2(d.N)
}

// GeneralTwiddleShape is the shape (NStack, LogN, 2, N) of a general twiddle.
func (d Dims) GeneralTwiddleShape() []int {
	return []int{d.NStack, d.LogN(), 2, d.N}
}

// OrthogonalTwiddleShape is the shape (NStack, LogN, N/2) of a cos or sin tensor.
func (d Dims) OrthogonalTwiddleShape() []int {
	return []int{d.NStack, d.LogN(), d.N / 2}
}

// DataShape is the shape (Batch, NStack, N) of an input, output or gradient.
func (d Dims) DataShape() []int {
	return []int{d.Batch, d.NStack, d.N}
}

// OpCeiling returns the largest n accepted by op.
func OpCeiling(op Op) int {
	if op == OpGeneralForwardBackward {
		return MaxFusedLength
	}

	return MaxLength
}
