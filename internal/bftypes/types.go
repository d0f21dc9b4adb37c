package bftypes

// Float is the element constraint for every numeric buffer the engines touch.
type Float interface {
	float32 | float64
}

// Direction selects the order in which stages are applied.
type Direction uint8

const (
	// IncreasingStride applies strides 1, 2, ..., n/2.
	IncreasingStride Direction = iota
	// DecreasingStride applies strides n/2, ..., 2, 1.
	DecreasingStride
)

// Increasing reports whether d is IncreasingStride.
func (d Direction) Increasing() bool {
	return d == IncreasingStride
}

func (d Direction) String() string {
	switch d {
	case IncreasingStride:
		return "increasing"
	case DecreasingStride:
		return "decreasing"
	default:
		return "unknown"
	}
}

// Target identifies where a buffer lives and which engine may execute on it.
type Target uint8

const (
	TargetCPU Target = iota
	TargetAccelerator
)

func (t Target) String() string {
	switch t {
	case TargetCPU:
		return "cpu"
	case TargetAccelerator:
		return "accelerator"
	default:
		return "unknown"
	}
}

// Precision identifies the element type in wisdom keys and accelerator buffers.
type Precision uint8

const (
	PrecisionFloat32 Precision = iota
	PrecisionFloat64
)

// PrecisionOf reports the precision of T.
func PrecisionOf[T Float]() Precision {
	var zero T
	switch any(zero).(type) {
	case float64:
		return PrecisionFloat64
	default:
		return PrecisionFloat32
	}
}

// Op identifies one of the four transform operations.
type Op uint8

const (
	OpGeneralForward Op = iota
	OpGeneralForwardBackward
	OpOrthogonalForward
	OpOrthogonalBackward
)

func (o Op) String() string {
	switch o {
	case OpGeneralForward:
		return "general-forward"
	case OpGeneralForwardBackward:
		return "general-forward-backward"
	case OpOrthogonalForward:
		return "orthogonal-forward"
	case OpOrthogonalBackward:
		return "orthogonal-backward"
	default:
		return "unknown"
	}
}

// ParseOp is the inverse of Op.String.
func ParseOp(name string) (Op, bool) {
	for o := OpGeneralForward; o <= OpOrthogonalBackward; o++ {
		if o.String() == name {
			return o, true
		}
	}

	return 0, false
}

// Ops lists every operation in declaration order.
func Ops() []Op {
	return []Op{OpGeneralForward, OpGeneralForwardBackward, OpOrthogonalForward, OpOrthogonalBackward}
}
