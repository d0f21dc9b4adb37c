package butterfly

import "errors"

// Sentinel errors returned by butterfly operations. Returned errors wrap one
// of these with context, so test with errors.Is.
var (
	// ErrNilTensor is returned when a required tensor or its data is nil.
	ErrNilTensor = errors.New("butterfly: nil tensor")

	// ErrRankMismatch is returned when a tensor has the wrong number of dimensions.
	ErrRankMismatch = errors.New("butterfly: rank mismatch")

	// ErrShapeMismatch is returned when a tensor's dimensions disagree with the
	// (batch, nstack, n) contract, or its data length disagrees with its shape.
	ErrShapeMismatch = errors.New("butterfly: shape mismatch")

	// ErrDeviceMismatch is returned when the tensors of one call do not share
	// an execution target.
	ErrDeviceMismatch = errors.New("butterfly: device mismatch")

	// ErrInvalidLength is returned when n is not a power of two of at least 2.
	ErrInvalidLength = errors.New("butterfly: length must be a power of 2")

	// ErrInvalidDirection is returned for a Direction other than
	// IncreasingStride and DecreasingStride.
	ErrInvalidDirection = errors.New("butterfly: invalid direction")

	// ErrUnsupportedSize is returned when n exceeds the ceiling of the
	// requested operation.
	ErrUnsupportedSize = errors.New("butterfly: unsupported size")

	// ErrUnsupportedTarget is returned when no engine is available for the
	// requested execution target and precision.
	ErrUnsupportedTarget = errors.New("butterfly: unsupported execution target")
)
