package gpu

import "errors"

var (
	// ErrNoBackend is returned when no backend is registered.
	ErrNoBackend = errors.New("butterfly/gpu: no backend registered")

	// ErrBackendUnavailable is returned when the backend is registered but not available
	// on the current system (e.g., no adapter, driver missing).
	ErrBackendUnavailable = errors.New("butterfly/gpu: backend unavailable")

	// ErrUnsupportedPrecision is returned by backends that cannot compute in
	// the requested precision.
	ErrUnsupportedPrecision = errors.New("butterfly/gpu: unsupported precision")

	// ErrInvalidLength is returned for negative buffer sizes.
	ErrInvalidLength = errors.New("butterfly/gpu: invalid length")

	// ErrTypeMismatch is returned when a host slice or buffer does not match
	// the expected precision or backend.
	ErrTypeMismatch = errors.New("butterfly/gpu: type mismatch")

	// ErrLengthMismatch is returned when host slices are shorter than the buffer.
	ErrLengthMismatch = errors.New("butterfly/gpu: length mismatch")

	// ErrClosed is returned by engines and buffers used after Close.
	ErrClosed = errors.New("butterfly/gpu: closed")
)
