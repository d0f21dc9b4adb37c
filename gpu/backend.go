package gpu

import (
	"sync"

	"github.com/cwbudde/butterfly"
)

// Backend is implemented by accelerator backends (WebGPU, the CPU-backed
// mock). It is responsible for device discovery and context creation.
type Backend interface {
	Info() BackendInfo
	Available() bool
	Devices() ([]DeviceInfo, error)
	NewContext(deviceIndex int) (Context, error)
}

// Context represents a backend-specific context tied to a device.
type Context interface {
	Device() DeviceInfo
	// NewBuffer allocates a device buffer of elemCount real elements.
	NewBuffer(elemCount int, precision Precision) (Buffer, error)
	// Kernels returns the compiled operations for precision. Backends that
	// cannot compute in precision return ErrUnsupportedPrecision.
	Kernels(precision Precision) (Kernels, error)
	Close() error
}

// Buffer is a device buffer.
type Buffer interface {
	Len() int
	Precision() Precision
	// Upload copies from host to device. src is a []float32 or []float64
	// matching the buffer precision.
	Upload(src any) error
	// Download copies from device to host.
	Download(dst any) error
	Close() error
}

// Kernels executes the four operations on device buffers created by the same
// context. Buffer lengths have been validated by the caller. Output buffers
// are fully overwritten; inputs are left untouched.
type Kernels interface {
	GeneralForward(out, twiddle, input Buffer, d butterfly.Dims, dir butterfly.Direction) error
	GeneralForwardBackward(dTwiddle, dInput, twiddle, input, grad Buffer, d butterfly.Dims, dir butterfly.Direction) error
	OrthogonalForward(out, cos, sin, input Buffer, d butterfly.Dims, dir butterfly.Direction) error
	OrthogonalBackward(dCos, dSin, dInput, input, cos, sin, output, grad Buffer, d butterfly.Dims, dir butterfly.Direction) error
	Close() error
}

var (
	backendMu sync.RWMutex
	backend   Backend
)

// RegisterBackend registers an accelerator backend. Passing nil clears the backend.
func RegisterBackend(b Backend) {
	backendMu.Lock()
	backend = b
	backendMu.Unlock()
}

// CurrentBackendInfo reports the currently registered backend, if any.
func CurrentBackendInfo() (BackendInfo, bool) {
	backendMu.RLock()
	b := backend
	backendMu.RUnlock()

	if b == nil {
		return BackendInfo{}, false
	}

	return b.Info(), true
}

func getBackend() Backend {
	backendMu.RLock()
	b := backend
	backendMu.RUnlock()

	return b
}
