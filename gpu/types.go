package gpu

import (
	"github.com/cwbudde/butterfly"
	"github.com/cwbudde/butterfly/internal/bftypes"
)

// Float is the element constraint shared with package butterfly.
type Float = butterfly.Float

// Precision describes the element type of device buffers and kernels.
type Precision = bftypes.Precision

const (
	PrecisionFloat32 = bftypes.PrecisionFloat32
	PrecisionFloat64 = bftypes.PrecisionFloat64
)

// DeviceInfo describes an accelerator device.
type DeviceInfo struct {
	Name     string
	Vendor   string
	Driver   string
	MemoryMB int
	Kind     string
}

// BackendInfo describes a backend implementation.
type BackendInfo struct {
	Name        string
	Version     string
	Description string
}

// Options controls engine creation.
type Options struct {
	// DeviceIndex selects which device to use (0 = default).
	DeviceIndex int
}
