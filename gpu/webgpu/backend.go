package webgpu

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/cwbudde/butterfly/gpu"
)

// Backend runs the butterfly kernels as WebGPU compute shaders. WGSL has no
// portable 64-bit floats, so only float32 is supported.
type Backend struct{}

var _ gpu.Backend = Backend{}

// Register registers the WebGPU backend as the active accelerator backend.
func Register() {
	gpu.RegisterBackend(Backend{})
}

func (Backend) Info() gpu.BackendInfo {
	return gpu.BackendInfo{
		Name:        "webgpu",
		Version:     "0.1",
		Description: "WebGPU compute backend (float32)",
	}
}

// Available reports whether an adapter and device could be acquired.
func (Backend) Available() bool {
	_, err := getDevice()
	return err == nil
}

func (Backend) Devices() ([]gpu.DeviceInfo, error) {
	d, err := getDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", gpu.ErrBackendUnavailable, err)
	}

	return []gpu.DeviceInfo{d.deviceInfo()}, nil
}

func (Backend) NewContext(deviceIndex int) (gpu.Context, error) {
	if deviceIndex != 0 {
		return nil, fmt.Errorf("webgpu backend: device index %d out of range", deviceIndex)
	}

	d, err := getDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", gpu.ErrBackendUnavailable, err)
	}

	return &deviceContext{dev: d}, nil
}

func (d *device) deviceInfo() gpu.DeviceInfo {
	return gpu.DeviceInfo{
		Name:   d.info.name,
		Vendor: d.info.vendor,
		Driver: d.info.driver,
		Kind:   d.info.backend,
	}
}

// deviceContext is a view of the shared device. Closing it leaves the device
// open for other contexts.
type deviceContext struct {
	dev *device
}

func (c *deviceContext) Device() gpu.DeviceInfo {
	return c.dev.deviceInfo()
}

func (c *deviceContext) NewBuffer(elemCount int, precision gpu.Precision) (gpu.Buffer, error) {
	if elemCount < 0 {
		return nil, gpu.ErrInvalidLength
	}

	if precision != gpu.PrecisionFloat32 {
		return nil, gpu.ErrUnsupportedPrecision
	}

	buf, err := c.dev.newStorage("butterfly_buffer", elemCount)
	if err != nil {
		return nil, err
	}

	return &buffer{dev: c.dev, buf: buf, n: elemCount}, nil
}

func (c *deviceContext) Kernels(precision gpu.Precision) (gpu.Kernels, error) {
	if precision != gpu.PrecisionFloat32 {
		return nil, gpu.ErrUnsupportedPrecision
	}

	return compileKernels(c.dev)
}

func (c *deviceContext) Close() error {
	return nil
}

// newStorage creates a storage buffer of n floats. Zero-length buffers are
// rounded up to one element since WebGPU rejects empty bindings.
func (d *device) newStorage(label string, n int) (*wgpu.Buffer, error) {
	size := uint64(max(n, 1) * 4)
	if err := checkBindingSize(size, d.maxBindingSize); err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}

	return buf, nil
}

// checkBindingSize rejects buffers larger than the device's storage binding
// limit. A zero limit is treated as unknown.
func checkBindingSize(size, limit uint64) error {
	if limit > 0 && size > limit {
		return fmt.Errorf("%w: %d bytes exceeds the storage binding limit of %d",
			gpu.ErrInvalidLength, size, limit)
	}

	return nil
}

type buffer struct {
	dev *device
	buf *wgpu.Buffer
	n   int
}

func (b *buffer) Len() int {
	return b.n
}

func (b *buffer) Precision() gpu.Precision {
	return gpu.PrecisionFloat32
}

func (b *buffer) Upload(src any) error {
	if b.buf == nil {
		return gpu.ErrClosed
	}

	data, ok := src.([]float32)
	if !ok {
		return gpu.ErrTypeMismatch
	}

	if len(data) < b.n {
		return gpu.ErrLengthMismatch
	}

	if b.n > 0 {
		b.dev.queue.WriteBuffer(b.buf, 0, wgpu.ToBytes(data[:b.n]))
	}

	return nil
}

func (b *buffer) Download(dst any) error {
	if b.buf == nil {
		return gpu.ErrClosed
	}

	data, ok := dst.([]float32)
	if !ok {
		return gpu.ErrTypeMismatch
	}

	if len(data) < b.n {
		return gpu.ErrLengthMismatch
	}

	if b.n == 0 {
		return nil
	}

	return b.dev.read(b.buf, data[:b.n])
}

func (b *buffer) Close() error {
	if b.buf != nil {
		b.buf.Destroy()
		b.buf.Release()
		b.buf = nil
	}

	return nil
}
