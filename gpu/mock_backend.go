package gpu

import (
	"fmt"
	"slices"

	"github.com/cwbudde/butterfly"
	"github.com/cwbudde/butterfly/internal/kernels"
	"github.com/cwbudde/butterfly/internal/schedule"
)

// MockBackend is a CPU-backed accelerator backend for development and tests.
// It satisfies the backend interfaces but executes on the CPU, one sample
// after another.
type MockBackend struct {
	device     DeviceInfo
	precisions []Precision
}

// NewMockBackend returns a mock backend with a single fake device. Kernels
// are offered for the given precisions, or for both when none are given.
func NewMockBackend(precisions ...Precision) *MockBackend {
	if len(precisions) == 0 {
		precisions = []Precision{PrecisionFloat32, PrecisionFloat64}
	}

	return &MockBackend{
		device: DeviceInfo{
			Name:   "MockGPU",
			Vendor: "butterfly",
			Driver: "mock",
			Kind:   "cpu",
		},
		precisions: precisions,
	}
}

func (b *MockBackend) Info() BackendInfo {
	return BackendInfo{
		Name:        "mock",
		Version:     "0.1",
		Description: "CPU-backed mock accelerator backend",
	}
}

func (b *MockBackend) Available() bool {
	return true
}

func (b *MockBackend) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{b.device}, nil
}

func (b *MockBackend) NewContext(deviceIndex int) (Context, error) {
	if deviceIndex != 0 {
		return nil, fmt.Errorf("mock backend: device index %d out of range", deviceIndex)
	}

	return &mockContext{device: b.device, precisions: b.precisions}, nil
}

// RegisterMockBackend registers the mock backend as the active backend.
func RegisterMockBackend() {
	RegisterBackend(NewMockBackend())
}

type mockContext struct {
	device     DeviceInfo
	precisions []Precision
}

func (c *mockContext) Device() DeviceInfo {
	return c.device
}

func (c *mockContext) NewBuffer(elemCount int, precision Precision) (Buffer, error) {
	if elemCount < 0 {
		return nil, ErrInvalidLength
	}

	switch precision {
	case PrecisionFloat32:
		return &mockBuffer[float32]{data: make([]float32, elemCount)}, nil
	case PrecisionFloat64:
		return &mockBuffer[float64]{data: make([]float64, elemCount)}, nil
	default:
		return nil, ErrUnsupportedPrecision
	}
}

func (c *mockContext) Kernels(precision Precision) (Kernels, error) {
	if !slices.Contains(c.precisions, precision) {
		return nil, ErrUnsupportedPrecision
	}

	switch precision {
	case PrecisionFloat32:
		return mockKernels[float32]{}, nil
	case PrecisionFloat64:
		return mockKernels[float64]{}, nil
	default:
		return nil, ErrUnsupportedPrecision
	}
}

func (c *mockContext) Close() error {
	return nil
}

type mockBuffer[T Float] struct {
	data   []T
	closed bool
}

func (b *mockBuffer[T]) Len() int {
	return len(b.data)
}

func (b *mockBuffer[T]) Precision() Precision {
	var zero T
	if _, ok := any(zero).(float64); ok {
		return PrecisionFloat64
	}

	return PrecisionFloat32
}

func (b *mockBuffer[T]) Upload(src any) error {
	if b.closed {
		return ErrClosed
	}

	data, ok := src.([]T)
	if !ok {
		return ErrTypeMismatch
	}

	if len(data) < len(b.data) {
		return ErrLengthMismatch
	}

	copy(b.data, data)

	return nil
}

func (b *mockBuffer[T]) Download(dst any) error {
	if b.closed {
		return ErrClosed
	}

	data, ok := dst.([]T)
	if !ok {
		return ErrTypeMismatch
	}

	if len(data) < len(b.data) {
		return ErrLengthMismatch
	}

	copy(data, b.data)

	return nil
}

func (b *mockBuffer[T]) Close() error {
	b.data = nil
	b.closed = true

	return nil
}

// mockKernels runs the shared CPU kernels on mock buffers.
type mockKernels[T Float] struct{}

func (mockKernels[T]) GeneralForward(out, twiddle, input Buffer, d butterfly.Dims, dir butterfly.Direction) error {
	bufs, err := views[T](out, twiddle, input)
	if err != nil {
		return err
	}

	o, tw, in := bufs[0], bufs[1], bufs[2]

	sched, l, err := setup(d, dir)
	if err != nil {
		return err
	}

	copy(o, in)

	for i := range l.Samples() {
		kernels.GeneralForward(kernels.Sample(o, l, i), tw, l, l.Stack(i), sched)
	}

	return nil
}

func (mockKernels[T]) GeneralForwardBackward(dTwiddle, dInput, twiddle, input, grad Buffer, d butterfly.Dims, dir butterfly.Direction) error {
	bufs, err := views[T](dTwiddle, dInput, twiddle, input, grad)
	if err != nil {
		return err
	}

	dtw, g, tw, in, gr := bufs[0], bufs[1], bufs[2], bufs[3], bufs[4]

	sched, l, err := setup(d, dir)
	if err != nil {
		return err
	}

	clear(dtw)
	copy(g, gr)

	saved := make([]T, l.SavedLen())
	for i := range l.Samples() {
		kernels.GeneralForwardBackward(kernels.Sample(in, l, i), kernels.Sample(g, l, i),
			tw, dtw, saved, l, l.Stack(i), sched)
	}

	return nil
}

func (mockKernels[T]) OrthogonalForward(out, cos, sin, input Buffer, d butterfly.Dims, dir butterfly.Direction) error {
	bufs, err := views[T](out, cos, sin, input)
	if err != nil {
		return err
	}

	o, c, s, in := bufs[0], bufs[1], bufs[2], bufs[3]

	sched, l, err := setup(d, dir)
	if err != nil {
		return err
	}

	copy(o, in)

	for i := range l.Samples() {
		kernels.OrthoForward(kernels.Sample(o, l, i), c, s, l, l.Stack(i), sched)
	}

	return nil
}

func (mockKernels[T]) OrthogonalBackward(dCos, dSin, dInput, input, cos, sin, output, grad Buffer, d butterfly.Dims, dir butterfly.Direction) error {
	bufs, err := views[T](dCos, dSin, dInput, input, cos, sin, output, grad)
	if err != nil {
		return err
	}

	dc, ds, g, y, c, s, out, gr := bufs[0], bufs[1], bufs[2], bufs[3], bufs[4], bufs[5], bufs[6], bufs[7]

	sched, l, err := setup(d, dir)
	if err != nil {
		return err
	}

	clear(dc)
	clear(ds)
	copy(y, out)
	copy(g, gr)

	for i := range l.Samples() {
		kernels.OrthoBackward(kernels.Sample(y, l, i), kernels.Sample(g, l, i), c, s, dc, ds, l, l.Stack(i), sched)
	}

	return nil
}

func (mockKernels[T]) Close() error {
	return nil
}

func views[T Float](bufs ...Buffer) ([][]T, error) {
	out := make([][]T, len(bufs))

	for i, b := range bufs {
		mb, ok := b.(*mockBuffer[T])
		if !ok {
			return nil, fmt.Errorf("%w: buffer %d is %T", ErrTypeMismatch, i, b)
		}

		if mb.closed {
			return nil, ErrClosed
		}

		out[i] = mb.data
	}

	return out, nil
}

func setup(d butterfly.Dims, dir butterfly.Direction) (*schedule.Schedule, kernels.Layout, error) {
	sched, err := schedule.New(d.N, dir)
	if err != nil {
		return nil, kernels.Layout{}, err
	}

	return sched, kernels.NewLayout(d.Batch, d.NStack, d.N), nil
}
