package gpu

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cwbudde/butterfly"
	"github.com/cwbudde/butterfly/internal/bftypes"
)

// Engine runs the butterfly operations on a backend context. It implements
// butterfly.Engine[T].
//
// Device work is serialized per engine; the engine is safe for concurrent
// use regardless of whether the backend is thread-safe.
type Engine[T Float] struct {
	mu        sync.Mutex
	info      BackendInfo
	precision Precision
	ctx       Context
	kernels   Kernels
	closed    bool
}

var _ butterfly.Engine[float32] = (*Engine[float32])(nil)

// NewEngine creates an engine using the registered backend.
func NewEngine[T Float](opts Options) (*Engine[T], error) {
	backend := getBackend()
	if backend == nil {
		return nil, ErrNoBackend
	}

	if !backend.Available() {
		return nil, ErrBackendUnavailable
	}

	ctx, err := backend.NewContext(opts.DeviceIndex)
	if err != nil {
		return nil, err
	}

	precision := bftypes.PrecisionOf[T]()

	kernels, err := ctx.Kernels(precision)
	if err != nil {
		_ = ctx.Close()
		return nil, err
	}

	return &Engine[T]{
		info:      backend.Info(),
		precision: precision,
		ctx:       ctx,
		kernels:   kernels,
	}, nil
}

// Name identifies the backend.
func (e *Engine[T]) Name() string {
	return "gpu/" + e.info.Name
}

// Device returns the device the engine executes on.
func (e *Engine[T]) Device() DeviceInfo {
	return e.ctx.Device()
}

// Precision returns the engine precision.
func (e *Engine[T]) Precision() Precision {
	return e.precision
}

func (e *Engine[T]) GeneralForward(dst, twiddle, input []T, d butterfly.Dims, dir butterfly.Direction) error {
	if d.Samples() == 0 {
		return nil
	}

	return e.run(func(c *call[T]) error {
		tw := c.upload(twiddle)
		in := c.upload(input)
		out := c.alloc(len(dst))

		if c.err != nil {
			return c.err
		}

		if err := e.kernels.GeneralForward(out, tw, in, d, dir); err != nil {
			return err
		}

		c.download(out, dst)

		return nil
	})
}

func (e *Engine[T]) GeneralForwardBackward(dTwiddle, dInput, twiddle, input, grad []T, d butterfly.Dims, dir butterfly.Direction) error {
	if d.Samples() == 0 {
		clear(dTwiddle)
		return nil
	}

	return e.run(func(c *call[T]) error {
		tw := c.upload(twiddle)
		in := c.upload(input)
		g := c.upload(grad)
		dTw := c.alloc(len(dTwiddle))
		dIn := c.alloc(len(dInput))

		if c.err != nil {
			return c.err
		}

		if err := e.kernels.GeneralForwardBackward(dTw, dIn, tw, in, g, d, dir); err != nil {
			return err
		}

		c.download(dTw, dTwiddle)
		c.download(dIn, dInput)

		return nil
	})
}

func (e *Engine[T]) OrthogonalForward(dst, cos, sin, input []T, d butterfly.Dims, dir butterfly.Direction) error {
	if d.Samples() == 0 {
		return nil
	}

	return e.run(func(c *call[T]) error {
		cb := c.upload(cos)
		sb := c.upload(sin)
		in := c.upload(input)
		out := c.alloc(len(dst))

		if c.err != nil {
			return c.err
		}

		if err := e.kernels.OrthogonalForward(out, cb, sb, in, d, dir); err != nil {
			return err
		}

		c.download(out, dst)

		return nil
	})
}

func (e *Engine[T]) OrthogonalBackward(dCos, dSin, dInput, input, cos, sin, output, grad []T, d butterfly.Dims, dir butterfly.Direction) error {
	if d.Samples() == 0 {
		clear(dCos)
		clear(dSin)

		return nil
	}

	return e.run(func(c *call[T]) error {
		cb := c.upload(cos)
		sb := c.upload(sin)
		out := c.upload(output)
		g := c.upload(grad)
		dc := c.alloc(len(dCos))
		ds := c.alloc(len(dSin))
		dIn := c.alloc(len(dInput))
		in := c.alloc(len(input))

		if c.err != nil {
			return c.err
		}

		if err := e.kernels.OrthogonalBackward(dc, ds, dIn, in, cb, sb, out, g, d, dir); err != nil {
			return err
		}

		c.download(dc, dCos)
		c.download(ds, dSin)
		c.download(dIn, dInput)
		c.download(in, input)

		return nil
	})
}

// Close releases the kernels and the device context.
func (e *Engine[T]) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true

	var firstErr error
	if err := e.kernels.Close(); err != nil {
		firstErr = err
	}

	if err := e.ctx.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

func (e *Engine[T]) run(fn func(c *call[T]) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	c := &call[T]{e: e}
	defer c.close()

	if err := fn(c); err != nil {
		return fmt.Errorf("%s: %w", e.Name(), err)
	}

	if c.err != nil {
		return fmt.Errorf("%s: %w", e.Name(), c.err)
	}

	return nil
}

// call tracks the device buffers of one operation and the first error
// raised while moving data.
type call[T Float] struct {
	e    *Engine[T]
	bufs []Buffer
	err  error
}

func (c *call[T]) alloc(n int) Buffer {
	if c.err != nil {
		return nil
	}

	b, err := c.e.ctx.NewBuffer(n, c.e.precision)
	if err != nil {
		c.err = err
		return nil
	}

	c.bufs = append(c.bufs, b)

	return b
}

func (c *call[T]) upload(src []T) Buffer {
	b := c.alloc(len(src))
	if c.err != nil {
		return nil
	}

	if err := b.Upload(src); err != nil {
		c.err = err
		return nil
	}

	return b
}

func (c *call[T]) download(b Buffer, dst []T) {
	if c.err != nil {
		return
	}

	if err := b.Download(dst); err != nil {
		c.err = err
	}
}

func (c *call[T]) close() {
	for _, b := range c.bufs {
		_ = b.Close()
	}
}

var (
	installMu sync.Mutex
	installed []io.Closer
)

// Install creates engines on the registered backend and registers them with
// package butterfly for TargetAccelerator tensors. float32 is required;
// float64 is installed when the backend supports it and left unregistered
// otherwise. Engines from a previous Install are closed first.
func Install(opts Options) error {
	installMu.Lock()
	defer installMu.Unlock()

	uninstallLocked()

	e32, err := NewEngine[float32](opts)
	if err != nil {
		return err
	}

	butterfly.RegisterAccelerator[float32](e32)
	installed = append(installed, e32)

	e64, err := NewEngine[float64](opts)

	switch {
	case err == nil:
		butterfly.RegisterAccelerator[float64](e64)
		installed = append(installed, e64)
	case errors.Is(err, ErrUnsupportedPrecision):
		// float32 only.
	default:
		uninstallLocked()
		return err
	}

	return nil
}

// Uninstall removes the accelerator engines from package butterfly and
// closes them.
func Uninstall() {
	installMu.Lock()
	defer installMu.Unlock()

	uninstallLocked()
}

func uninstallLocked() {
	butterfly.RegisterAccelerator[float32](nil)
	butterfly.RegisterAccelerator[float64](nil)

	for _, c := range installed {
		_ = c.Close()
	}

	installed = nil
}
