package webgpu

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/openfluke/webgpu/wgpu"
)

// Debug enables diagnostic logging of device setup and dispatches.
var Debug bool

// Log prints a diagnostic line when Debug is set.
func Log(format string, args ...any) {
	if !Debug {
		return
	}

	log.Printf("butterfly/webgpu: "+format, args...)
}

// device holds the single WebGPU device shared by every context.
type device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	info gpuInfo

	maxWorkgroups  uint64
	maxBindingSize uint64
}

type gpuInfo struct {
	name    string
	vendor  string
	driver  string
	backend string
}

var (
	deviceOnce sync.Once
	shared     *device
	deviceErr  error
)

var (
	errNoAdapter     = errors.New("no WebGPU adapter")
	errDeviceStalled = errors.New("device did not finish submitted work")
)

// getDevice returns the shared device, initializing it on first use.
func getDevice() (*device, error) {
	deviceOnce.Do(func() {
		shared, deviceErr = openDevice()
		if deviceErr != nil {
			Log("device unavailable: %v", deviceErr)
		}
	})

	return shared, deviceErr
}

func openDevice() (*device, error) {
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, errors.New("failed to create WebGPU instance")
	}

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil || adapter == nil {
		Log("high performance adapter failed: %v, trying default", err)

		adapter, err = instance.RequestAdapter(nil)
	}

	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("%w: %w", errNoAdapter, err)
	}

	if adapter == nil {
		instance.Release()
		return nil, errNoAdapter
	}

	info := adapter.GetInfo()
	supported := adapter.GetLimits()

	// Device defaults are below most adapters' storage binding limits.
	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "butterfly",
		RequiredLimits: &wgpu.RequiredLimits{Limits: supported.Limits},
	})
	if err != nil {
		Log("device with adapter limits failed: %v, trying defaults", err)

		dev, err = adapter.RequestDevice(nil)
	}

	if err != nil {
		adapter.Release()
		instance.Release()

		return nil, fmt.Errorf("request device: %w", err)
	}

	limits := dev.GetLimits()

	d := &device{
		instance: instance,
		adapter:  adapter,
		device:   dev,
		queue:    dev.GetQueue(),
		info: gpuInfo{
			name:    strings.TrimSpace(info.Name),
			vendor:  strings.TrimSpace(info.VendorName),
			driver:  strings.TrimSpace(info.DriverDescription),
			backend: fmt.Sprint(info.BackendType),
		},
		maxWorkgroups:  uint64(limits.Limits.MaxComputeWorkgroupsPerDimension),
		maxBindingSize: uint64(limits.Limits.MaxStorageBufferBindingSize),
	}

	if d.maxWorkgroups == 0 {
		d.maxWorkgroups = 65535
	}

	Log("using adapter %s (%s)", d.info.name, d.info.vendor)

	return d, nil
}

// grid splits a thread count into 256-wide workgroups over at most two
// dimensions.
func (d *device) grid(threads int) (x, y uint32) {
	groups := uint64((threads + workgroupSize - 1) / workgroupSize)
	if groups == 0 {
		return 1, 1
	}

	if groups <= d.maxWorkgroups {
		return uint32(groups), 1
	}

	rows := (groups + d.maxWorkgroups - 1) / d.maxWorkgroups

	return uint32(d.maxWorkgroups), uint32(rows)
}

// wait blocks until submitted work has finished or maxIter polls have
// passed without the queue draining.
func (d *device) wait(maxIter int) error {
	return pollUntil(func() bool { return d.device.Poll(true, nil) }, maxIter)
}

func pollUntil(done func() bool, maxIter int) error {
	for range maxIter {
		if done() {
			return nil
		}

		time.Sleep(100 * time.Microsecond)
	}

	return fmt.Errorf("%w after %d polls", errDeviceStalled, maxIter)
}

// read copies the first len(dst) floats of buf into dst through a staging
// buffer.
func (d *device) read(buf *wgpu.Buffer, dst []float32) error {
	size := uint64(len(dst) * 4)

	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "butterfly_read_staging",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}

	defer staging.Release()
	defer staging.Destroy()

	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}

	enc.CopyBufferToBuffer(buf, 0, staging, 0, size)

	cmd, err := enc.Finish(nil)
	enc.Release()

	if err != nil {
		return fmt.Errorf("finish command: %w", err)
	}

	d.queue.Submit(cmd)
	cmd.Release()

	done := make(chan struct{})

	var mapErr error

	err = staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("map failed: %v", status)
		}

		close(done)
	})
	if err != nil {
		return fmt.Errorf("map staging buffer: %w", err)
	}

	timeout := time.After(readTimeout)

	for {
		d.device.Poll(false, nil)

		select {
		case <-done:
			if mapErr != nil {
				return mapErr
			}

			copy(dst, wgpu.FromBytes[float32](staging.GetMappedRange(0, uint(size))))
			staging.Unmap()

			return nil
		case <-timeout:
			return fmt.Errorf("read timed out after %s", readTimeout)
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

const (
	workgroupSize = 256
	readTimeout   = 5 * time.Second
)
