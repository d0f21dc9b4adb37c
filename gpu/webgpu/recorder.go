package webgpu

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/cwbudde/butterfly"
)

// params mirrors the Params uniform block of the shaders.
type params struct {
	n, nstack, samples, logN uint32
	logStride                uint32
	srcOff, dstOff           uint32
	width, batch, total      uint32
}

func (p params) words() []uint32 {
	return []uint32{
		p.n, p.nstack, p.samples, p.logN,
		p.logStride, p.srcOff, p.dstOff, p.width,
		p.batch, p.total, 0, 0,
	}
}

func stageParams(d butterfly.Dims, logStride, threads int) params {
	return params{
		n:         uint32(d.N),
		nstack:    uint32(d.NStack),
		samples:   uint32(d.Samples()),
		logN:      uint32(d.LogN()),
		logStride: uint32(logStride),
		batch:     uint32(d.Batch),
		total:     uint32(threads),
	}
}

func reduceParams(d butterfly.Dims, logStride, width int) params {
	p := stageParams(d, logStride, d.NStack*width)
	p.width = uint32(width)

	return p
}

// submitPolls bounds the wait for one submitted operation.
const submitPolls = 10000

// recorder encodes all copies and dispatches of one operation into a single
// command buffer. Bind groups and uniform buffers live until submit.
type recorder struct {
	dev     *device
	label   string
	enc     *wgpu.CommandEncoder
	cleanup []func()
}

func (k *kernels) begin(label string) (*recorder, error) {
	enc, err := k.dev.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}

	return &recorder{dev: k.dev, label: label, enc: enc}, nil
}

// copy records a copy of n floats.
func (r *recorder) copy(src *wgpu.Buffer, srcOff int, dst *wgpu.Buffer, dstOff, n int) {
	if n == 0 {
		return
	}

	r.enc.CopyBufferToBuffer(src, uint64(srcOff*4), dst, uint64(dstOff*4), uint64(n*4))
}

// dispatch records one compute pass. The uniform block is bound after bufs.
func (r *recorder) dispatch(pipeline *wgpu.ComputePipeline, prm params, threads int, bufs ...*wgpu.Buffer) error {
	uniform, err := r.dev.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    r.label + "_params",
		Contents: wgpu.ToBytes(prm.words()),
		Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create params: %w", err)
	}

	r.cleanup = append(r.cleanup, func() { release(uniform) })

	entries := make([]wgpu.BindGroupEntry, 0, len(bufs)+1)
	for i, b := range bufs {
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i), Buffer: b, Size: b.GetSize()})
	}

	entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(len(bufs)), Buffer: uniform, Size: uniform.GetSize()})

	layout := pipeline.GetBindGroupLayout(0)
	bg, err := r.dev.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   r.label + "_bind",
		Layout:  layout,
		Entries: entries,
	})

	layout.Release()

	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}

	r.cleanup = append(r.cleanup, bg.Release)

	x, y := r.dev.grid(threads)

	pass := r.enc.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(x, y, 1)
	pass.End()

	return nil
}

// submit finishes the command buffer, waits for the device and releases the
// per-call resources.
func (r *recorder) submit() error {
	defer r.release()

	cmd, err := r.enc.Finish(nil)
	r.enc.Release()

	if err != nil {
		return fmt.Errorf("%s: finish command buffer: %w", r.label, err)
	}

	r.dev.queue.Submit(cmd)
	cmd.Release()

	if err := r.dev.wait(submitPolls); err != nil {
		return fmt.Errorf("%s: %w", r.label, err)
	}

	Log("%s finished", r.label)

	return nil
}

func (r *recorder) abort() {
	r.enc.Release()
	r.release()
}

func (r *recorder) release() {
	for _, fn := range r.cleanup {
		fn()
	}

	r.cleanup = nil
}
