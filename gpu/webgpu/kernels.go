package webgpu

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/cwbudde/butterfly"
	"github.com/cwbudde/butterfly/gpu"
	"github.com/cwbudde/butterfly/internal/schedule"
)

// kernels holds the compiled pipelines of one context.
type kernels struct {
	dev *device

	generalStage    *wgpu.ComputePipeline
	generalBackward *wgpu.ComputePipeline
	orthoStage      *wgpu.ComputePipeline
	orthoBackward   *wgpu.ComputePipeline
	reduce          *wgpu.ComputePipeline
}

var _ gpu.Kernels = (*kernels)(nil)

func compileKernels(d *device) (*kernels, error) {
	k := &kernels{dev: d}

	for _, s := range []struct {
		label string
		code  string
		dst   **wgpu.ComputePipeline
	}{
		{"butterfly_general_stage", generalStageShader, &k.generalStage},
		{"butterfly_general_backward", generalBackwardShader, &k.generalBackward},
		{"butterfly_ortho_stage", orthoStageShader, &k.orthoStage},
		{"butterfly_ortho_backward", orthoBackwardShader, &k.orthoBackward},
		{"butterfly_reduce", reduceShader, &k.reduce},
	} {
		p, err := d.compile(s.label, s.code)
		if err != nil {
			_ = k.Close()
			return nil, err
		}

		*s.dst = p
	}

	return k, nil
}

func (d *device) compile(label, code string) (*wgpu.ComputePipeline, error) {
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label + "_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", label, err)
	}

	defer module.Release()

	pipeline, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   label + "_pipe",
		Compute: wgpu.ProgrammableStageDescriptor{Module: module, EntryPoint: "main"},
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline %s: %w", label, err)
	}

	Log("compiled %s", label)

	return pipeline, nil
}

func (k *kernels) Close() error {
	for _, p := range []**wgpu.ComputePipeline{
		&k.generalStage, &k.generalBackward, &k.orthoStage, &k.orthoBackward, &k.reduce,
	} {
		if *p != nil {
			(*p).Release()
			*p = nil
		}
	}

	return nil
}

func (k *kernels) GeneralForward(out, twiddle, input gpu.Buffer, d butterfly.Dims, dir butterfly.Direction) error {
	bufs, err := raw(out, twiddle, input)
	if err != nil {
		return err
	}

	o, tw, in := bufs[0], bufs[1], bufs[2]

	sched, err := schedule.New(d.N, dir)
	if err != nil {
		return err
	}

	r, err := k.begin("butterfly_general_forward")
	if err != nil {
		return err
	}

	r.copy(in, 0, o, 0, d.DataLen())

	threads := d.DataLen() / 2
	for _, st := range sched.Stages {
		prm := stageParams(d, st.LogStride, threads)
		if err := r.dispatch(k.generalStage, prm, threads, o, tw); err != nil {
			r.abort()
			return err
		}
	}

	return r.submit()
}

// GeneralForwardBackward keeps the stage inputs in a device buffer of
// LogN rows of Batch*NStack*N floats. Row k is written by forward stage k-1
// and read by backward stage k.
func (k *kernels) GeneralForwardBackward(dTwiddle, dInput, twiddle, input, grad gpu.Buffer, d butterfly.Dims, dir butterfly.Direction) error {
	bufs, err := raw(dTwiddle, dInput, twiddle, input, grad)
	if err != nil {
		return err
	}

	dtw, g, tw, in, gr := bufs[0], bufs[1], bufs[2], bufs[3], bufs[4]

	sched, err := schedule.New(d.N, dir)
	if err != nil {
		return err
	}

	row := d.DataLen()

	saved, err := k.dev.newStorage("butterfly_saved", d.LogN()*row)
	if err != nil {
		return err
	}

	defer release(saved)

	part, err := k.dev.newStorage("butterfly_twiddle_partials", d.Samples()*2*d.N)
	if err != nil {
		return err
	}

	defer release(part)

	r, err := k.begin("butterfly_general_forward_backward")
	if err != nil {
		return err
	}

	r.copy(in, 0, saved, 0, row)
	r.copy(gr, 0, g, 0, row)

	threads := row / 2
	last := len(sched.Stages) - 1

	for i, st := range sched.Stages[:last] {
		prm := stageParams(d, st.LogStride, threads)
		prm.srcOff = uint32(i * row)
		prm.dstOff = uint32((i + 1) * row)

		if err := r.dispatch(k.generalStage, prm, threads, saved, tw); err != nil {
			r.abort()
			return err
		}
	}

	for i := last; i >= 0; i-- {
		st := sched.Stages[i]

		prm := stageParams(d, st.LogStride, threads)
		prm.srcOff = uint32(i * row)

		if err := r.dispatch(k.generalBackward, prm, threads, g, saved, tw, part); err != nil {
			r.abort()
			return err
		}

		if err := r.dispatch(k.reduce, reduceParams(d, st.LogStride, 2*d.N), d.NStack*2*d.N, part, dtw); err != nil {
			r.abort()
			return err
		}
	}

	return r.submit()
}

func (k *kernels) OrthogonalForward(out, cos, sin, input gpu.Buffer, d butterfly.Dims, dir butterfly.Direction) error {
	bufs, err := raw(out, cos, sin, input)
	if err != nil {
		return err
	}

	o, c, s, in := bufs[0], bufs[1], bufs[2], bufs[3]

	sched, err := schedule.New(d.N, dir)
	if err != nil {
		return err
	}

	r, err := k.begin("butterfly_orthogonal_forward")
	if err != nil {
		return err
	}

	r.copy(in, 0, o, 0, d.DataLen())

	threads := d.DataLen() / 2
	for _, st := range sched.Stages {
		if err := r.dispatch(k.orthoStage, stageParams(d, st.LogStride, threads), threads, o, c, s); err != nil {
			r.abort()
			return err
		}
	}

	return r.submit()
}

func (k *kernels) OrthogonalBackward(dCos, dSin, dInput, input, cos, sin, output, grad gpu.Buffer, d butterfly.Dims, dir butterfly.Direction) error {
	bufs, err := raw(dCos, dSin, dInput, input, cos, sin, output, grad)
	if err != nil {
		return err
	}

	dc, ds, g, y, c, s, out, gr := bufs[0], bufs[1], bufs[2], bufs[3], bufs[4], bufs[5], bufs[6], bufs[7]

	sched, err := schedule.New(d.N, dir)
	if err != nil {
		return err
	}

	half := d.N / 2

	partC, err := k.dev.newStorage("butterfly_cos_partials", d.Samples()*half)
	if err != nil {
		return err
	}

	defer release(partC)

	partS, err := k.dev.newStorage("butterfly_sin_partials", d.Samples()*half)
	if err != nil {
		return err
	}

	defer release(partS)

	r, err := k.begin("butterfly_orthogonal_backward")
	if err != nil {
		return err
	}

	r.copy(out, 0, y, 0, d.DataLen())
	r.copy(gr, 0, g, 0, d.DataLen())

	threads := d.DataLen() / 2

	for i := len(sched.Stages) - 1; i >= 0; i-- {
		st := sched.Stages[i]

		err := r.dispatch(k.orthoBackward, stageParams(d, st.LogStride, threads), threads, y, g, c, s, partC, partS)
		if err == nil {
			err = r.dispatch(k.reduce, reduceParams(d, st.LogStride, half), d.NStack*half, partC, dc)
		}

		if err == nil {
			err = r.dispatch(k.reduce, reduceParams(d, st.LogStride, half), d.NStack*half, partS, ds)
		}

		if err != nil {
			r.abort()
			return err
		}
	}

	return r.submit()
}

func raw(bufs ...gpu.Buffer) ([]*wgpu.Buffer, error) {
	out := make([]*wgpu.Buffer, len(bufs))

	for i, b := range bufs {
		db, ok := b.(*buffer)
		if !ok {
			return nil, fmt.Errorf("%w: buffer %d is %T", gpu.ErrTypeMismatch, i, b)
		}

		if db.buf == nil {
			return nil, gpu.ErrClosed
		}

		out[i] = db.buf
	}

	return out, nil
}

func release(b *wgpu.Buffer) {
	b.Destroy()
	b.Release()
}
