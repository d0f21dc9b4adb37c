// Package webgpu implements a gpu.Backend on top of WebGPU compute shaders.
//
// Each butterfly stage is one compute pass over all pairs of all samples.
// Calls record every pass of an operation into a single command buffer. The
// backward kernels write per-sample partial twiddle gradients that a
// separate pass sums over the batch, since WGSL has no float atomics.
//
// Usage:
//
//	webgpu.Register()
//	if err := gpu.Install(gpu.Options{}); err != nil {
//		// fall back to the CPU engines
//	}
//	defer gpu.Uninstall()
//
// Only float32 is supported.
package webgpu
