// Package gpu provides the accelerator engine for package butterfly.
//
// A Backend exposes devices, buffers and compiled kernels for the four
// butterfly operations. Engine adapts a backend context to the
// butterfly.Engine interface: each call uploads its operands, runs the
// kernels and downloads the results. Install registers engines for every
// precision the backend supports, after which tensors tagged with
// butterfly.TargetAccelerator execute on the device.
//
// The WebGPU backend lives in gpu/webgpu. MockBackend executes on the CPU
// and is intended for development and tests.
package gpu
