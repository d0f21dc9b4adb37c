// Package butterfly implements butterfly factorized linear transforms: an
// O(n log n) structured replacement for a dense n×n matrix multiply whose
// factors are learned rather than fixed.
//
// A length-n transform (n a power of two) is a sequence of log2(n) stages.
// The stage with stride s couples positions a and a+s inside every block of
// 2s elements, and maps each such pair through its own 2×2 factor. Strides
// run 1, 2, ..., n/2 (IncreasingStride) or n/2, ..., 1 (DecreasingStride).
//
// Two parameterizations are provided:
//
//   - General: an unconstrained 2×2 map per pair. GeneralForwardBackward
//     recomputes the forward activations inside the call, because a general
//     map cannot be inverted to recover them.
//   - Orthogonal: a rotation by θ per pair, supplied as cos θ and sin θ.
//     OrthogonalBackward takes the final output instead of the input and
//     reconstructs every stage input by applying the transposed rotations.
//
// Buffers are flat row-major tensors:
//
//	input, output, grad   (batch, nstack, n)
//	general twiddle       (nstack, log2 n, 2, n)
//	cos, sin              (nstack, log2 n, n/2)
//
// The twiddle slab of a stage is chosen by log2 of its stride, not by its
// position in the schedule.
//
// # Execution
//
// CPU tensors run on a sequential or a parallel engine. The parallel engine
// either splits the batch across workers or splits the pairs of every stage;
// see SetStrategy, Options and the wisdom functions. Accelerator tensors run
// on the engine registered with RegisterAccelerator, normally installed by
// package gpu.
//
// Plan offers the same operations on raw slices for a fixed n, nstack and
// direction, resolving the engine once.
package butterfly
