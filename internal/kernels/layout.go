package kernels

import (
	"github.com/cwbudde/butterfly/internal/bftypes"
	"github.com/cwbudde/butterfly/internal/schedule"
)

// Float is the element constraint shared by all kernels.
type Float = bftypes.Float

// Layout describes the flat row-major buffers of one call:
//
//	data    (Batch, NStack, N)
//	general (NStack, LogN, 2, N)
//	cos/sin (NStack, LogN, N/2)
type Layout struct {
	Batch  int
	NStack int
	N      int
	LogN   int
}

// NewLayout returns the layout for the given dimensions. n must be a power of two.
func NewLayout(batch, nstack, n int) Layout {
	return Layout{Batch: batch, NStack: nstack, N: n, LogN: schedule.Log2(n)}
}

// Samples is the number of independent length-N vectors, Batch*NStack.
func (l Layout) Samples() int {
	return l.Batch * l.NStack
}

// Stack returns the stack index of a flat sample index.
func (l Layout) Stack(sample int) int {
	return sample % l.NStack
}

// DataLen is the element count of an input, output or gradient buffer.
func (l Layout) DataLen() int {
	return l.Samples() * l.N
}

// GeneralLen is the element count of a general twiddle tensor.
func (l Layout) GeneralLen() int {
	return l.NStack * l.LogN * 2 * l.N
}

// OrthoLen is the element count of one cos or sin tensor.
func (l Layout) OrthoLen() int {
	return l.NStack * l.LogN * l.N / 2
}

// SavedLen is the per-sample scratch needed by the general fused pass.
func (l Layout) SavedLen() int {
	return l.LogN * l.N
}

// Sample returns the length-N vector of sample i.
func Sample[T Float](buf []T, l Layout, i int) []T {
	return buf[i*l.N : (i+1)*l.N]
}

// GeneralSlab returns the two rows of the general twiddle slab for one stack
// and stride.
func GeneralSlab[T Float](tw []T, l Layout, stack, logStride int) (t0, t1 []T) {
	off := (stack*l.LogN + logStride) * 2 * l.N

	return tw[off : off+l.N], tw[off+l.N : off+2*l.N]
}

// OrthoSlab returns the n/2 rotation parameters for one stack and stride.
func OrthoSlab[T Float](p []T, l Layout, stack, logStride int) []T {
	half := l.N / 2
	off := (stack*l.LogN + logStride) * half

	return p[off : off+half]
}
