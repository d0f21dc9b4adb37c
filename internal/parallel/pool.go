package parallel

import (
	"sync"

	"github.com/cwbudde/butterfly/internal/bftypes"
)

const (
	minClassLog = 6  // 64 elements
	numClasses  = 21 // up to 2^26 elements
)

// Pool is a size-classed pool of scratch slices. A request rounds up to the
// next power of two so that a buffer serves any smaller request of its class.
// The zero value is ready to use.
type Pool[T bftypes.Float] struct {
	classes [numClasses]sync.Pool
}

// Get returns a zeroed slice of exactly n elements. Return it with Put.
func (p *Pool[T]) Get(n int) []T {
	cls := class(n)
	if cls >= numClasses {
		return make([]T, n)
	}

	if v := p.classes[cls].Get(); v != nil {
		if bufPtr, ok := v.(*[]T); ok && bufPtr != nil && cap(*bufPtr) >= n {
			buf := (*bufPtr)[:n]
			clear(buf)

			return buf
		}
	}

	return make([]T, n, 1<<(cls+minClassLog))
}

// Put returns a slice obtained from Get. Slices that do not match a class
// are dropped.
func (p *Pool[T]) Put(buf []T) {
	c := cap(buf)
	if c == 0 {
		return
	}

	cls := class(c)
	if cls >= numClasses || 1<<(cls+minClassLog) != c {
		return
	}

	buf = buf[:c]
	p.classes[cls].Put(&buf)
}

// class returns the pool index for a request of n elements.
func class(n int) int {
	if n <= 1<<minClassLog {
		return 0
	}

	bits := 0
	for v := n - 1; v > 0; v >>= 1 {
		bits++
	}

	return bits - minClassLog
}
