// Package schedule derives the ordered stage sequence of a butterfly transform
// and the position pairing used by each stage.
package schedule

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/butterfly/internal/bftypes"
)

const (
	// MaxLength is the largest n accepted by forward-only paths and by the
	// orthogonal backward pass.
	MaxLength = 16384

	// MaxFusedLength is the largest n accepted by the general fused
	// forward+backward pass, which retains logN x n activations per sample.
	MaxFusedLength = 4096
)

var (
	// ErrInvalidLength is returned when n is not a positive power of two.
	ErrInvalidLength = errors.New("schedule: length must be a positive power of 2")

	// ErrInvalidDirection is returned for a Direction other than
	// IncreasingStride and DecreasingStride.
	ErrInvalidDirection = errors.New("schedule: invalid direction")

	// ErrTooLarge is returned when n exceeds the requested ceiling.
	ErrTooLarge = errors.New("schedule: length exceeds ceiling")
)

// Stage is one butterfly round. Stages are not materialized as data; a Stage
// only carries the stride and where it sits in the schedule.
type Stage struct {
	// Index is the position of the stage in application order.
	Index int
	// LogStride selects the twiddle slab used by this stage.
	LogStride int
	// Stride is the distance between coupled positions.
	Stride int
}

// Pair maps pair index p in [0, n/2) to the coupled positions (a, b), b = a + Stride.
func (s Stage) Pair(p int) (a, b int) {
	low := p & (s.Stride - 1)
	a = (p>>s.LogStride)<<(s.LogStride+1) | low

	return a, a + s.Stride
}

// Schedule is the ordered stage list for one (n, direction) pair.
type Schedule struct {
	N         int
	LogN      int
	Direction bftypes.Direction
	Stages    []Stage
}

// Pairs returns the number of pairs per stage.
func (s *Schedule) Pairs() int {
	return s.N / 2
}

// Strides returns the stride values in application order.
func Strides(logN int, increasing bool) []int {
	if logN <= 0 {
		return nil
	}

	strides := make([]int, logN)
	for k := range logN {
		if increasing {
			strides[k] = 1 << k
		} else {
			strides[k] = 1 << (logN - 1 - k)
		}
	}

	return strides
}

// cache holds one schedule per (direction, logN). Lookups do not allocate.
var cache [2][64]atomic.Pointer[Schedule]

// New returns the schedule for a length-n transform. Schedules are immutable
// and cached, so the returned pointer must not be modified.
func New(n int, dir bftypes.Direction) (*Schedule, error) {
	if n < 2 || !IsPowerOf2(n) {
		return nil, fmt.Errorf("%w: n=%d", ErrInvalidLength, n)
	}

	if dir != bftypes.IncreasingStride && dir != bftypes.DecreasingStride {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, dir)
	}

	logN := Log2(n)
	slot := &cache[dir][logN]

	if s := slot.Load(); s != nil {
		return s, nil
	}

	s := &Schedule{
		N:         n,
		LogN:      logN,
		Direction: dir,
		Stages:    make([]Stage, logN),
	}

	for k, stride := range Strides(logN, dir.Increasing()) {
		s.Stages[k] = Stage{Index: k, LogStride: Log2(stride), Stride: stride}
	}

	if slot.CompareAndSwap(nil, s) {
		return s, nil
	}

	return slot.Load(), nil
}

// CheckCeiling returns ErrTooLarge if n is above limit.
func CheckCeiling(n, limit int) error {
	if n > limit {
		return fmt.Errorf("%w: n=%d, limit %d", ErrTooLarge, n, limit)
	}

	return nil
}
