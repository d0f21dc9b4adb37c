package kernels

import "github.com/cwbudde/butterfly/internal/schedule"

// GeneralStage applies the 2x2 maps of one stage to pairs [lo, hi), reading
// src and writing dst. dst and src may be the same slice.
//
// For pair (a, b) the map is [[t0[a], t1[a]], [t1[b], t0[b]]].
func GeneralStage[T Float](dst, src, t0, t1 []T, st schedule.Stage, lo, hi int) {
	for p := lo; p < hi; p++ {
		a, b := st.Pair(p)
		u, v := src[a], src[b]
		dst[a] = t0[a]*u + t1[a]*v
		dst[b] = t1[b]*u + t0[b]*v
	}
}

// GeneralStageBackward propagates g backwards through one stage for pairs
// [lo, hi). x holds the stage input, g holds the gradient of the stage output
// on entry and the gradient of the stage input on return. The twiddle
// gradient is accumulated into dt0 and dt1.
func GeneralStageBackward[T Float](x, g, t0, t1, dt0, dt1 []T, st schedule.Stage, lo, hi int) {
	for p := lo; p < hi; p++ {
		a, b := st.Pair(p)
		u, v := x[a], x[b]
		ga, gb := g[a], g[b]

		dt0[a] += ga * u
		dt1[a] += ga * v
		dt1[b] += gb * u
		dt0[b] += gb * v

		g[a] = t0[a]*ga + t1[b]*gb
		g[b] = t1[a]*ga + t0[b]*gb
	}
}

// GeneralForward runs every stage of sched over x in place using the slabs of
// the given stack. Returns false if any slice is too small.
func GeneralForward[T Float](x, tw []T, l Layout, stack int, sched *schedule.Schedule) bool {
	if len(x) < l.N || len(tw) < l.GeneralLen() {
		return false
	}

	half := sched.Pairs()
	for _, st := range sched.Stages {
		t0, t1 := GeneralSlab(tw, l, stack, st.LogStride)
		GeneralStage(x, x, t0, t1, st, 0, half)
	}

	return true
}

// GeneralForwardBackward runs the forward sweep of x into saved, then the
// backward sweep of g against the saved stage inputs. On return g holds the
// input gradient and dtw has the twiddle gradient of this sample added.
// saved must hold LogN*N elements; row k receives the input of stage k.
// The output of the last stage is never formed. Returns false if any slice
// is too small.
func GeneralForwardBackward[T Float](x, g, tw, dtw, saved []T, l Layout, stack int, sched *schedule.Schedule) bool {
	n := l.N
	if len(x) < n || len(g) < n || len(saved) < l.SavedLen() ||
		len(tw) < l.GeneralLen() || len(dtw) < l.GeneralLen() {
		return false
	}

	half := sched.Pairs()
	last := len(sched.Stages) - 1

	copy(saved[:n], x[:n])

	for k, st := range sched.Stages[:last] {
		t0, t1 := GeneralSlab(tw, l, stack, st.LogStride)
		GeneralStage(saved[(k+1)*n:(k+2)*n], saved[k*n:(k+1)*n], t0, t1, st, 0, half)
	}

	for k := last; k >= 0; k-- {
		st := sched.Stages[k]
		t0, t1 := GeneralSlab(tw, l, stack, st.LogStride)
		dt0, dt1 := GeneralSlab(dtw, l, stack, st.LogStride)
		GeneralStageBackward(saved[k*n:(k+1)*n], g, t0, t1, dt0, dt1, st, 0, half)
	}

	return true
}
