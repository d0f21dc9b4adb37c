package kernels

import "github.com/cwbudde/butterfly/internal/schedule"

// OrthoStage rotates pairs [lo, hi) of one stage, reading src and writing dst.
// c and s are the stage slabs indexed by pair index.
func OrthoStage[T Float](dst, src, c, s []T, st schedule.Stage, lo, hi int) {
	for p := lo; p < hi; p++ {
		a, b := st.Pair(p)
		u, v := src[a], src[b]
		cp, sp := c[p], s[p]
		dst[a] = cp*u - sp*v
		dst[b] = sp*u + cp*v
	}
}

// OrthoStageBackward undoes one stage for pairs [lo, hi). On entry y holds
// the stage output and g its gradient; on return y holds the reconstructed
// stage input and g the gradient of that input. Partial derivatives with
// respect to c and s are accumulated into dc and ds.
func OrthoStageBackward[T Float](y, g, c, s, dc, ds []T, st schedule.Stage, lo, hi int) {
	for p := lo; p < hi; p++ {
		a, b := st.Pair(p)
		ya, yb := y[a], y[b]
		ga, gb := g[a], g[b]
		cp, sp := c[p], s[p]

		// Rᵗ restores the stage input.
		u := cp*ya + sp*yb
		v := -sp*ya + cp*yb

		dc[p] += ga*u + gb*v
		ds[p] += gb*u - ga*v

		g[a] = cp*ga + sp*gb
		g[b] = -sp*ga + cp*gb

		y[a], y[b] = u, v
	}
}

// OrthoForward rotates x in place through every stage of sched. Returns false
// if any slice is too small.
func OrthoForward[T Float](x, cos, sin []T, l Layout, stack int, sched *schedule.Schedule) bool {
	if len(x) < l.N || len(cos) < l.OrthoLen() || len(sin) < l.OrthoLen() {
		return false
	}

	half := sched.Pairs()
	for _, st := range sched.Stages {
		OrthoStage(x, x, OrthoSlab(cos, l, stack, st.LogStride), OrthoSlab(sin, l, stack, st.LogStride), st, 0, half)
	}

	return true
}

// OrthoBackward walks the stages of sched in reverse. y enters as the final
// output and leaves as the reconstructed input; g enters as the output
// gradient and leaves as the input gradient. dcos and dsin accumulate.
// Returns false if any slice is too small.
func OrthoBackward[T Float](y, g, cos, sin, dcos, dsin []T, l Layout, stack int, sched *schedule.Schedule) bool {
	m := l.OrthoLen()
	if len(y) < l.N || len(g) < l.N || len(cos) < m || len(sin) < m || len(dcos) < m || len(dsin) < m {
		return false
	}

	half := sched.Pairs()
	for k := len(sched.Stages) - 1; k >= 0; k-- {
		st := sched.Stages[k]
		OrthoStageBackward(y, g,
			OrthoSlab(cos, l, stack, st.LogStride), OrthoSlab(sin, l, stack, st.LogStride),
			OrthoSlab(dcos, l, stack, st.LogStride), OrthoSlab(dsin, l, stack, st.LogStride),
			st, 0, half)
	}

	return true
}

// ThetaGrad converts partial derivatives with respect to (cos θ, sin θ) into
// the derivative with respect to θ: dθ = c·ds − s·dc.
func ThetaGrad[T Float](dtheta, cos, sin, dcos, dsin []T) {
	for i := range dtheta {
		dtheta[i] = cos[i]*dsin[i] - sin[i]*dcos[i]
	}
}

// Accumulate adds src into dst element-wise.
func Accumulate[T Float](dst, src []T) {
	for i, v := range src {
		dst[i] += v
	}
}
