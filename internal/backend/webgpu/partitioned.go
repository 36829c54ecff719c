package webgpu

import (
	"github.com/zhedahe/onnxruntime/internal/parallel"
	"github.com/zhedahe/onnxruntime/internal/tensor"
)

// layerNormGradStaged is the host execution of the two-phase kernel. It keeps
// the exact structure of the device path: per-partition partial sums over
// disjoint row ranges, a full barrier, then the final per-feature reduction
// and the row-independent input gradient.
//
// T is the data element type, U the statistics type (at least as wide as T).
// Partial sums accumulate in U to control drift over long reductions.
func layerNormGradStaged[T, U tensor.Float](
	dY, x, scale []T,
	mean, invStd []U,
	xGrad, scaleGrad, biasGrad []T,
	outer, feature, parts int,
	cfg parallel.Config,
) {
	// Scratch partial-sum buffers, one row per partition. Transient, owned by
	// this invocation.
	partScale := make([]U, parts*feature)
	partBias := make([]U, parts*feature)

	// Phase 1: each partition owns a disjoint row range; no two workers write
	// the same partial-sum slot.
	parallel.Partitions(outer, parts, func(part, start, end int) {
		ps := partScale[part*feature : (part+1)*feature]
		pb := partBias[part*feature : (part+1)*feature]
		for r := start; r < end; r++ {
			row := r * feature
			mu := mean[r]
			rstd := invStd[r]
			for j := 0; j < feature; j++ {
				g := U(dY[row+j])
				pb[j] += g
				ps[j] += g * (U(x[row+j]) - mu) * rstd
			}
		}
	})
	// Partitions returns only once every worker has finished: the barrier
	// between the phases.

	// Phase 2: combine the partials per feature index.
	for j := 0; j < feature; j++ {
		var sg, bg U
		for p := 0; p < parts; p++ {
			sg += partScale[p*feature+j]
			bg += partBias[p*feature+j]
		}
		scaleGrad[j] = T(sg)
		biasGrad[j] = T(bg)
	}

	// Input gradient: no cross-row reduction, one independent unit of work
	// per output row.
	invFeature := U(1) / U(feature)
	parallel.For(outer, func(r int) {
		row := r * feature
		mu := mean[r]
		rstd := invStd[r]

		var sumB, sumC U
		for j := 0; j < feature; j++ {
			d := (U(x[row+j]) - mu) * rstd
			bv := U(dY[row+j]) * U(scale[j]) * rstd
			sumB += bv
			sumC += bv * d
		}
		meanB := sumB * invFeature
		meanC := sumC * invFeature

		for j := 0; j < feature; j++ {
			d := (U(x[row+j]) - mu) * rstd
			bv := U(dY[row+j]) * U(scale[j]) * rstd
			xGrad[row+j] = T(bv - meanB - d*meanC)
		}
	}, cfg)
}
