package cpu

import "github.com/zhedahe/onnxruntime/internal/tensor"

// layerNormGradDense computes the closed-form layer normalization backward
// pass over a 2-D view of outer rows by feature columns.
//
// With D = (x - mean) * invStd (the normalized input), the derivation gives:
//
//	A = dY * D
//	B = dY * scale * invStd
//	C = B * D
//	xGrad     = B - mean_feature(B) - D * mean_feature(C)
//	biasGrad  = sum_outer(dY)
//	scaleGrad = sum_outer(A)
//
// The subtraction order in xGrad matches the reference derivation and must be
// preserved for numerical equivalence with autodiff.
//
// T is the data element type, U the statistics type (at least as wide as T).
// All intermediate arithmetic and accumulation happens in U.
func layerNormGradDense[T, U tensor.Float](
	dY, x, scale []T,
	mean, invStd []U,
	xGrad, scaleGrad, biasGrad []T,
	outer, feature int,
) {
	size := outer * feature

	// Whole-array intermediates in the statistics precision.
	d := make([]U, size) // normalized input (x - mean) * invStd
	b := make([]U, size) // dY * scale * invStd

	for r := 0; r < outer; r++ {
		row := r * feature
		mu := mean[r]
		rstd := invStd[r]
		for j := 0; j < feature; j++ {
			d[row+j] = (U(x[row+j]) - mu) * rstd
			b[row+j] = U(dY[row+j]) * U(scale[j]) * rstd
		}
	}

	// Per-row feature-axis means of B and C = B * D.
	invFeature := U(1) / U(feature)
	for r := 0; r < outer; r++ {
		row := r * feature
		var sumB, sumC U
		for j := 0; j < feature; j++ {
			sumB += b[row+j]
			sumC += b[row+j] * d[row+j]
		}
		meanB := sumB * invFeature
		meanC := sumC * invFeature

		for j := 0; j < feature; j++ {
			xGrad[row+j] = T(b[row+j] - meanB - d[row+j]*meanC)
		}
	}

	// Outer-axis reductions for the affine parameter gradients.
	scaleSum := make([]U, feature)
	biasSum := make([]U, feature)
	for r := 0; r < outer; r++ {
		row := r * feature
		for j := 0; j < feature; j++ {
			g := U(dY[row+j])
			biasSum[j] += g
			scaleSum[j] += g * d[row+j]
		}
	}
	for j := 0; j < feature; j++ {
		scaleGrad[j] = T(scaleSum[j])
		biasGrad[j] = T(biasSum[j])
	}
}
