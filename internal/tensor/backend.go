package tensor

// Backend is the contract shared by the gradient engines. Each backend is an
// alternative implementation of the same mathematical operation; the dispatch
// layer in internal/ops picks one by execution device and element dtypes.
//
// LayerNormGrad consumes the upstream gradient dY, the forward input x, the
// learned scale, and the cached per-row statistics (mean, inverse std-dev),
// and fully overwrites the three caller-allocated outputs:
//
//	xGrad     [outer, feature]  gradient w.r.t. the input
//	scaleGrad [feature]         gradient w.r.t. scale, reduced over outer
//	biasGrad  [feature]         gradient w.r.t. bias, reduced over outer
//
// outer and feature are the flattened extents around the normalization axis.
// Implementations must reject feature <= 1 with an error.
type Backend interface {
	Name() string
	Device() Device
	LayerNormGrad(dY, x, scale, mean, invStdDev, xGrad, scaleGrad, biasGrad *RawTensor, outer, feature int) error
}
