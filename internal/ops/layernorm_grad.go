package ops

import (
	"fmt"

	"github.com/zhedahe/onnxruntime/internal/tensor"
)

// OpLayerNormGrad is the operator type for the layer normalization backward pass.
const OpLayerNormGrad = "LayerNormalizationGrad"

// Input slots for LayerNormalizationGrad.
const (
	lnGradInputGrad      = 0 // upstream gradient dY  [outer, feature]
	lnGradInputX         = 1 // forward input X       [outer, feature]
	lnGradInputScale     = 2 // learned scale         [feature]
	lnGradInputMean      = 3 // cached mean           [outer], statistics dtype
	lnGradInputInvStdDev = 4 // cached 1/sqrt(var+eps) [outer], statistics dtype
)

// Output slots for LayerNormalizationGrad.
const (
	lnGradOutputXGrad     = 0 // [outer, feature]
	lnGradOutputScaleGrad = 1 // [feature]
	lnGradOutputBiasGrad  = 2 // [feature]
)

// LayerNormGradKernel computes the gradients of layer normalization with
// respect to the input, the scale, and the bias, from the upstream gradient
// and the cached forward statistics. The normalization axis is fixed at
// construction; negative values resolve against the input rank per call.
type LayerNormGradKernel struct {
	axis int64
}

// NewLayerNormGrad builds the kernel from a node. The axis attribute is
// required.
func NewLayerNormGrad(node *Node) (Kernel, error) {
	axis, ok := GetAttrInt(node, "axis")
	if !ok {
		return nil, fmt.Errorf("missing required attribute: axis")
	}
	return &LayerNormGradKernel{axis: axis}, nil
}

// Compute flattens the input shape around the normalization axis into an
// outer-by-feature view and delegates to the backend's gradient engine.
// A feature extent of 1 is rejected: the forward statistics collapse and the
// gradients are undefined.
func (k *LayerNormGradKernel) Compute(ctx *Context, inputs, outputs []*tensor.RawTensor) error {
	if len(inputs) != 5 {
		return fmt.Errorf("layernorm grad: expected 5 inputs, got %d", len(inputs))
	}
	if len(outputs) != 3 {
		return fmt.Errorf("layernorm grad: expected 3 outputs, got %d", len(outputs))
	}

	x := inputs[lnGradInputX]
	xShape := x.Shape()

	axis, err := tensor.ResolveAxis(int(k.axis), len(xShape))
	if err != nil {
		return fmt.Errorf("layernorm grad: %w", err)
	}

	outer := xShape.SizeToDim(axis)
	feature := xShape.SizeFromDim(axis)
	if feature <= 1 {
		return fmt.Errorf("layernorm grad: feature size must be greater than 1, got %d (axis %d of shape %v)", feature, k.axis, xShape)
	}

	return ctx.Backend.LayerNormGrad(
		inputs[lnGradInputGrad], x, inputs[lnGradInputScale],
		inputs[lnGradInputMean], inputs[lnGradInputInvStdDev],
		outputs[lnGradOutputXGrad], outputs[lnGradOutputScaleGrad], outputs[lnGradOutputBiasGrad],
		outer, feature,
	)
}

// registerLayerNormGrad adds the typed registrations. The statistics dtype is
// always at least as wide as the data dtype; the device path supports the
// canonical float32 pair, with wider pairs served by the host grid.
func (r *Registry) registerLayerNormGrad() {
	for _, pair := range []struct{ data, stats tensor.DataType }{
		{tensor.Float32, tensor.Float32},
		{tensor.Float32, tensor.Float64},
		{tensor.Float64, tensor.Float64},
	} {
		r.Register(OpLayerNormGrad, tensor.CPU, pair.data, pair.stats, NewLayerNormGrad)
		r.Register(OpLayerNormGrad, tensor.WebGPU, pair.data, pair.stats, NewLayerNormGrad)
	}
}
