package ops

import (
	"fmt"

	"github.com/zhedahe/onnxruntime/internal/tensor"
)

// Context provides the execution backend for a kernel invocation.
type Context struct {
	Backend tensor.Backend
}

// Kernel is a constructed operator kernel, bound to its attributes.
// Inputs are read-only for the duration of Compute; outputs are
// caller-allocated, pre-shaped, and fully overwritten.
type Kernel interface {
	Compute(ctx *Context, inputs, outputs []*tensor.RawTensor) error
}

// KernelBuilder constructs a kernel from a node's attributes.
// Construction fails if a required attribute is missing.
type KernelBuilder func(node *Node) (Kernel, error)

// kernelKey identifies one typed kernel registration, mirroring dispatch on
// (operator, execution provider, T, U). The statistics dtype may differ from
// the data dtype for mixed-precision training.
type kernelKey struct {
	opType string
	device tensor.Device
	data   tensor.DataType
	stats  tensor.DataType
}

// Registry maps typed kernel registrations to builder functions.
type Registry struct {
	builders map[kernelKey]KernelBuilder
}

// NewRegistry creates a registry with all supported training kernels.
func NewRegistry() *Registry {
	r := &Registry{
		builders: make(map[kernelKey]KernelBuilder),
	}

	r.registerLayerNormGrad()

	return r
}

// Register adds a typed kernel registration.
func (r *Registry) Register(opType string, device tensor.Device, data, stats tensor.DataType, builder KernelBuilder) {
	r.builders[kernelKey{opType, device, data, stats}] = builder
}

// Get returns the builder for a typed kernel registration.
func (r *Registry) Get(opType string, device tensor.Device, data, stats tensor.DataType) (KernelBuilder, bool) {
	b, ok := r.builders[kernelKey{opType, device, data, stats}]
	return b, ok
}

// Execute builds and runs the kernel selected by the context's backend device
// and the input dtypes. inputs[0] supplies the data dtype; the statistics
// dtype is taken from inputs[statsInput] when the operator has cached
// statistics inputs, else it equals the data dtype.
func (r *Registry) Execute(ctx *Context, node *Node, inputs, outputs []*tensor.RawTensor) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%s: no inputs", node.OpType)
	}

	data := inputs[0].DType()
	stats := data
	if idx, ok := statsInputIndex(node.OpType); ok && idx < len(inputs) {
		stats = inputs[idx].DType()
	}

	builder, ok := r.Get(node.OpType, ctx.Backend.Device(), data, stats)
	if !ok {
		return fmt.Errorf("no kernel registered for %s on %s with dtypes (%s, %s)",
			node.OpType, ctx.Backend.Device(), data, stats)
	}

	kernel, err := builder(node)
	if err != nil {
		return fmt.Errorf("%s: %w", node.OpType, err)
	}

	return kernel.Compute(ctx, inputs, outputs)
}

// statsInputIndex returns the input slot carrying the statistics dtype for
// operators with cached forward statistics.
func statsInputIndex(opType string) (int, bool) {
	if opType == OpLayerNormGrad {
		return 3, true // cached mean
	}
	return 0, false
}
