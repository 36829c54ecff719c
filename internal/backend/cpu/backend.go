// Package cpu implements the dense-array gradient backend.
//
// The backend reshapes every tensor into a logical 2-D view (outer rows by
// feature columns, feature contiguous) and computes the layer normalization
// gradients through whole-array arithmetic and axis reductions, mirroring the
// closed-form backward derivation. It targets a single-threaded, internally
// vectorized execution model; correctness does not depend on any particular
// evaluation order.
package cpu

import (
	"fmt"

	"github.com/zhedahe/onnxruntime/internal/tensor"
)

// CPUBackend implements the gradient kernels on the host CPU.
type CPUBackend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// LayerNormGrad computes the layer normalization backward pass.
//
// Inputs are read-only for the duration of the call; the three output tensors
// are fully overwritten. mean and invStdDev carry the statistics dtype, which
// may be wider than the data dtype; all arithmetic runs in the statistics
// precision.
func (cpu *CPUBackend) LayerNormGrad(dY, x, scale, mean, invStdDev, xGrad, scaleGrad, biasGrad *tensor.RawTensor, outer, feature int) error {
	if feature <= 1 {
		return fmt.Errorf("layernorm grad: feature size must be greater than 1, got %d", feature)
	}

	switch dt := dY.DType(); dt {
	case tensor.Float32:
		switch mean.DType() {
		case tensor.Float32:
			layerNormGradDense[float32, float32](
				dY.AsFloat32(), x.AsFloat32(), scale.AsFloat32(),
				mean.AsFloat32(), invStdDev.AsFloat32(),
				xGrad.AsFloat32(), scaleGrad.AsFloat32(), biasGrad.AsFloat32(),
				outer, feature,
			)
		case tensor.Float64:
			layerNormGradDense[float32, float64](
				dY.AsFloat32(), x.AsFloat32(), scale.AsFloat32(),
				mean.AsFloat64(), invStdDev.AsFloat64(),
				xGrad.AsFloat32(), scaleGrad.AsFloat32(), biasGrad.AsFloat32(),
				outer, feature,
			)
		}
	case tensor.Float64:
		if mean.DType() != tensor.Float64 {
			return fmt.Errorf("layernorm grad: statistics dtype %s is narrower than data dtype %s", mean.DType(), dt)
		}
		layerNormGradDense[float64, float64](
			dY.AsFloat64(), x.AsFloat64(), scale.AsFloat64(),
			mean.AsFloat64(), invStdDev.AsFloat64(),
			xGrad.AsFloat64(), scaleGrad.AsFloat64(), biasGrad.AsFloat64(),
			outer, feature,
		)
	default:
		return fmt.Errorf("layernorm grad: unsupported dtype %s", dt)
	}

	return nil
}
