// Package tensor re-exports the core tensor types consumed and produced by
// the gradient kernels: flat, contiguous, typed buffers with an externally
// supplied shape, viewed by the kernels as logical 2-D arrays.
package tensor

import (
	internal "github.com/zhedahe/onnxruntime/internal/tensor"
)

// Shape represents the dimensions of a tensor.
type Shape = internal.Shape

// DataType represents runtime type information for tensors.
type DataType = internal.DataType

// Supported data types.
const (
	Float32 = internal.Float32
	Float64 = internal.Float64
)

// Device represents the compute device for kernel execution.
type Device = internal.Device

// Supported compute devices.
const (
	CPU    = internal.CPU
	WebGPU = internal.WebGPU
)

// RawTensor is the low-level tensor representation.
type RawTensor = internal.RawTensor

// Backend is the contract shared by the gradient engines.
type Backend = internal.Backend

// NewRaw creates a new RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return internal.NewRaw(shape, dtype, device)
}

// FromSlice creates a RawTensor by copying a Go slice.
func FromSlice[T internal.Float](data []T, shape Shape, device Device) (*RawTensor, error) {
	return internal.FromSlice(data, shape, device)
}

// ResolveAxis normalizes a possibly negative axis against rank.
func ResolveAxis(axis, rank int) (int, error) {
	return internal.ResolveAxis(axis, rank)
}
