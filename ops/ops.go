// Package ops re-exports kernel registration and dispatch for the training
// operators.
package ops

import (
	internalops "github.com/zhedahe/onnxruntime/internal/ops"
)

// OpLayerNormGrad is the operator type for the layer normalization backward pass.
const OpLayerNormGrad = internalops.OpLayerNormGrad

// Node describes an operator invocation.
type Node = internalops.Node

// Attribute represents a node attribute.
type Attribute = internalops.Attribute

// Context provides the execution backend for a kernel invocation.
type Context = internalops.Context

// Kernel is a constructed operator kernel.
type Kernel = internalops.Kernel

// Registry maps typed kernel registrations to builder functions.
type Registry = internalops.Registry

// NewRegistry creates a registry with all supported training kernels.
func NewRegistry() *Registry {
	return internalops.NewRegistry()
}
