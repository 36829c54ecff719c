// Package webgpu provides the partitioned-reduction gradient backend.
//
// The backend stages the scale and bias gradient reductions through a fixed
// number of per-partition partial-sum buffers, then combines them after a
// full barrier. Kernels run on a WebGPU device when one is available and on
// a goroutine grid otherwise.
package webgpu

import (
	internalwebgpu "github.com/zhedahe/onnxruntime/internal/backend/webgpu"
	"github.com/zhedahe/onnxruntime/tensor"
)

// Backend represents the partitioned-reduction backend implementation.
type Backend = internalwebgpu.Backend

// GradPartitions is the fixed partition count for the staged reduction.
const GradPartitions = internalwebgpu.GradPartitions

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a WebGPU-accelerated backend.
// Returns an error if WebGPU is not available on this system.
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// NewHost creates a backend that runs the two-phase algorithm on the host.
// It never fails.
func NewHost() *Backend {
	return internalwebgpu.NewHost()
}
