// Package cpu provides the dense-array gradient backend.
//
// The backend computes the layer normalization backward pass through
// whole-array arithmetic over a 2-D outer-by-feature view, with all
// intermediate arithmetic in the statistics precision. Intended for a
// single-threaded, internally vectorized execution model.
package cpu

import (
	internalcpu "github.com/zhedahe/onnxruntime/internal/backend/cpu"
	"github.com/zhedahe/onnxruntime/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
func New() *Backend {
	return internalcpu.New()
}
