// Package webgpu implements the partitioned-reduction gradient backend.
//
// The backend is structured for massively parallel execution: the outer
// dimension is split across a fixed number of partitions that accumulate
// partial sums of the scale- and bias-gradient terms in scratch buffers, a
// full barrier separates the phases, and a final per-feature reduction
// combines the partials. The input gradient has no cross-row dependency and
// is computed embarrassingly parallel per row.
//
// Kernels execute on a WebGPU device through go-webgpu
// (github.com/go-webgpu/webgpu, zero-CGO bindings) when an adapter is
// available; otherwise the same two-phase algorithm runs on a goroutine grid
// with identical scratch-buffer layout and accumulation order.
package webgpu

import (
	"fmt"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/zhedahe/onnxruntime/internal/parallel"
	"github.com/zhedahe/onnxruntime/internal/tensor"
)

// GradPartitions is the fixed partition count for the staged reduction of the
// scale and bias gradients. More partitions expose more parallelism in phase 1
// at the cost of a larger final reduction in phase 2; the default balances the
// two for moderate feature sizes. Independent of the tensor shapes.
const GradPartitions = 16

// Backend implements the gradient kernels as a two-phase staged reduction.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex

	adapterInfo *wgpu.AdapterInfoGo

	partitions int
	cfg        parallel.Config
}

// New creates a WebGPU-accelerated backend.
// Returns an error if WebGPU is not available or initialization fails;
// callers that want a guaranteed backend should use NewHost.
func New() (backend *Backend, err error) {
	// Recover from panic if the wgpu native library is not found.
	defer func() {
		if r := recover(); r != nil {
			backend = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance, _ := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	// Adapter info is optional; nil is fine.
	adapterInfo, _ := adapter.GetInfo()

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	b := NewHost()
	b.instance = instance
	b.adapter = adapter
	b.device = device
	b.queue = queue
	b.adapterInfo = adapterInfo
	return b, nil
}

// NewHost creates a backend that runs the two-phase algorithm on a goroutine
// grid without touching a GPU device. It never fails.
func NewHost() *Backend {
	return &Backend{
		shaders:    make(map[string]*wgpu.ShaderModule),
		pipelines:  make(map[string]*wgpu.ComputePipeline),
		partitions: GradPartitions,
		cfg:        parallel.DefaultConfig(),
	}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	if b.device != nil {
		return "WebGPU"
	}
	return "WebGPU(host)"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return tensor.WebGPU
}

// HasDevice reports whether a GPU device was acquired.
func (b *Backend) HasDevice() bool {
	return b.device != nil
}

// Release frees the GPU resources held by the backend.
// Safe to call on a host-only backend.
func (b *Backend) Release() {
	b.mu.Lock()
	for _, p := range b.pipelines {
		p.Release()
	}
	for _, s := range b.shaders {
		s.Release()
	}
	b.pipelines = make(map[string]*wgpu.ComputePipeline)
	b.shaders = make(map[string]*wgpu.ShaderModule)
	b.mu.Unlock()

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// LayerNormGrad computes the layer normalization backward pass through the
// two-phase staged reduction. The float32 path with float32 statistics runs
// on the GPU device when one is present; every other case runs on the host
// grid with accumulation in the statistics precision.
func (b *Backend) LayerNormGrad(dY, x, scale, mean, invStdDev, xGrad, scaleGrad, biasGrad *tensor.RawTensor, outer, feature int) error {
	if feature <= 1 {
		return fmt.Errorf("layernorm grad: feature size must be greater than 1, got %d", feature)
	}

	if b.device != nil && dY.DType() == tensor.Float32 && mean.DType() == tensor.Float32 {
		return b.layerNormGradDevice(dY, x, scale, mean, invStdDev, xGrad, scaleGrad, biasGrad, outer, feature)
	}

	switch dt := dY.DType(); dt {
	case tensor.Float32:
		switch mean.DType() {
		case tensor.Float32:
			layerNormGradStaged[float32, float32](
				dY.AsFloat32(), x.AsFloat32(), scale.AsFloat32(),
				mean.AsFloat32(), invStdDev.AsFloat32(),
				xGrad.AsFloat32(), scaleGrad.AsFloat32(), biasGrad.AsFloat32(),
				outer, feature, b.partitions, b.cfg,
			)
		case tensor.Float64:
			layerNormGradStaged[float32, float64](
				dY.AsFloat32(), x.AsFloat32(), scale.AsFloat32(),
				mean.AsFloat64(), invStdDev.AsFloat64(),
				xGrad.AsFloat32(), scaleGrad.AsFloat32(), biasGrad.AsFloat32(),
				outer, feature, b.partitions, b.cfg,
			)
		}
	case tensor.Float64:
		if mean.DType() != tensor.Float64 {
			return fmt.Errorf("layernorm grad: statistics dtype %s is narrower than data dtype %s", mean.DType(), dt)
		}
		layerNormGradStaged[float64, float64](
			dY.AsFloat64(), x.AsFloat64(), scale.AsFloat64(),
			mean.AsFloat64(), invStdDev.AsFloat64(),
			xGrad.AsFloat64(), scaleGrad.AsFloat64(), biasGrad.AsFloat64(),
			outer, feature, b.partitions, b.cfg,
		)
	default:
		return fmt.Errorf("layernorm grad: unsupported dtype %s", dt)
	}

	return nil
}
