package webgpu

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/zhedahe/onnxruntime/internal/tensor"
)

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached in the Backend's shaders map.
func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.mu.RLock()
	if shader, exists := b.shaders[name]; exists {
		b.mu.RUnlock()
		return shader
	}
	b.mu.RUnlock()

	shader := b.device.CreateShaderModuleWGSL(code)

	b.mu.Lock()
	b.shaders[name] = shader
	b.mu.Unlock()

	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one.
func (b *Backend) getOrCreatePipeline(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	b.mu.RLock()
	if pipeline, exists := b.pipelines[name]; exists {
		b.mu.RUnlock()
		return pipeline
	}
	b.mu.RUnlock()

	// Auto layout (nil layout), single "main" entry point per shader.
	pipeline := b.device.CreateComputePipelineSimple(nil, shader, "main")

	b.mu.Lock()
	b.pipelines[name] = pipeline
	b.mu.Unlock()

	return pipeline
}

// createBuffer creates a GPU storage buffer and uploads initial data.
func (b *Backend) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// createScratchBuffer creates an uninitialized GPU buffer of the given size.
func (b *Backend) createScratchBuffer(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	return b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  size,
	})
}

// createUniformBuffer creates a uniform buffer with proper alignment.
// Uniform buffers require 16-byte alignment for struct fields.
func (b *Backend) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	alignedSize := (size + 15) &^ 15 // Round up to 16-byte boundary

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), alignedSize)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// readBuffer reads data back from a GPU buffer to CPU memory.
// Uses a staging buffer since storage buffers can't be mapped directly.
func (b *Backend) readBuffer(srcBuffer *wgpu.Buffer, size uint64, dst []byte) error {
	stagingBuffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer stagingBuffer.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(srcBuffer, 0, stagingBuffer, 0, size)
	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	err := stagingBuffer.MapAsync(b.device, wgpu.MapModeRead, 0, size)
	if err != nil {
		return fmt.Errorf("failed to map staging buffer: %w", err)
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(dst, mappedSlice)

	stagingBuffer.Unmap()

	return nil
}

// layerNormGradDevice runs the two-phase gradient kernel on the GPU device.
// Three sequential compute passes inside one command encoder: partial sums,
// partial reduction, input gradient. WebGPU synchronizes storage buffer
// writes between passes, which provides the barrier phase 2 depends on.
func (b *Backend) layerNormGradDevice(dY, x, scale, mean, invStdDev, xGrad, scaleGrad, biasGrad *tensor.RawTensor, outer, feature int) error {
	parts := b.partitions

	partialPipeline := b.getOrCreatePipeline("layernorm_grad_partials", b.compileShader("layernorm_grad_partials", partialSumsShader))
	reducePipeline := b.getOrCreatePipeline("layernorm_grad_reduce", b.compileShader("layernorm_grad_reduce", reducePartialsShader))
	inputPipeline := b.getOrCreatePipeline("layernorm_grad_input", b.compileShader("layernorm_grad_input", inputGradShader))

	storage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc

	bufGrad := b.createBuffer(dY.Data(), storage)
	defer bufGrad.Release()
	bufInput := b.createBuffer(x.Data(), storage)
	defer bufInput.Release()
	bufScale := b.createBuffer(scale.Data(), storage)
	defer bufScale.Release()
	bufMean := b.createBuffer(mean.Data(), storage)
	defer bufMean.Release()
	bufInvStd := b.createBuffer(invStdDev.Data(), storage)
	defer bufInvStd.Release()

	// Partial-sum scratch buffers: parts x feature, float32, transient.
	scratchSize := uint64(parts * feature * 4)
	bufPartScale := b.createScratchBuffer(scratchSize, storage)
	defer bufPartScale.Release()
	bufPartBias := b.createScratchBuffer(scratchSize, storage)
	defer bufPartBias.Release()

	//nolint:gosec // G115: Safe conversion, ByteSize() returns non-negative int
	xGradSize := uint64(xGrad.ByteSize())
	bufXGrad := b.createScratchBuffer(xGradSize, storage|wgpu.BufferUsageCopyDst)
	defer bufXGrad.Release()
	//nolint:gosec // G115: Safe conversion, ByteSize() returns non-negative int
	vecSize := uint64(scaleGrad.ByteSize())
	bufScaleGrad := b.createScratchBuffer(vecSize, storage|wgpu.BufferUsageCopyDst)
	defer bufScaleGrad.Release()
	bufBiasGrad := b.createScratchBuffer(vecSize, storage|wgpu.BufferUsageCopyDst)
	defer bufBiasGrad.Release()

	// Params uniform: outer, feature, parts (u32 each, 16-byte aligned).
	params := make([]byte, 16)
	//nolint:gosec // G115: Safe conversion, extents are positive
	binary.LittleEndian.PutUint32(params[0:4], uint32(outer))
	//nolint:gosec // G115: Safe conversion, extents are positive
	binary.LittleEndian.PutUint32(params[4:8], uint32(feature))
	//nolint:gosec // G115: Safe conversion, extents are positive
	binary.LittleEndian.PutUint32(params[8:12], uint32(parts))
	bufParams := b.createUniformBuffer(params)
	defer bufParams.Release()

	partialBindGroup := b.device.CreateBindGroupSimple(partialPipeline.GetBindGroupLayout(0), []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufGrad, 0, uint64(dY.ByteSize())),
		wgpu.BufferBindingEntry(1, bufInput, 0, uint64(x.ByteSize())),
		wgpu.BufferBindingEntry(2, bufMean, 0, uint64(mean.ByteSize())),
		wgpu.BufferBindingEntry(3, bufInvStd, 0, uint64(invStdDev.ByteSize())),
		wgpu.BufferBindingEntry(4, bufPartScale, 0, scratchSize),
		wgpu.BufferBindingEntry(5, bufPartBias, 0, scratchSize),
		wgpu.BufferBindingEntry(6, bufParams, 0, 16),
	})
	defer partialBindGroup.Release()

	reduceBindGroup := b.device.CreateBindGroupSimple(reducePipeline.GetBindGroupLayout(0), []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufPartScale, 0, scratchSize),
		wgpu.BufferBindingEntry(1, bufPartBias, 0, scratchSize),
		wgpu.BufferBindingEntry(2, bufScaleGrad, 0, vecSize),
		wgpu.BufferBindingEntry(3, bufBiasGrad, 0, vecSize),
		wgpu.BufferBindingEntry(4, bufParams, 0, 16),
	})
	defer reduceBindGroup.Release()

	inputBindGroup := b.device.CreateBindGroupSimple(inputPipeline.GetBindGroupLayout(0), []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufGrad, 0, uint64(dY.ByteSize())),
		wgpu.BufferBindingEntry(1, bufInput, 0, uint64(x.ByteSize())),
		wgpu.BufferBindingEntry(2, bufScale, 0, uint64(scale.ByteSize())),
		wgpu.BufferBindingEntry(3, bufMean, 0, uint64(mean.ByteSize())),
		wgpu.BufferBindingEntry(4, bufInvStd, 0, uint64(invStdDev.ByteSize())),
		wgpu.BufferBindingEntry(5, bufXGrad, 0, xGradSize),
		wgpu.BufferBindingEntry(6, bufParams, 0, 16),
	})
	defer inputBindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)

	featureGroups := uint32((feature + workgroupSize - 1) / workgroupSize)

	// Phase 1: per-partition partial sums.
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(partialPipeline)
	pass.SetBindGroup(0, partialBindGroup, nil)
	pass.DispatchWorkgroups(featureGroups, uint32(parts), 1)
	pass.End()

	// Phase 2: reduce the partials into the parameter gradients.
	pass = encoder.BeginComputePass(nil)
	pass.SetPipeline(reducePipeline)
	pass.SetBindGroup(0, reduceBindGroup, nil)
	pass.DispatchWorkgroups(featureGroups, 1, 1)
	pass.End()

	// Input gradient: one invocation per row.
	pass = encoder.BeginComputePass(nil)
	pass.SetPipeline(inputPipeline)
	pass.SetBindGroup(0, inputBindGroup, nil)
	pass.DispatchWorkgroups(uint32((outer+workgroupSize-1)/workgroupSize), 1, 1)
	pass.End()

	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	if err := b.readBuffer(bufXGrad, xGradSize, xGrad.Data()); err != nil {
		return fmt.Errorf("layernorm grad: input gradient readback: %w", err)
	}
	if err := b.readBuffer(bufScaleGrad, vecSize, scaleGrad.Data()); err != nil {
		return fmt.Errorf("layernorm grad: scale gradient readback: %w", err)
	}
	if err := b.readBuffer(bufBiasGrad, vecSize, biasGrad.Data()); err != nil {
		return fmt.Errorf("layernorm grad: bias gradient readback: %w", err)
	}

	return nil
}
