package webgpu

// WGSL compute shaders for the two-phase gradient kernel.
// Using string constants instead of embed for simplicity.

// workgroupSize is the default number of threads per workgroup.
const workgroupSize = 256

// partialSumsShader is phase 1: one invocation per (feature index, partition)
// accumulates the scale- and bias-gradient terms over the partition's
// disjoint row range into the partial-sum buffers.
const partialSumsShader = `
@group(0) @binding(0) var<storage, read> grad: array<f32>;
@group(0) @binding(1) var<storage, read> input: array<f32>;
@group(0) @binding(2) var<storage, read> mean: array<f32>;
@group(0) @binding(3) var<storage, read> inv_std: array<f32>;
@group(0) @binding(4) var<storage, read_write> part_scale: array<f32>;
@group(0) @binding(5) var<storage, read_write> part_bias: array<f32>;

struct Params {
    outer: u32,
    feature: u32,
    parts: u32,
}
@group(0) @binding(6) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let j = global_id.x;
    let p = global_id.y;
    if (j >= params.feature || p >= params.parts) {
        return;
    }

    let chunk = (params.outer + params.parts - 1u) / params.parts;
    let start = p * chunk;
    let end = min(start + chunk, params.outer);

    var sum_scale = 0.0;
    var sum_bias = 0.0;
    for (var r = start; r < end; r = r + 1u) {
        let idx = r * params.feature + j;
        let g = grad[idx];
        let d = (input[idx] - mean[r]) * inv_std[r];
        sum_bias = sum_bias + g;
        sum_scale = sum_scale + g * d;
    }

    let slot = p * params.feature + j;
    part_scale[slot] = sum_scale;
    part_bias[slot] = sum_bias;
}
`

// reducePartialsShader is phase 2: one invocation per feature index combines
// the per-partition partials into the final scale and bias gradients.
const reducePartialsShader = `
@group(0) @binding(0) var<storage, read> part_scale: array<f32>;
@group(0) @binding(1) var<storage, read> part_bias: array<f32>;
@group(0) @binding(2) var<storage, read_write> scale_grad: array<f32>;
@group(0) @binding(3) var<storage, read_write> bias_grad: array<f32>;

struct Params {
    outer: u32,
    feature: u32,
    parts: u32,
}
@group(0) @binding(4) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let j = global_id.x;
    if (j >= params.feature) {
        return;
    }

    var sum_scale = 0.0;
    var sum_bias = 0.0;
    for (var p = 0u; p < params.parts; p = p + 1u) {
        let slot = p * params.feature + j;
        sum_scale = sum_scale + part_scale[slot];
        sum_bias = sum_bias + part_bias[slot];
    }

    scale_grad[j] = sum_scale;
    bias_grad[j] = sum_bias;
}
`

// inputGradShader computes the input gradient, one invocation per row.
// No cross-row reduction: each row computes its own feature-axis means of
// B = grad*scale*inv_std and C = B*D, then writes the closed form
// x_grad = B - mean(B) - D * mean(C).
const inputGradShader = `
@group(0) @binding(0) var<storage, read> grad: array<f32>;
@group(0) @binding(1) var<storage, read> input: array<f32>;
@group(0) @binding(2) var<storage, read> scale: array<f32>;
@group(0) @binding(3) var<storage, read> mean: array<f32>;
@group(0) @binding(4) var<storage, read> inv_std: array<f32>;
@group(0) @binding(5) var<storage, read_write> input_grad: array<f32>;

struct Params {
    outer: u32,
    feature: u32,
    parts: u32,
}
@group(0) @binding(6) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let r = global_id.x;
    if (r >= params.outer) {
        return;
    }

    let row = r * params.feature;
    let mu = mean[r];
    let rstd = inv_std[r];

    var sum_b = 0.0;
    var sum_c = 0.0;
    for (var j = 0u; j < params.feature; j = j + 1u) {
        let d = (input[row + j] - mu) * rstd;
        let b = grad[row + j] * scale[j] * rstd;
        sum_b = sum_b + b;
        sum_c = sum_c + b * d;
    }
    let mean_b = sum_b / f32(params.feature);
    let mean_c = sum_c / f32(params.feature);

    for (var j = 0u; j < params.feature; j = j + 1u) {
        let d = (input[row + j] - mu) * rstd;
        let b = grad[row + j] * scale[j] * rstd;
        input_grad[row + j] = b - mean_b - d * mean_c;
    }
}
`
