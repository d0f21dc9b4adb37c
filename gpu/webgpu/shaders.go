package webgpu

// All kernels share one uniform block. Threads are laid out over a 2D grid
// of 256-wide workgroups so that large calls stay within the per-dimension
// dispatch limit; thread_index flattens it again.
const shaderHeader = `
struct Params {
	n: u32,
	nstack: u32,
	samples: u32,
	log_n: u32,
	log_stride: u32,
	src_off: u32,
	dst_off: u32,
	width: u32,
	batch: u32,
	total: u32,
	pad0: u32,
	pad1: u32,
}

fn thread_index(gid: vec3<u32>, nwg: vec3<u32>) -> u32 {
	return gid.y * nwg.x * 256u + gid.x;
}

// pair_of maps pair index p of a stage with stride 1 << ls to its positions.
fn pair_of(p: u32, ls: u32) -> vec2<u32> {
	let s = 1u << ls;
	let a = ((p >> ls) << (ls + 1u)) | (p & (s - 1u));
	return vec2<u32>(a, a + s);
}
`

// generalStageShader applies one stage of 2x2 maps. Rows are addressed by
// src_off and dst_off so the fused pass can write each stage input into its
// own row of the saved buffer.
const generalStageShader = shaderHeader + `
@group(0) @binding(0) var<storage, read_write> data : array<f32>;
@group(0) @binding(1) var<storage, read> tw : array<f32>;
@group(0) @binding(2) var<uniform> params : Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
	let id = thread_index(gid, nwg);
	if (id >= params.total) { return; }

	let n = params.n;
	let pairs = n / 2u;
	let sample = id / pairs;
	let ab = pair_of(id % pairs, params.log_stride);
	let base = sample * n;
	let off = ((sample % params.nstack) * params.log_n + params.log_stride) * 2u * n;

	let u = data[params.src_off + base + ab.x];
	let v = data[params.src_off + base + ab.y];
	data[params.dst_off + base + ab.x] = tw[off + ab.x] * u + tw[off + n + ab.x] * v;
	data[params.dst_off + base + ab.y] = tw[off + n + ab.y] * u + tw[off + ab.y] * v;
}
`

// generalBackwardShader propagates the gradient through one stage and writes
// this sample's share of the stage twiddle gradient into part. Every slot of
// part is owned by exactly one pair.
const generalBackwardShader = shaderHeader + `
@group(0) @binding(0) var<storage, read_write> grad : array<f32>;
@group(0) @binding(1) var<storage, read> saved : array<f32>;
@group(0) @binding(2) var<storage, read> tw : array<f32>;
@group(0) @binding(3) var<storage, read_write> part : array<f32>;
@group(0) @binding(4) var<uniform> params : Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
	let id = thread_index(gid, nwg);
	if (id >= params.total) { return; }

	let n = params.n;
	let pairs = n / 2u;
	let sample = id / pairs;
	let ab = pair_of(id % pairs, params.log_stride);
	let a = ab.x;
	let b = ab.y;
	let base = sample * n;
	let off = ((sample % params.nstack) * params.log_n + params.log_stride) * 2u * n;

	let u = saved[params.src_off + base + a];
	let v = saved[params.src_off + base + b];
	let ga = grad[base + a];
	let gb = grad[base + b];

	let pb = sample * 2u * n;
	part[pb + a] = ga * u;
	part[pb + n + a] = ga * v;
	part[pb + n + b] = gb * u;
	part[pb + b] = gb * v;

	grad[base + a] = tw[off + a] * ga + tw[off + n + b] * gb;
	grad[base + b] = tw[off + n + a] * ga + tw[off + b] * gb;
}
`

const orthoStageShader = shaderHeader + `
@group(0) @binding(0) var<storage, read_write> data : array<f32>;
@group(0) @binding(1) var<storage, read> cos_t : array<f32>;
@group(0) @binding(2) var<storage, read> sin_t : array<f32>;
@group(0) @binding(3) var<uniform> params : Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
	let id = thread_index(gid, nwg);
	if (id >= params.total) { return; }

	let pairs = params.n / 2u;
	let sample = id / pairs;
	let p = id % pairs;
	let ab = pair_of(p, params.log_stride);
	let base = sample * params.n;
	let k = ((sample % params.nstack) * params.log_n + params.log_stride) * pairs + p;

	let c = cos_t[k];
	let s = sin_t[k];
	let u = data[base + ab.x];
	let v = data[base + ab.y];
	data[base + ab.x] = c * u - s * v;
	data[base + ab.y] = s * u + c * v;
}
`

// orthoBackwardShader undoes one rotation in y, propagates grad and writes
// this sample's partial derivatives for the stage angles.
const orthoBackwardShader = shaderHeader + `
@group(0) @binding(0) var<storage, read_write> y : array<f32>;
@group(0) @binding(1) var<storage, read_write> grad : array<f32>;
@group(0) @binding(2) var<storage, read> cos_t : array<f32>;
@group(0) @binding(3) var<storage, read> sin_t : array<f32>;
@group(0) @binding(4) var<storage, read_write> part_c : array<f32>;
@group(0) @binding(5) var<storage, read_write> part_s : array<f32>;
@group(0) @binding(6) var<uniform> params : Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
	let id = thread_index(gid, nwg);
	if (id >= params.total) { return; }

	let pairs = params.n / 2u;
	let sample = id / pairs;
	let p = id % pairs;
	let ab = pair_of(p, params.log_stride);
	let a = base_of(sample) + ab.x;
	let b = base_of(sample) + ab.y;
	let k = ((sample % params.nstack) * params.log_n + params.log_stride) * pairs + p;

	let c = cos_t[k];
	let s = sin_t[k];
	let ya = y[a];
	let yb = y[b];
	let u = c * ya + s * yb;
	let v = -s * ya + c * yb;
	let ga = grad[a];
	let gb = grad[b];

	part_c[sample * pairs + p] = ga * u + gb * v;
	part_s[sample * pairs + p] = gb * u - ga * v;

	grad[a] = c * ga + s * gb;
	grad[b] = -s * ga + c * gb;
	y[a] = u;
	y[b] = v;
}

fn base_of(sample: u32) -> u32 {
	return sample * params.n;
}
`

// reduceShader sums per-sample partials of one stage over the batch, in
// batch order, and stores them in the stage slab of dst.
const reduceShader = shaderHeader + `
@group(0) @binding(0) var<storage, read> part : array<f32>;
@group(0) @binding(1) var<storage, read_write> dst : array<f32>;
@group(0) @binding(2) var<uniform> params : Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
	let id = thread_index(gid, nwg);
	if (id >= params.total) { return; }

	let w = params.width;
	let stack = id / w;
	let j = id % w;

	var sum: f32 = 0.0;
	for (var b: u32 = 0u; b < params.batch; b++) {
		sum += part[(b * params.nstack + stack) * w + j];
	}

	dst[(stack * params.log_n + params.log_stride) * w + j] = sum;
}
`
