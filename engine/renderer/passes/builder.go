// Package passes holds the three passes of a frame: geometry writes the
// visibility buffer, lighting shades it in a compute pass and postprocess
// maps the result into the back-buffer.
package passes

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/shader"
)

// Shader profiles and entry points of the builtin passes.
const (
	profileVS = "vs_6_6"
	profilePS = "ps_6_6"
	profileCS = "cs_6_6"
)

var (
	GeometryVS = shader.Key{Name: "geometry vertex", Path: "geometry.wgsl", EntryPoint: "vs_main", Profile: profileVS}
	GeometryPS = shader.Key{Name: "geometry pixel", Path: "geometry.wgsl", EntryPoint: "ps_main", Profile: profilePS}
	LightingCS = shader.Key{Name: "lighting", Path: "lighting.wgsl", EntryPoint: "cs_main", Profile: profileCS}
	PostVS     = shader.Key{Name: "postprocess vertex", Path: "postprocess.wgsl", EntryPoint: "vs_main", Profile: profileVS}
	PostPS     = shader.Key{Name: "postprocess pixel", Path: "postprocess.wgsl", EntryPoint: "ps_main", Profile: profilePS}
)

// Shaders lists every key the passes resolve.
func Shaders() []shader.Key {
	return []shader.Key{GeometryVS, GeometryPS, LightingCS, PostVS, PostPS}
}

// Resolver turns a shader key into bytecode. *shader.Library implements
// it.
type Resolver interface {
	Resolve(key shader.Key) (gpu.Bytecode, error)
}

// builder creates the signature and pipeline of one pass. The first error
// sticks and every later step is skipped; release undoes what was created.
type builder struct {
	name    string
	dev     gpu.Device
	shaders Resolver

	signature gpu.RootSignature
	pipeline  gpu.Pipeline
	err       error
}

func newBuilder(name string, dev gpu.Device, shaders Resolver) *builder {
	return &builder{name: name, dev: dev, shaders: shaders}
}

func (b *builder) rootSignature(desc gpu.RootSignatureDesc) {
	if b.err != nil {
		return
	}
	blob, err := gpu.SerializeRootSignature(desc)
	if err != nil {
		b.err = err
		return
	}
	b.signature, b.err = b.dev.CreateRootSignature(blob)
}

func (b *builder) stage(key shader.Key) gpu.ShaderStage {
	if b.err != nil {
		return gpu.ShaderStage{}
	}
	code, err := b.shaders.Resolve(key)
	if err != nil {
		b.err = err
		return gpu.ShaderStage{}
	}
	return gpu.ShaderStage{Bytecode: code, EntryPoint: key.EntryPoint}
}

func (b *builder) graphics(desc gpu.GraphicsPipelineDesc) {
	if b.err != nil {
		return
	}
	desc.Label = b.name
	desc.Signature = b.signature
	b.pipeline, b.err = b.dev.CreateGraphicsPipeline(desc)
}

func (b *builder) compute(desc gpu.ComputePipelineDesc) {
	if b.err != nil {
		return
	}
	desc.Label = b.name
	desc.Signature = b.signature
	b.pipeline, b.err = b.dev.CreateComputePipeline(desc)
}

// finish returns the built objects, or releases them on error.
func (b *builder) finish() (gpu.RootSignature, gpu.Pipeline, error) {
	if b.err != nil {
		core.LogError("failed to build the %s pass: %v", b.name, b.err)
		if b.pipeline != nil {
			b.pipeline.Release()
		}
		if b.signature != nil {
			b.signature.Release()
		}
		return nil, nil, b.err
	}
	core.LogDebug("%s pass ready", b.name)
	return b.signature, b.pipeline, nil
}

func fullViewport(width, height uint32) (gpu.Viewport, gpu.Rect) {
	return gpu.Viewport{Width: float32(width), Height: float32(height), MaxDepth: 1},
		gpu.Rect{Width: width, Height: height}
}
