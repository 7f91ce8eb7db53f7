package passes

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/upload"
)

const (
	lightingOutput uint32 = iota
	lightingVisibility
	lightingTextures
	lightingSceneTable
	lightingNumLights
	lightingLights
)

type LightingConfig struct {
	Device  gpu.Device
	Shaders Resolver
}

// LightingPass shades the visibility buffer in core.TileSize square tiles.
type LightingPass struct {
	Signature gpu.RootSignature
	Pipeline  gpu.Pipeline
}

func LightingSignature() gpu.RootSignatureDesc {
	srv := func(count, space uint32) gpu.DescriptorRange {
		return gpu.DescriptorRange{Type: gpu.RangeSRV, Count: count, Space: space}
	}
	return gpu.RootSignatureDesc{
		Parameters: []gpu.RootParameter{
			lightingOutput:     gpu.TableParam(gpu.VisibilityCompute, gpu.DescriptorRange{Type: gpu.RangeUAV, Count: 1}),
			lightingVisibility: gpu.TableParam(gpu.VisibilityCompute, srv(1, 0)),
			lightingTextures:   gpu.TableParam(gpu.VisibilityCompute, srv(gpu.Unbounded, 1)),
			lightingSceneTable: gpu.TableParam(gpu.VisibilityCompute, srv(upload.SceneTableSize, 2)),
			lightingNumLights:  gpu.ConstantsParam(gpu.VisibilityCompute, 0, 1),
			lightingLights:     gpu.TableParam(gpu.VisibilityCompute, srv(1, 3)),
		},
		StaticSamplers: []gpu.StaticSampler{{
			Sampler:    gpu.SamplerDesc{Filter: gpu.FilterLinear, Address: gpu.AddressClamp},
			Visibility: gpu.VisibilityCompute,
		}},
	}
}

func NewLightingPass(cfg LightingConfig) (*LightingPass, error) {
	b := newBuilder("lighting", cfg.Device, cfg.Shaders)
	b.rootSignature(LightingSignature())
	cs := b.stage(LightingCS)
	b.compute(gpu.ComputePipelineDesc{CS: cs})
	sig, pipe, err := b.finish()
	if err != nil {
		return nil, err
	}
	return &LightingPass{Signature: sig, Pipeline: pipe}, nil
}

// DispatchSize is the number of thread groups covering width x height.
func DispatchSize(width, height uint32) (uint32, uint32) {
	return math.DivCeil(width, core.TileSize), math.DivCeil(height, core.TileSize)
}

type LightingInputs struct {
	Targets *Targets
	Scene   *upload.SceneGPU
}

// Record writes the lit image. The visibility buffer must already be in
// its readable state.
func (p *LightingPass) Record(cl gpu.CommandList, in LightingInputs) {
	t := in.Targets
	cl.ResourceBarrier(gpu.TransitionBarrier(t.Lighting, LightingState, gpu.StateUnorderedAccess))

	cl.SetPipeline(p.Pipeline)
	cl.SetComputeRootSignature(p.Signature)
	cl.SetComputeRootDescriptorTable(lightingOutput, t.LightingUAV)
	cl.SetComputeRootDescriptorTable(lightingVisibility, t.VisibilitySRV)
	if s := in.Scene; s != nil {
		cl.SetComputeRootDescriptorTable(lightingTextures, s.TextureTable)
		cl.SetComputeRootDescriptorTable(lightingSceneTable, s.SceneTable)
		cl.SetComputeRoot32BitConstants(lightingNumLights, []uint32{s.NumLights}, 0)
		cl.SetComputeRootDescriptorTable(lightingLights, s.LightTable)
	} else {
		cl.SetComputeRoot32BitConstants(lightingNumLights, []uint32{0}, 0)
	}

	x, y := DispatchSize(t.Width, t.Height)
	cl.Dispatch(x, y, 1)

	cl.ResourceBarrier(gpu.UAVBarrier(t.Lighting))
	cl.ResourceBarrier(gpu.TransitionBarrier(t.Lighting, gpu.StateUnorderedAccess, LightingState))
}

func (p *LightingPass) Release() {
	p.Pipeline.Release()
	p.Signature.Release()
}
