package passes

import (
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

const postInput uint32 = 0

type PostProcessConfig struct {
	Device  gpu.Device
	Shaders Resolver
	// Format of the back-buffer written by the pass.
	Format gpu.Format
}

// PostProcessPass tone maps the lit image into the back-buffer with a
// fullscreen triangle.
type PostProcessPass struct {
	Signature gpu.RootSignature
	Pipeline  gpu.Pipeline
}

func PostProcessSignature() gpu.RootSignatureDesc {
	return gpu.RootSignatureDesc{
		Parameters: []gpu.RootParameter{
			postInput: gpu.TableParam(gpu.VisibilityPixel, gpu.DescriptorRange{Type: gpu.RangeSRV, Count: 1}),
		},
		StaticSamplers: []gpu.StaticSampler{{
			Sampler:    gpu.SamplerDesc{Filter: gpu.FilterPoint, Address: gpu.AddressBorder, Border: gpu.BorderOpaqueBlack},
			Visibility: gpu.VisibilityPixel,
		}},
	}
}

func NewPostProcessPass(cfg PostProcessConfig) (*PostProcessPass, error) {
	b := newBuilder("postprocess", cfg.Device, cfg.Shaders)
	b.rootSignature(PostProcessSignature())
	vs := b.stage(PostVS)
	ps := b.stage(PostPS)
	b.graphics(gpu.GraphicsPipelineDesc{
		VS:         vs,
		PS:         ps,
		Cull:       gpu.CullNone,
		RTVFormats: []gpu.Format{cfg.Format},
	})
	sig, pipe, err := b.finish()
	if err != nil {
		return nil, err
	}
	return &PostProcessPass{Signature: sig, Pipeline: pipe}, nil
}

type PostProcessInputs struct {
	Targets    *Targets
	BackBuffer gpu.Resource
	RTV        gpu.RenderTargetView
}

// Record draws into the back-buffer and hands it back for presentation.
func (p *PostProcessPass) Record(cl gpu.CommandList, in PostProcessInputs) {
	t := in.Targets
	cl.ResourceBarrier(gpu.TransitionBarrier(in.BackBuffer, gpu.StatePresent, gpu.StateRenderTarget))
	cl.BeginRenderPass(gpu.RenderPassDesc{
		Colors: []gpu.ColorAttachment{{View: in.RTV, Load: gpu.LoadOpDontCare}},
	})
	cl.SetPipeline(p.Pipeline)
	cl.SetGraphicsRootSignature(p.Signature)
	vp, scissor := fullViewport(t.Width, t.Height)
	cl.SetViewport(vp)
	cl.SetScissor(scissor)
	cl.SetGraphicsRootDescriptorTable(postInput, t.LightingSRV)
	cl.DrawInstanced(3, 1, 0, 0)
	cl.EndRenderPass()
	cl.ResourceBarrier(gpu.TransitionBarrier(in.BackBuffer, gpu.StateRenderTarget, gpu.StatePresent))
}

func (p *PostProcessPass) Release() {
	p.Pipeline.Release()
	p.Signature.Release()
}
