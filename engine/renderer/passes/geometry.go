package passes

import (
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/upload"
)

// Root parameters of the geometry pass.
const (
	geometryViewData uint32 = iota
	geometrySceneTable
	geometryDrawRecord
	geometryDrawID
)

type GeometryConfig struct {
	Device  gpu.Device
	Shaders Resolver
}

// GeometryPass rasterizes every instance into the visibility buffer.
type GeometryPass struct {
	Signature gpu.RootSignature
	Pipeline  gpu.Pipeline
}

func GeometrySignature() gpu.RootSignatureDesc {
	return gpu.RootSignatureDesc{
		Parameters: []gpu.RootParameter{
			geometryViewData:   gpu.CBVParam(gpu.VisibilityAll, 0),
			geometrySceneTable: gpu.TableParam(gpu.VisibilityAll, gpu.DescriptorRange{Type: gpu.RangeSRV, Count: upload.SceneTableSize}),
			geometryDrawRecord: gpu.ConstantsParam(gpu.VisibilityAll, 1, 2),
			geometryDrawID:     gpu.ConstantsParam(gpu.VisibilityAll, 2, 1),
		},
		Flags: gpu.RootSignatureAllowInputLayout,
	}
}

func NewGeometryPass(cfg GeometryConfig) (*GeometryPass, error) {
	b := newBuilder("geometry", cfg.Device, cfg.Shaders)
	b.rootSignature(GeometrySignature())
	vs := b.stage(GeometryVS)
	ps := b.stage(GeometryPS)
	b.graphics(gpu.GraphicsPipelineDesc{
		VS:           vs,
		PS:           ps,
		InputLayout:  []gpu.InputElement{{Semantic: "POSITION", Format: gpu.FormatRGB32Float}},
		VertexStride: upload.VertexStride,
		Cull:         gpu.CullNone,
		Depth:        gpu.DepthState{Test: true, Write: true, Compare: gpu.CompareLess},
		RTVFormats:   []gpu.Format{VisibilityFormat},
		DSVFormat:    DepthFormat,
	})
	sig, pipe, err := b.finish()
	if err != nil {
		return nil, err
	}
	return &GeometryPass{Signature: sig, Pipeline: pipe}, nil
}

// GeometryInputs is what one geometry pass reads.
type GeometryInputs struct {
	Targets    *Targets
	Scene      *upload.SceneGPU
	ViewData   gpu.Resource
	ViewOffset uint64
}

// Record clears and fills the visibility buffer with one indexed draw per
// instance, leaving it readable by the lighting pass.
func (p *GeometryPass) Record(cl gpu.CommandList, in GeometryInputs) {
	t := in.Targets
	cl.ResourceBarrier(gpu.TransitionBarrier(t.Visibility, VisibilityState, gpu.StateRenderTarget))
	cl.BeginRenderPass(gpu.RenderPassDesc{
		Colors: []gpu.ColorAttachment{{View: t.VisibilityRTV, Load: gpu.LoadOpClear}},
		Depth:  &gpu.DepthAttachment{View: t.DepthDSV, Load: gpu.LoadOpClear, ClearDepth: 1},
	})

	cl.SetPipeline(p.Pipeline)
	cl.SetGraphicsRootSignature(p.Signature)
	vp, scissor := fullViewport(t.Width, t.Height)
	cl.SetViewport(vp)
	cl.SetScissor(scissor)
	cl.SetGraphicsRootConstantBufferView(geometryViewData, in.ViewData, in.ViewOffset)

	if s := in.Scene; s != nil {
		cl.SetGraphicsRootDescriptorTable(geometrySceneTable, s.SceneTable)
		cl.SetVertexBuffer(0, s.VertexBuffer.Resource(), 0, upload.VertexStride)
		cl.SetIndexBuffer(s.IndexBuffer.Resource(), 0, gpu.IndexUint32)
		for id, inst := range s.Instances {
			g := s.Geometries[inst.Geometry]
			if g.IndexCount == 0 {
				continue
			}
			cl.SetGraphicsRoot32BitConstants(geometryDrawRecord, []uint32{g.BaseIndex, g.BaseVertex}, 0)
			cl.SetGraphicsRoot32BitConstants(geometryDrawID, []uint32{uint32(id)}, 0)
			cl.DrawIndexedInstanced(g.IndexCount, 1, g.BaseIndex, int32(g.BaseVertex), 0)
		}
	}

	cl.EndRenderPass()
	cl.ResourceBarrier(gpu.TransitionBarrier(t.Visibility, gpu.StateRenderTarget, VisibilityState))
}

func (p *GeometryPass) Release() {
	p.Pipeline.Release()
	p.Signature.Release()
}
