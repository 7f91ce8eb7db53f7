package vulkan

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type commandAllocator struct {
	dev  *Device
	pool vk.CommandPool
}

var _ gpu.CommandAllocator = (*commandAllocator)(nil)

func (d *Device) CreateCommandAllocator() (gpu.CommandAllocator, error) {
	a := &commandAllocator{dev: d}
	res := vk.CreateCommandPool(d.handle, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: d.family,
	}, nil, &a.pool)
	if err := creation("command allocator", "vkCreateCommandPool", res); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *commandAllocator) Reset() error {
	return check("vkResetCommandPool", vk.ResetCommandPool(a.dev.handle, a.pool, 0))
}

func (a *commandAllocator) Release() {
	if a.pool != nil {
		vk.DestroyCommandPool(a.dev.handle, a.pool, nil)
		a.pool = nil
	}
}

type cbvBinding struct {
	set    vk.DescriptorSet
	offset uint32
}

// bindState is the root signature state of one bind point. It is flushed
// into descriptor sets and push constants right before a draw or dispatch.
type bindState struct {
	sig   *rootSignature
	push  []uint32
	cbvs  []cbvBinding
	dirty bool
}

func (s *bindState) reset(sig *rootSignature) {
	s.sig = sig
	s.push = make([]uint32, sig.layout.PushWords)
	s.cbvs = make([]cbvBinding, sig.layout.CBVSets)
	s.dirty = true
}

// slot returns the push constant words of param, checking its type.
func (s *bindState) slot(param uint32, typ gpu.RootParameterType) (gpu.ParamSlot, error) {
	if s.sig == nil {
		return gpu.ParamSlot{}, errors.New("no root signature bound")
	}
	if int(param) >= len(s.sig.layout.Params) {
		return gpu.ParamSlot{}, fmt.Errorf("root parameter %d out of range", param)
	}
	slot := s.sig.layout.Params[param]
	if slot.Type != typ {
		return gpu.ParamSlot{}, fmt.Errorf("root parameter %d has type %d, not %d", param, slot.Type, typ)
	}
	return slot, nil
}

// commandList is a primary command buffer. It is created recording.
type commandList struct {
	dev    *Device
	alloc  *commandAllocator
	handle vk.CommandBuffer
	open   bool
	inPass bool
	// err is the first recording error, returned by Close.
	err error

	heaps    [2]*descriptorHeap
	graphics bindState
	compute  bindState
}

var _ gpu.CommandList = (*commandList)(nil)

func (d *Device) CreateCommandList(alloc gpu.CommandAllocator) (gpu.CommandList, error) {
	a, ok := alloc.(*commandAllocator)
	if !ok || a == nil {
		return nil, core.NewResourceCreationError("command list", errors.New("allocator was not created by this device"))
	}
	l := &commandList{dev: d}
	if err := l.allocate(a); err != nil {
		return nil, core.NewResourceCreationError("command list", err)
	}
	if err := l.begin(); err != nil {
		l.Release()
		return nil, core.NewResourceCreationError("command list", err)
	}
	return l, nil
}

func (l *commandList) allocate(a *commandAllocator) error {
	buffers := make([]vk.CommandBuffer, 1)
	res := vk.AllocateCommandBuffers(l.dev.handle, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        a.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers)
	if err := check("vkAllocateCommandBuffers", res); err != nil {
		return err
	}
	l.alloc = a
	l.handle = buffers[0]
	return nil
}

func (l *commandList) begin() error {
	res := vk.BeginCommandBuffer(l.handle, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if err := check("vkBeginCommandBuffer", res); err != nil {
		return err
	}
	l.open = true
	l.err = nil
	l.heaps = [2]*descriptorHeap{}
	l.graphics = bindState{}
	l.compute = bindState{}
	return nil
}

func (l *commandList) fail(err error) {
	core.LogError("command list: %v", err)
	if l.err == nil {
		l.err = err
	}
}

// Reset reopens the list on alloc. The command buffer moves when the
// allocator changes.
func (l *commandList) Reset(alloc gpu.CommandAllocator) error {
	if l.open {
		return errors.New("reset of a command list that is still recording")
	}
	a, ok := alloc.(*commandAllocator)
	if !ok || a == nil {
		return errors.New("allocator was not created by this device")
	}
	if a != l.alloc {
		vk.FreeCommandBuffers(l.dev.handle, l.alloc.pool, 1, []vk.CommandBuffer{l.handle})
		if err := l.allocate(a); err != nil {
			return err
		}
	}
	return l.begin()
}

func (l *commandList) Close() error {
	if !l.open {
		return errors.New("command list closed twice")
	}
	if l.inPass {
		l.fail(errors.New("command list closed inside a render pass"))
		vk.CmdEndRenderPass(l.handle)
		l.inPass = false
	}
	l.open = false
	if err := check("vkEndCommandBuffer", vk.EndCommandBuffer(l.handle)); err != nil {
		return err
	}
	return l.err
}

func (l *commandList) ResourceBarrier(barriers ...gpu.Barrier) {
	if l.inPass {
		core.LogWarn("command list: %d barriers inside a render pass ignored", len(barriers))
		return
	}
	var batch barrierBatch
	for _, b := range barriers {
		if b.Type == gpu.BarrierUAV {
			batch.uav()
			continue
		}
		res, err := asResource(b.Resource)
		if err != nil {
			l.fail(err)
			continue
		}
		if res.texture != nil {
			batch.image(res, b.Before, b.After)
		} else {
			batch.buffer(res.buffer, b.Before, b.After)
		}
	}
	batch.record(l.handle)
}

// SetDescriptorHeaps takes at most one heap of each kind.
func (l *commandList) SetDescriptorHeaps(heaps ...gpu.DescriptorHeap) {
	for _, heap := range heaps {
		h, ok := heap.(*descriptorHeap)
		if !ok || h == nil {
			l.fail(errors.New("descriptor heap was not created by this device"))
			continue
		}
		l.heaps[h.kind] = h
	}
	l.graphics.dirty = true
	l.compute.dirty = true
}

// prime gives never used attachments a defined layout. Their contents are
// undefined, as for a freshly created texture.
func (l *commandList) prime(desc gpu.RenderPassDesc) {
	var batch barrierBatch
	for _, a := range desc.Colors {
		if v, ok := a.View.(*targetView); ok && !v.res.initialized {
			batch.image(v.res, gpu.StateCommon, gpu.StateRenderTarget)
		}
	}
	if desc.Depth != nil {
		if v, ok := desc.Depth.View.(*targetView); ok && !v.res.initialized {
			batch.image(v.res, gpu.StateCommon, gpu.StateDepthWrite)
		}
	}
	batch.record(l.handle)
}

// clearColor packs a clear color. Integer targets take the values as
// integers.
func clearColor(format gpu.Format, c [4]float32) vk.ClearValue {
	if format.IsInteger() {
		var bits [4]float32
		for i, v := range c {
			bits[i] = math.Float32frombits(uint32(v))
		}
		c = bits
	}
	return vk.NewClearValue(c[:])
}

func (l *commandList) BeginRenderPass(desc gpu.RenderPassDesc) {
	if l.inPass {
		l.fail(errors.New("render pass begun inside a render pass"))
		return
	}
	l.prime(desc)
	rp, fb, width, height, err := l.dev.passes.begin(desc)
	if err != nil {
		l.fail(err)
		return
	}
	clears := make([]vk.ClearValue, 0, len(desc.Colors)+1)
	for _, a := range desc.Colors {
		clears = append(clears, clearColor(a.View.Format(), a.ClearColor))
	}
	if desc.Depth != nil {
		clears = append(clears, vk.NewClearDepthStencil(desc.Depth.ClearDepth, 0))
	}
	vk.CmdBeginRenderPass(l.handle, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: width, Height: height},
		},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}, vk.SubpassContentsInline)
	l.inPass = true
}

func (l *commandList) EndRenderPass() {
	if !l.inPass {
		l.fail(errors.New("render pass ended outside a render pass"))
		return
	}
	vk.CmdEndRenderPass(l.handle)
	l.inPass = false
}

func (l *commandList) SetPipeline(p gpu.Pipeline) {
	pipe, ok := p.(*pipeline)
	if !ok || pipe == nil {
		l.fail(errors.New("pipeline was not created by this device"))
		return
	}
	vk.CmdBindPipeline(l.handle, pipe.bindPoint, pipe.handle)
}

func (l *commandList) setSignature(state *bindState, s gpu.RootSignature) {
	sig, err := asSignature(s)
	if err != nil {
		l.fail(err)
		return
	}
	state.reset(sig)
}

func (l *commandList) SetGraphicsRootSignature(s gpu.RootSignature) {
	l.setSignature(&l.graphics, s)
}

func (l *commandList) SetComputeRootSignature(s gpu.RootSignature) {
	l.setSignature(&l.compute, s)
}

func (l *commandList) setConstants(state *bindState, param uint32, values []uint32, offset uint32) {
	slot, err := state.slot(param, gpu.ParamConstants)
	if err != nil {
		l.fail(err)
		return
	}
	if offset+uint32(len(values)) > slot.PushWords {
		l.fail(fmt.Errorf("root parameter %d: %d values at offset %d overflow %d constants", param, len(values), offset, slot.PushWords))
		return
	}
	copy(state.push[slot.PushOffset+offset:], values)
	state.dirty = true
}

func (l *commandList) SetGraphicsRoot32BitConstants(param uint32, values []uint32, offset uint32) {
	l.setConstants(&l.graphics, param, values, offset)
}

func (l *commandList) SetComputeRoot32BitConstants(param uint32, values []uint32, offset uint32) {
	l.setConstants(&l.compute, param, values, offset)
}

// setTable stores the heap slot of the table base, shaders index the heap
// arrays from it.
func (l *commandList) setTable(state *bindState, param, baseIndex uint32) {
	slot, err := state.slot(param, gpu.ParamDescriptorTable)
	if err != nil {
		l.fail(err)
		return
	}
	state.push[slot.PushOffset] = baseIndex
	state.dirty = true
}

func (l *commandList) SetGraphicsRootDescriptorTable(param uint32, baseIndex uint32) {
	l.setTable(&l.graphics, param, baseIndex)
}

func (l *commandList) SetComputeRootDescriptorTable(param uint32, baseIndex uint32) {
	l.setTable(&l.compute, param, baseIndex)
}

func (l *commandList) SetGraphicsRootConstantBufferView(param uint32, r gpu.Resource, offset uint64) {
	slot, err := l.graphics.slot(param, gpu.ParamConstantBufferView)
	if err != nil {
		l.fail(err)
		return
	}
	res, err := asResource(r)
	if err != nil {
		l.fail(err)
		return
	}
	if offset >= res.size || offset%cbvRange != 0 {
		l.fail(fmt.Errorf("constant buffer offset %d invalid for %q", offset, res.label))
		return
	}
	set, err := res.constantSet()
	if err != nil {
		l.fail(err)
		return
	}
	l.graphics.cbvs[slot.Set-gpu.SetFirstRootCBV] = cbvBinding{set: set, offset: uint32(offset)}
	l.graphics.dirty = true
}

// flush binds the heaps, static samplers, root constant buffers and push
// constants of state.
func (l *commandList) flush(state *bindState, bindPoint vk.PipelineBindPoint) {
	if state.sig == nil {
		l.fail(errors.New("draw or dispatch without a root signature"))
		return
	}
	if !state.dirty {
		return
	}
	layout := state.sig.pipelineLayout
	if l.heaps[gpu.HeapKindResourceView] != nil && l.heaps[gpu.HeapKindSampler] != nil {
		sets := []vk.DescriptorSet{l.heaps[gpu.HeapKindResourceView].set, l.heaps[gpu.HeapKindSampler].set}
		vk.CmdBindDescriptorSets(l.handle, bindPoint, layout, gpu.SetResourceHeap, uint32(len(sets)), sets, 0, nil)
	}
	if state.sig.staticSet != nil {
		vk.CmdBindDescriptorSets(l.handle, bindPoint, layout, gpu.SetStaticSamplers, 1,
			[]vk.DescriptorSet{state.sig.staticSet}, 0, nil)
	}
	for i, c := range state.cbvs {
		if c.set == nil {
			continue
		}
		vk.CmdBindDescriptorSets(l.handle, bindPoint, layout, gpu.SetFirstRootCBV+uint32(i), 1,
			[]vk.DescriptorSet{c.set}, 1, []uint32{c.offset})
	}
	if len(state.push) > 0 {
		// The words are copied, later root setters must not alias them.
		words := append([]uint32(nil), state.push...)
		vk.CmdPushConstants(l.handle, layout, vk.ShaderStageFlags(vk.ShaderStageAll),
			0, uint32(len(words)*4), unsafe.Pointer(&words[0]))
	}
	state.dirty = false
}

func (l *commandList) SetViewport(v gpu.Viewport) {
	vk.CmdSetViewport(l.handle, 0, 1, []vk.Viewport{{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	}})
}

func (l *commandList) SetScissor(r gpu.Rect) {
	vk.CmdSetScissor(l.handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Width, Height: r.Height},
	}})
}

// SetVertexBuffer binds a stream. The stride is part of the pipeline.
func (l *commandList) SetVertexBuffer(slot uint32, r gpu.Resource, offset uint64, stride uint32) {
	res, err := asResource(r)
	if err != nil {
		l.fail(err)
		return
	}
	vk.CmdBindVertexBuffers(l.handle, slot, 1, []vk.Buffer{res.buffer}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (l *commandList) SetIndexBuffer(r gpu.Resource, offset uint64, format gpu.IndexFormat) {
	res, err := asResource(r)
	if err != nil {
		l.fail(err)
		return
	}
	vk.CmdBindIndexBuffer(l.handle, res.buffer, vk.DeviceSize(offset), toIndexType(format))
}

func (l *commandList) DrawInstanced(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	l.flush(&l.graphics, vk.PipelineBindPointGraphics)
	vk.CmdDraw(l.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (l *commandList) DrawIndexedInstanced(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	l.flush(&l.graphics, vk.PipelineBindPointGraphics)
	vk.CmdDrawIndexed(l.handle, indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (l *commandList) Dispatch(x, y, z uint32) {
	if l.inPass {
		l.fail(errors.New("dispatch inside a render pass"))
		return
	}
	l.flush(&l.compute, vk.PipelineBindPointCompute)
	vk.CmdDispatch(l.handle, x, y, z)
}

func (l *commandList) CopyBufferRegion(dst gpu.Resource, dstOffset uint64, src gpu.Resource, srcOffset uint64, size uint64) {
	d, err := asResource(dst)
	if err != nil {
		l.fail(err)
		return
	}
	s, err := asResource(src)
	if err != nil {
		l.fail(err)
		return
	}
	if dstOffset+size > d.size || srcOffset+size > s.size {
		l.fail(fmt.Errorf("copy of %d bytes from %q+%d to %q+%d out of range", size, s.label, srcOffset, d.label, dstOffset))
		return
	}
	vk.CmdCopyBuffer(l.handle, s.buffer, d.buffer, 1, []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(dstOffset),
		Size:      vk.DeviceSize(size),
	}})
}

// CopyBufferToTexture expects dst in the CopyDest state.
func (l *commandList) CopyBufferToTexture(dst gpu.Resource, src gpu.Resource, srcOffset uint64) {
	d, err := asResource(dst)
	if err != nil {
		l.fail(err)
		return
	}
	s, err := asResource(src)
	if err != nil {
		l.fail(err)
		return
	}
	if d.texture == nil {
		l.fail(fmt.Errorf("copy destination %q is not a texture", d.label))
		return
	}
	tex := d.texture
	rowBytes := uint64(tex.Width) * uint64(tex.Format.Size())
	if srcOffset+rowBytes*uint64(tex.Height) > s.size {
		l.fail(fmt.Errorf("texture copy reads past the end of %q", s.label))
		return
	}
	if !d.initialized {
		var batch barrierBatch
		batch.image(d, gpu.StateCommon, gpu.StateCopyDest)
		batch.record(l.handle)
	}
	vk.CmdCopyBufferToImage(l.handle, s.buffer, d.image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
		BufferOffset: vk.DeviceSize(srcOffset),
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: aspectOf(tex.Format),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: tex.Width, Height: tex.Height, Depth: 1},
	}})
}

func (l *commandList) Release() {
	if l.handle != nil {
		vk.FreeCommandBuffers(l.dev.handle, l.alloc.pool, 1, []vk.CommandBuffer{l.handle})
		l.handle = nil
	}
}
