package gputest

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type Op string

const (
	OpBarrier             Op = "Barrier"
	OpSetDescriptorHeaps  Op = "SetDescriptorHeaps"
	OpBeginRenderPass     Op = "BeginRenderPass"
	OpEndRenderPass       Op = "EndRenderPass"
	OpSetPipeline         Op = "SetPipeline"
	OpSetRootSignature    Op = "SetRootSignature"
	OpSetRootConstants    Op = "SetRootConstants"
	OpSetRootTable        Op = "SetRootTable"
	OpSetRootCBV          Op = "SetRootCBV"
	OpSetViewport         Op = "SetViewport"
	OpSetScissor          Op = "SetScissor"
	OpSetVertexBuffer     Op = "SetVertexBuffer"
	OpSetIndexBuffer      Op = "SetIndexBuffer"
	OpDraw                Op = "Draw"
	OpDrawIndexed         Op = "DrawIndexed"
	OpDispatch            Op = "Dispatch"
	OpCopyBuffer          Op = "CopyBuffer"
	OpCopyBufferToTexture Op = "CopyBufferToTexture"
)

type DrawArgs struct {
	VertexCount   uint32
	IndexCount    uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

type CopyArgs struct {
	Dst       gpu.Resource
	DstOffset uint64
	Src       gpu.Resource
	SrcOffset uint64
	Size      uint64
}

// Command is one recorded call. Only the fields of its Op are set.
type Command struct {
	Op         Op
	Compute    bool
	Barriers   []gpu.Barrier
	Heaps      []gpu.DescriptorHeap
	RenderPass gpu.RenderPassDesc
	Pipeline   gpu.Pipeline
	Signature  gpu.RootSignature
	Param      uint32
	Values     []uint32
	Offset     uint64
	Resource   gpu.Resource
	Viewport   gpu.Viewport
	Scissor    gpu.Rect
	Draw       DrawArgs
	Groups     [3]uint32
	Copy       CopyArgs
}

type CommandList struct {
	Allocator   *CommandAllocator
	Commands    []Command
	Open        bool
	Resets      int
	Submissions int
	Released    bool

	inRenderPass bool
}

func (l *CommandList) record(c Command) {
	if !l.Open {
		panic(fmt.Sprintf("gputest: %s recorded on a closed command list", c.Op))
	}
	l.Commands = append(l.Commands, c)
}

func (l *CommandList) Reset(alloc gpu.CommandAllocator) error {
	if l.Open {
		return fmt.Errorf("gputest: reset of a command list that is still recording")
	}
	l.Allocator = alloc.(*CommandAllocator)
	l.Commands = nil
	l.Open = true
	l.Resets++
	return nil
}

func (l *CommandList) Close() error {
	if !l.Open {
		return fmt.Errorf("gputest: command list closed twice")
	}
	if l.inRenderPass {
		return fmt.Errorf("gputest: command list closed inside a render pass")
	}
	l.Open = false
	return nil
}

func (l *CommandList) ResourceBarrier(barriers ...gpu.Barrier) {
	if l.inRenderPass {
		panic("gputest: barrier inside a render pass")
	}
	l.record(Command{Op: OpBarrier, Barriers: append([]gpu.Barrier(nil), barriers...)})
}

func (l *CommandList) SetDescriptorHeaps(heaps ...gpu.DescriptorHeap) {
	l.record(Command{Op: OpSetDescriptorHeaps, Heaps: heaps})
}

func (l *CommandList) BeginRenderPass(desc gpu.RenderPassDesc) {
	l.inRenderPass = true
	l.record(Command{Op: OpBeginRenderPass, RenderPass: desc})
}

func (l *CommandList) EndRenderPass() {
	l.inRenderPass = false
	l.record(Command{Op: OpEndRenderPass})
}

func (l *CommandList) SetPipeline(p gpu.Pipeline) {
	l.record(Command{Op: OpSetPipeline, Pipeline: p, Compute: p.Compute()})
}

func (l *CommandList) SetGraphicsRootSignature(s gpu.RootSignature) {
	l.record(Command{Op: OpSetRootSignature, Signature: s})
}

func (l *CommandList) SetComputeRootSignature(s gpu.RootSignature) {
	l.record(Command{Op: OpSetRootSignature, Signature: s, Compute: true})
}

func (l *CommandList) SetGraphicsRoot32BitConstants(param uint32, values []uint32, offset uint32) {
	l.record(Command{Op: OpSetRootConstants, Param: param, Values: append([]uint32(nil), values...), Offset: uint64(offset)})
}

func (l *CommandList) SetComputeRoot32BitConstants(param uint32, values []uint32, offset uint32) {
	l.record(Command{Op: OpSetRootConstants, Param: param, Values: append([]uint32(nil), values...), Offset: uint64(offset), Compute: true})
}

func (l *CommandList) SetGraphicsRootDescriptorTable(param uint32, base uint32) {
	l.record(Command{Op: OpSetRootTable, Param: param, Values: []uint32{base}})
}

func (l *CommandList) SetComputeRootDescriptorTable(param uint32, base uint32) {
	l.record(Command{Op: OpSetRootTable, Param: param, Values: []uint32{base}, Compute: true})
}

func (l *CommandList) SetGraphicsRootConstantBufferView(param uint32, r gpu.Resource, offset uint64) {
	l.record(Command{Op: OpSetRootCBV, Param: param, Resource: r, Offset: offset})
}

func (l *CommandList) SetViewport(v gpu.Viewport) {
	l.record(Command{Op: OpSetViewport, Viewport: v})
}

func (l *CommandList) SetScissor(r gpu.Rect) {
	l.record(Command{Op: OpSetScissor, Scissor: r})
}

func (l *CommandList) SetVertexBuffer(slot uint32, r gpu.Resource, offset uint64, stride uint32) {
	l.record(Command{Op: OpSetVertexBuffer, Param: slot, Resource: r, Offset: offset, Values: []uint32{stride}})
}

func (l *CommandList) SetIndexBuffer(r gpu.Resource, offset uint64, format gpu.IndexFormat) {
	l.record(Command{Op: OpSetIndexBuffer, Resource: r, Offset: offset, Values: []uint32{uint32(format)}})
}

func (l *CommandList) DrawInstanced(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	l.record(Command{Op: OpDraw, Draw: DrawArgs{
		VertexCount: vertexCount, InstanceCount: instanceCount,
		FirstVertex: firstVertex, FirstInstance: firstInstance,
	}})
}

func (l *CommandList) DrawIndexedInstanced(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	l.record(Command{Op: OpDrawIndexed, Draw: DrawArgs{
		IndexCount: indexCount, InstanceCount: instanceCount,
		FirstIndex: firstIndex, BaseVertex: baseVertex, FirstInstance: firstInstance,
	}})
}

func (l *CommandList) Dispatch(x, y, z uint32) {
	l.record(Command{Op: OpDispatch, Groups: [3]uint32{x, y, z}, Compute: true})
}

func (l *CommandList) CopyBufferRegion(dst gpu.Resource, dstOffset uint64, src gpu.Resource, srcOffset uint64, size uint64) {
	l.record(Command{Op: OpCopyBuffer, Copy: CopyArgs{Dst: dst, DstOffset: dstOffset, Src: src, SrcOffset: srcOffset, Size: size}})
}

func (l *CommandList) CopyBufferToTexture(dst gpu.Resource, src gpu.Resource, srcOffset uint64) {
	l.record(Command{Op: OpCopyBufferToTexture, Copy: CopyArgs{Dst: dst, Src: src, SrcOffset: srcOffset, Size: dst.Size()}})
}

func (l *CommandList) Release() { l.Released = true }

// execute applies the copies of a submitted list.
func (l *CommandList) execute() {
	for _, c := range l.Commands {
		if c.Op != OpCopyBuffer && c.Op != OpCopyBufferToTexture {
			continue
		}
		dst := c.Copy.Dst.(*Resource)
		src := c.Copy.Src.(*Resource)
		if dst.Released || src.Released {
			panic(fmt.Sprintf("gputest: copy %q -> %q uses a released resource", src.label, dst.label))
		}
		copy(dst.Data[c.Copy.DstOffset:c.Copy.DstOffset+c.Copy.Size], src.Data[c.Copy.SrcOffset:c.Copy.SrcOffset+c.Copy.Size])
	}
}

// Find returns the recorded commands with the given op, in order.
func (l *CommandList) Find(op Op) []Command {
	var out []Command
	for _, c := range l.Commands {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// IndexOf returns the position of the first command matching pred, or -1.
func (l *CommandList) IndexOf(pred func(Command) bool) int {
	for i, c := range l.Commands {
		if pred(c) {
			return i
		}
	}
	return -1
}

// Transitions flattens every transition barrier in recording order.
func (l *CommandList) Transitions() []gpu.Barrier {
	var out []gpu.Barrier
	for _, c := range l.Commands {
		for _, b := range c.Barriers {
			if b.Type == gpu.BarrierTransition {
				out = append(out, b)
			}
		}
	}
	return out
}
